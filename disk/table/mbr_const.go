package table

const (
	MBRSignature510               = 0x55
	MBRSignature511               = 0xAA
	MBRLogicalPartitionEntryIndex = 0
	MBREBRPartitionEntryIndex     = 1
	MBRPartitionEntryCount        = 4
	MBRDefaultLBASize             = 1 << 9
	MBRFirstLogicalIndex          = 5
	MBRMaxLogicalPartitions       = 124
)

// MBRPartitionType 表示MBR结构下的分区类型.
type MBRPartitionType = byte

const (
	Empty               MBRPartitionType = 0x00
	ExtendCHS           MBRPartitionType = 0x05
	NTFS                MBRPartitionType = 0x07
	FAT32               MBRPartitionType = 0x0B
	FAT32X              MBRPartitionType = 0x0C
	ExtendLBA           MBRPartitionType = 0x0F
	HiddenExtendCHS     MBRPartitionType = 0x15
	HiddenExtendLBA     MBRPartitionType = 0x1F
	LinuxSwap           MBRPartitionType = 0x82
	Linux               MBRPartitionType = 0x83
	LinuxExtend         MBRPartitionType = 0x85
	LinuxLVM            MBRPartitionType = 0x8E
	EFIGPTProtectiveMBR MBRPartitionType = 0xEE
	EFISystemPartition  MBRPartitionType = 0xEF
)

// MBRExtendPartTypes MBR扩展分区类型标记集合.
var MBRExtendPartTypes = []MBRPartitionType{ExtendCHS, ExtendLBA, HiddenExtendCHS, HiddenExtendLBA, LinuxExtend}
