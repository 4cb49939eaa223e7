package table

import (
	"bytes"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

var errInvalidSignature = errors.New("invalid boot signature for mbr")

// MBR MBR/EBR扇区结构.
// 具体见 https://en.wikipedia.org/wiki/Master_boot_record.
type MBR struct {
	Offset                   int64                                `struc:"skip"`      // MBR数据绝对起始偏移.
	BootLoader               []byte                               `struc:"[446]byte"` // 0x0000, 446.
	FullMainPartitionEntries [MBRPartitionEntryCount]MBRPartition // 0x01BE, 64, 所有多字节字段均为小端序.
	BootSignature            [2]byte                              `struc:"[2]byte"` // 0x01FE, 2.
}

// MBRPartition MBR磁盘的分区表项结构.
type MBRPartition struct {
	BootIndicator    byte             // 0x00, 1.
	StartingHead     byte             // 0x01, 1.
	StartingSector   byte             // 0x02, 1.
	StartingCylinder byte             // 0x03, 1.
	PartitionType    MBRPartitionType `struc:"byte"` // 0x04, 1. 见 https://en.wikipedia.org/wiki/Partition_type.
	EndingHead       byte             // 0x05, 1.
	EndingSector     byte             // 0x06, 1.
	EndingCylinder   byte             // 0x07, 1.
	StartingLBA      int64            `struc:"uint32,little"` // 0x08, 4, 起始LBA(包含).
	TotalSectors     int64            `struc:"uint32,little"` // 0x0c, 4, 总扇区数.
}

func (partition MBRPartition) IsEmpty() bool {
	return partition.PartitionType == Empty || partition.TotalSectors == 0
}

func (partition MBRPartition) IsExtend() bool {
	return bytes.IndexByte(MBRExtendPartTypes, partition.PartitionType) >= 0
}

func (partition MBRPartition) IsProtectiveMBR() bool {
	return partition.PartitionType == EFIGPTProtectiveMBR
}

func readMBR(disk io.ReadSeeker, start int64) (mbr MBR, err error) {
	if _, err = disk.Seek(start, io.SeekStart); err != nil {
		return mbr, err
	}
	bin := make([]byte, MBRDefaultLBASize)
	if _, err = io.ReadFull(disk, bin); err != nil {
		return mbr, errors.Wrapf(err, "read boot record at %d", start)
	}
	if err = struc.Unpack(bytes.NewReader(bin), &mbr); err != nil {
		return mbr, errors.Wrap(err, "unpack boot record")
	}
	mbr.Offset = start
	if mbr.BootSignature[0] != MBRSignature510 || mbr.BootSignature[1] != MBRSignature511 {
		return mbr, errInvalidSignature
	}
	return mbr, nil
}

func readMBRLayout(disk io.ReadSeeker, mbr MBR, layout *Layout) error {
	layout.Type = DTypeMBR
	layout.FirstUsableLBA = 1
	for i, p := range mbr.FullMainPartitionEntries {
		if p.IsEmpty() {
			continue
		}
		e := Entry{
			Index:    i + 1,
			StartLBA: p.StartingLBA,
			Sectors:  p.TotalSectors,
			Role:     RolePrimary,
			MBRType:  p.PartitionType,
		}
		if p.IsExtend() {
			e.Role = RoleExtended
			logical, err := readLogicalEntries(disk, p.StartingLBA, layout.SectorSize)
			if err != nil {
				return err
			}
			layout.Entries = append(layout.Entries, logical...)
		}
		layout.Entries = append(layout.Entries, e)
	}
	return nil
}

// readLogicalEntries 沿EBR链读取扩展分区中的逻辑分区.
// EBR 第1个表项的起始扇区相对于该EBR, 第2个表项指向下一个EBR且相对于扩展分区起始扇区.
func readLogicalEntries(disk io.ReadSeeker, extendStartLBA, sectorSize int64) ([]Entry, error) {
	entries := make([]Entry, 0)
	visited := make(map[int64]struct{})
	ebrLBA := extendStartLBA
	for index := MBRFirstLogicalIndex; index < MBRFirstLogicalIndex+MBRMaxLogicalPartitions; index++ {
		if _, ok := visited[ebrLBA]; ok {
			return nil, errors.Errorf("loop in ebr chain at lba %d", ebrLBA)
		}
		visited[ebrLBA] = struct{}{}

		ebr, err := readMBR(disk, ebrLBA*sectorSize)
		if err != nil {
			return nil, errors.Wrapf(err, "read ebr at lba %d", ebrLBA)
		}
		lp := ebr.FullMainPartitionEntries[MBRLogicalPartitionEntryIndex]
		if !lp.IsEmpty() {
			entries = append(entries, Entry{
				Index:    index,
				StartLBA: ebrLBA + lp.StartingLBA,
				Sectors:  lp.TotalSectors,
				Role:     RoleLogical,
				MBRType:  lp.PartitionType,
			})
		}
		next := ebr.FullMainPartitionEntries[MBREBRPartitionEntryIndex]
		if next.IsEmpty() || !next.IsExtend() {
			break
		}
		ebrLBA = extendStartLBA + next.StartingLBA
	}
	return entries, nil
}
