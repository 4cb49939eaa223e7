package table

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"unicode"

	"github.com/pkg/errors"
)

type DiskType string

const (
	DTypeGPT DiskType = "GPT"
	DTypeMBR DiskType = "MBR"
	DTypeRAW DiskType = "RAW"
)

// Role 分区在分区表中的角色.
type Role int

const (
	RolePrimary Role = iota
	RoleExtended
	RoleLogical
)

func (r Role) String() string {
	switch r {
	case RoleExtended:
		return "extended"
	case RoleLogical:
		return "logical"
	default:
		return "primary"
	}
}

// Entry 分区表中的一个有效分区表项.
type Entry struct {
	Index    int // 在Linux下即为分区设备的尾部编号.
	StartLBA int64
	Sectors  int64
	Role     Role
	MBRType  MBRPartitionType // 仅MBR磁盘有效.
	TypeGUID string           // 仅GPT磁盘有效.
	Name     string           // 仅GPT磁盘有效.
}

// EndLBA 分区的结束扇区(包含).
func (e Entry) EndLBA() int64 {
	return e.StartLBA + e.Sectors - 1
}

// Layout 磁盘分区布局.
// Entries 按起始扇区升序排列; 扩展分区与其内部的逻辑分区同时出现.
type Layout struct {
	Type           DiskType
	SectorSize     int64
	Sectors        int64
	FirstUsableLBA int64
	LastUsableLBA  int64
	Entries        []Entry
}

// ReadDisk 打开磁盘设备并读取其分区布局.
func ReadDisk(diskPath string, size, sectorSize int64) (Layout, error) {
	fp, err := os.Open(diskPath)
	if err != nil {
		return Layout{}, err
	}
	defer fp.Close()
	layout, err := Read(fp, size, sectorSize)
	if err != nil {
		return Layout{}, errors.Wrapf(err, "read partition table of %s", diskPath)
	}
	return layout, nil
}

// Read 从 disk 读取分区布局. size 为磁盘字节大小.
// 无有效MBR签名的磁盘视为 DTypeRAW, 且不返回错误.
func Read(disk io.ReadSeeker, size, sectorSize int64) (layout Layout, err error) {
	if sectorSize <= 0 {
		sectorSize = MBRDefaultLBASize
	}
	layout = Layout{
		Type:           DTypeRAW,
		SectorSize:     sectorSize,
		Sectors:        size / sectorSize,
		FirstUsableLBA: 0,
		LastUsableLBA:  size/sectorSize - 1,
	}
	mbr_, err := readMBR(disk, 0)
	if err != nil {
		if errors.Cause(err) == errInvalidSignature {
			return layout, nil
		}
		return layout, err
	}
	protective := false
	for _, p := range mbr_.FullMainPartitionEntries {
		if p.IsProtectiveMBR() {
			protective = true
			break
		}
	}
	if protective {
		err = readGPT(disk, &layout)
	} else {
		err = readMBRLayout(disk, mbr_, &layout)
	}
	if err != nil {
		return layout, err
	}
	sort.SliceStable(layout.Entries, func(i, j int) bool {
		return layout.Entries[i].StartLBA < layout.Entries[j].StartLBA
	})
	return layout, nil
}

// GUIDToString 将原始GUID(mixed endian)转换为字符串.
// 注意: byteGuid 的长度只能等于16, 否则将返回空串.
func GUIDToString(byteGuid []byte) string {
	if len(byteGuid) != 16 {
		return ""
	}
	b := byteGuid
	return fmt.Sprintf("%02X%02X%02X%02X-%02X%02X-%02X%02X-%02X%02X-%02X%02X%02X%02X%02X%02X",
		b[3], b[2], b[1], b[0], b[5], b[4], b[7], b[6], b[8], b[9], b[10], b[11], b[12], b[13], b[14], b[15])
}

// PartDeviceName 生成分区设备名, 如 /dev/sda1, /dev/nvme0n1p1.
func PartDeviceName(diskPath string, partIndex int) string {
	if diskPath == "" {
		return ""
	}
	partSuffix := strconv.Itoa(partIndex)
	if unicode.IsDigit(rune(diskPath[len(diskPath)-1])) {
		partSuffix = "p" + partSuffix
	}
	return diskPath + partSuffix
}
