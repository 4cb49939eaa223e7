package partman

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// PartitionType 分区在分区表中的角色.
type PartitionType int

const (
	TypeNormal PartitionType = iota // 主分区.
	TypeExtended
	TypeLogical
	TypeUnallocated // 未分配的空闲空间.
)

var partitionTypeNames = []string{"normal", "extended", "logical", "unallocated"}

func (t PartitionType) String() string {
	if t < 0 || int(t) >= len(partitionTypeNames) {
		return "invalid"
	}
	return partitionTypeNames[t]
}

func (t PartitionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *PartitionType) UnmarshalText(text []byte) error {
	for i, name := range partitionTypeNames {
		if name == string(text) {
			*t = PartitionType(i)
			return nil
		}
	}
	return errors.Errorf("unknown partition type %q", text)
}

// PartitionStatus 分区的待执行意图.
//
//	Unallocated -> New          (Create)
//	PreserveFormat -> Formatted (Format)
//	* -> Unallocated            (Delete)
type PartitionStatus int

const (
	StatusUnallocated    PartitionStatus = iota
	StatusPreserveFormat                 // 扫描所得, 保留原有内容.
	StatusNew                            // 待新建.
	StatusFormatted                      // 待格式化.
)

var partitionStatusNames = []string{"unallocated", "preserve-format", "new", "formatted"}

func (s PartitionStatus) String() string {
	if s < 0 || int(s) >= len(partitionStatusNames) {
		return "invalid"
	}
	return partitionStatusNames[s]
}

func (s PartitionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PartitionStatus) UnmarshalText(text []byte) error {
	for i, name := range partitionStatusNames {
		if name == string(text) {
			*s = PartitionStatus(i)
			return nil
		}
	}
	return errors.Errorf("unknown partition status %q", text)
}

// Partition 设备上的一个分区或一段未分配空间. 按值传递, 不共享可变状态.
// 约束: Freespace <= Length; Unallocated 分区的 Fs 为 FsEmpty 且无挂载点.
type Partition struct {
	DevicePath string          `json:"device_path"`
	Path       string          `json:"path"` // 未分配空间为空串.
	Label      string          `json:"label"`
	Offset     int64           `json:"offset"` // 字节.
	Length     int64           `json:"length"` // 字节.
	Freespace  int64           `json:"freespace"`
	Fs         FsType          `json:"fs"`
	MountPoint string          `json:"mount_point"`
	Type       PartitionType   `json:"type"`
	Status     PartitionStatus `json:"status"`
}

// NewUnallocated 构造一段未分配空间.
func NewUnallocated(devicePath string, offset, length int64) Partition {
	return Partition{
		DevicePath: devicePath,
		Offset:     offset,
		Length:     length,
		Freespace:  length,
		Fs:         FsEmpty,
		Type:       TypeUnallocated,
		Status:     StatusUnallocated,
	}
}

func (p Partition) GetLength() int64 {
	return p.Length
}

// End 分区结束偏移(不包含).
func (p Partition) End() int64 {
	return p.Offset + p.Length
}

func (p Partition) IsUnallocated() bool {
	return p.Type == TypeUnallocated
}

// SameRegion 若两者描述同一设备上的同一段空间, 则返回true.
func (p Partition) SameRegion(other Partition) bool {
	return p.DevicePath == other.DevicePath && p.Offset == other.Offset && p.Length == other.Length
}

func (p Partition) String() string {
	name := p.Path
	if name == "" {
		name = "freespace"
	}
	parts := []string{
		name,
		p.Type.String(),
		strings.ReplaceAll(humanize.IBytes(uint64(p.Length)), " ", ""),
		"fs=" + p.Fs.String(),
	}
	if p.MountPoint != "" {
		parts = append(parts, "mp="+p.MountPoint)
	}
	parts = append(parts, fmt.Sprintf("off=%d", p.Offset), "status="+p.Status.String())
	return strings.Join(parts, " ")
}

type PartitionList []Partition

func (pl PartitionList) Clone() PartitionList {
	if pl == nil {
		return nil
	}
	out := make(PartitionList, len(pl))
	copy(out, pl)
	return out
}

// IndexOfRegion 返回与 p 位于同一区域的分区索引, 不存在时返回-1.
func (pl PartitionList) IndexOfRegion(p Partition) int {
	for i := range pl {
		if pl[i].SameRegion(p) {
			return i
		}
	}
	return -1
}
