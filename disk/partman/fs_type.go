package partman

import (
	"strings"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/pkg/errors"
)

// FsType 文件系统类型.
type FsType int

const (
	FsEmpty FsType = iota // 未格式化.
	FsBtrfs
	FsEFI
	FsExt2
	FsExt3
	FsExt4
	FsFat16
	FsFat32
	FsHfs
	FsHfsPlus
	FsJfs
	FsLinuxSwap
	FsLVM2PV
	FsNTFS
	FsReiserfs
	FsXfs
	FsUnknown
)

// fsTypeNames 名称到类型的映射. 同一类型的首个名称为其规范名称, 其后为别名.
var fsTypeNames = func() *orderedmap.OrderedMap[string, FsType] {
	m := orderedmap.NewOrderedMap[string, FsType]()
	for _, kv := range []struct {
		name string
		fs   FsType
	}{
		{"empty", FsEmpty},
		{"btrfs", FsBtrfs},
		{"efi", FsEFI},
		{"ext2", FsExt2},
		{"ext3", FsExt3},
		{"ext4", FsExt4},
		{"fat16", FsFat16},
		{"fat32", FsFat32},
		{"vfat", FsFat32},
		{"hfs", FsHfs},
		{"hfs+", FsHfsPlus},
		{"hfsplus", FsHfsPlus},
		{"jfs", FsJfs},
		{"linux-swap", FsLinuxSwap},
		{"swap", FsLinuxSwap},
		{"lvm2pv", FsLVM2PV},
		{"lvm2_member", FsLVM2PV},
		{"ntfs", FsNTFS},
		{"reiserfs", FsReiserfs},
		{"xfs", FsXfs},
		{"unknown", FsUnknown},
	} {
		m.Set(kv.name, kv.fs)
	}
	return m
}()

// GetFsTypeByName 依据名称(忽略大小写)查找文件系统类型.
func GetFsTypeByName(name string) (FsType, bool) {
	return fsTypeNames.Get(strings.ToLower(strings.TrimSpace(name)))
}

func (fs FsType) String() string {
	for el := fsTypeNames.Front(); el != nil; el = el.Next() {
		if el.Value == fs {
			return el.Key
		}
	}
	return "unknown"
}

func (fs FsType) MarshalText() ([]byte, error) {
	return []byte(fs.String()), nil
}

func (fs *FsType) UnmarshalText(text []byte) error {
	v, ok := GetFsTypeByName(string(text))
	if !ok {
		return errors.Errorf("unknown filesystem type %q", text)
	}
	*fs = v
	return nil
}
