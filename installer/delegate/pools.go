package delegate

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/thoas/go-funk"

	"github.com/kisun-bit/partman/disk/partman"
)

const _PoolSeparator = ";"

var (
	ErrEmptyMountPoints = errors.New("mount point configuration is empty")
	ErrEmptyFsTypes     = errors.New("filesystem type configuration is empty")
)

func splitConf(conf string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(conf, _PoolSeparator) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// MountPointPool 可分配的挂载点. 挂载点一经使用, 本次会话内不再归还.
type MountPointPool struct {
	all       []string
	available []string
}

// NewMountPointPool 解析以 ';' 分隔的挂载点配置, 如 "/;/home;/boot".
func NewMountPointPool(conf string) (*MountPointPool, error) {
	all := splitConf(conf)
	if len(all) == 0 {
		return nil, ErrEmptyMountPoints
	}
	return &MountPointPool{
		all:       all,
		available: append([]string(nil), all...),
	}, nil
}

// All 全部已配置的挂载点, 保持配置顺序.
func (p *MountPointPool) All() []string {
	return append([]string(nil), p.all...)
}

// Available 尚未被使用的挂载点, 保持配置顺序.
func (p *MountPointPool) Available() []string {
	return append([]string(nil), p.available...)
}

func (p *MountPointPool) Contains(mountPoint string) bool {
	return funk.ContainsString(p.available, mountPoint)
}

// Use 从可用挂载点中移除 mountPoint 的一个实例. 不存在时不做任何事并返回false.
func (p *MountPointPool) Use(mountPoint string) bool {
	i := funk.IndexOfString(p.available, mountPoint)
	if i < 0 {
		return false
	}
	p.available = append(p.available[:i], p.available[i+1:]...)
	return true
}

// FsTypePool 可选的文件系统类型.
type FsTypePool struct {
	types []partman.FsType
}

// NewFsTypePool 解析以 ';' 分隔的文件系统名称, 未知名称视为配置错误.
func NewFsTypePool(conf string) (*FsTypePool, error) {
	names := splitConf(conf)
	if len(names) == 0 {
		return nil, ErrEmptyFsTypes
	}
	types := make([]partman.FsType, 0, len(names))
	for _, name := range names {
		fs, ok := partman.GetFsTypeByName(name)
		if !ok {
			return nil, errors.Errorf("unknown filesystem type %q in configuration", name)
		}
		types = append(types, fs)
	}
	return &FsTypePool{types: types}, nil
}

func (p *FsTypePool) All() []partman.FsType {
	return append([]partman.FsType(nil), p.types...)
}

func (p *FsTypePool) Contains(fs partman.FsType) bool {
	return funk.Contains(p.types, fs)
}

// Names 文件系统的规范名称.
func (p *FsTypePool) Names() []string {
	return funk.Map(p.types, func(fs partman.FsType) string {
		return fs.String()
	}).([]string)
}
