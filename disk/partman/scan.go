package partman

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/thoas/go-funk"
	"github.com/tidwall/gjson"

	"github.com/kisun-bit/partman/disk/table"
)

// lsblkColumns 扫描时向 lsblk 请求的列.
var lsblkColumns = []string{"NAME", "TYPE", "SIZE", "MODEL", "FSTYPE", "MOUNTPOINT", "LABEL", "LOG-SEC", "RO"}

// skipDeviceTypes 不参与分区的块设备类型.
var skipDeviceTypes = []string{"rom", "loop", "lvm", "crypt", "part", "md"}

type blockPart struct {
	Path       string
	Fs         string
	MountPoint string
	Label      string
}

type blockDisk struct {
	blockPart
	Model      string
	Size       int64
	SectorSize int64
	ReadOnly   bool
	Parts      map[string]blockPart
}

// parseLsblk 解析 `lsblk -J -b -p` 的输出, 仅保留可写的磁盘.
// 老版本 lsblk 以字符串输出数值和布尔值, gjson 对二者均可转换.
func parseLsblk(js string) ([]blockDisk, error) {
	if !gjson.Valid(js) {
		return nil, errors.New("invalid lsblk output")
	}
	devices := gjson.Get(js, "blockdevices")
	if !devices.IsArray() {
		return nil, errors.New("lsblk output has no blockdevices")
	}

	disks := make([]blockDisk, 0)
	devices.ForEach(func(_, dev gjson.Result) bool {
		if funk.ContainsString(skipDeviceTypes, dev.Get("type").String()) {
			return true
		}
		disk := blockDisk{
			blockPart:  toBlockPart(dev),
			Model:      strings.TrimSpace(dev.Get("model").String()),
			Size:       dev.Get("size").Int(),
			SectorSize: dev.Get("log-sec").Int(),
			ReadOnly:   dev.Get("ro").Bool(),
			Parts:      make(map[string]blockPart),
		}
		if disk.ReadOnly || disk.Size <= 0 {
			return true
		}
		if disk.SectorSize <= 0 {
			disk.SectorSize = table.MBRDefaultLBASize
		}
		dev.Get("children").ForEach(func(_, child gjson.Result) bool {
			if child.Get("type").String() == "part" {
				p := toBlockPart(child)
				disk.Parts[p.Path] = p
			}
			return true
		})
		disks = append(disks, disk)
		return true
	})
	return disks, nil
}

func toBlockPart(r gjson.Result) blockPart {
	return blockPart{
		Path:       r.Get("name").String(),
		Fs:         r.Get("fstype").String(),
		MountPoint: r.Get("mountpoint").String(),
		Label:      r.Get("label").String(),
	}
}

func fsTypeOf(name string) FsType {
	if name == "" {
		return FsEmpty
	}
	if fs, ok := GetFsTypeByName(name); ok {
		return fs
	}
	return FsUnknown
}

// buildDevice 将分区表布局与 lsblk 信息合并为 Device, 并以未分配分区填补空隙.
// 扩展分区本身不作为条目输出, 其中的逻辑分区及空隙按偏移顺序排列.
func buildDevice(disk blockDisk, layout table.Layout) Device {
	ss := layout.SectorSize
	if ss <= 0 {
		ss = disk.SectorSize
	}
	dev := Device{
		Path:       disk.Path,
		Model:      disk.Model,
		Length:     disk.Size,
		SectorSize: ss,
		Table:      layout.Type,
		Partitions: make(PartitionList, 0, len(layout.Entries)*2+1),
	}

	if layout.Type == table.DTypeRAW {
		if disk.Fs != "" {
			dev.Partitions = append(dev.Partitions, Partition{
				DevicePath: disk.Path,
				Path:       disk.Path,
				Label:      disk.Label,
				Length:     disk.Size,
				Fs:         fsTypeOf(disk.Fs),
				MountPoint: disk.MountPoint,
				Type:       TypeNormal,
				Status:     StatusPreserveFormat,
			})
		} else {
			dev.Partitions = append(dev.Partitions, NewUnallocated(disk.Path, 0, disk.Size))
		}
		return dev
	}

	addGap := func(startLBA, endLBA int64) {
		if endLBA > startLBA {
			dev.Partitions = append(dev.Partitions, NewUnallocated(disk.Path, startLBA*ss, (endLBA-startLBA)*ss))
		}
	}

	cursor := layout.FirstUsableLBA
	extCursor, extEnd := int64(0), int64(-1)
	for _, e := range layout.Entries {
		if e.Role == table.RoleLogical {
			addGap(extCursor, e.StartLBA)
			dev.Partitions = append(dev.Partitions, disk.partition(e, ss))
			extCursor = e.EndLBA() + 1
			continue
		}
		if extEnd >= 0 {
			addGap(extCursor, extEnd)
			extEnd = -1
		}
		if e.Role == table.RoleExtended {
			// 扩展分区容器: 其后的逻辑分区在其内部定位.
			addGap(cursor, e.StartLBA)
			extCursor, extEnd = e.StartLBA, e.EndLBA()+1
			cursor = extEnd
			continue
		}
		addGap(cursor, e.StartLBA)
		dev.Partitions = append(dev.Partitions, disk.partition(e, ss))
		cursor = e.EndLBA() + 1
	}
	if extEnd >= 0 {
		addGap(extCursor, extEnd)
	}
	addGap(cursor, layout.LastUsableLBA+1)
	return dev
}

func (disk blockDisk) partition(e table.Entry, ss int64) Partition {
	path := table.PartDeviceName(disk.Path, e.Index)
	info := disk.Parts[path]
	length := e.Sectors * ss

	p := Partition{
		DevicePath: disk.Path,
		Path:       path,
		Label:      info.Label,
		Offset:     e.StartLBA * ss,
		Length:     length,
		Fs:         fsTypeOf(info.Fs),
		MountPoint: info.MountPoint,
		Type:       TypeNormal,
		Status:     StatusPreserveFormat,
	}
	if p.Label == "" {
		p.Label = e.Name
	}
	if e.Role == table.RoleLogical {
		p.Type = TypeLogical
	}
	return p
}

func clampFree(avail, length int64) int64 {
	if avail < 0 {
		return 0
	}
	if avail > length {
		return length
	}
	return avail
}
