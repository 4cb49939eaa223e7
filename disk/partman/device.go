package partman

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"

	"github.com/kisun-bit/partman/disk/table"
)

// Device 一块物理或虚拟磁盘. Partitions 按偏移升序, 连续且互不重叠.
type Device struct {
	Path       string         `json:"path"`
	Model      string         `json:"model"`
	Length     int64          `json:"length"`
	SectorSize int64          `json:"sector_size"`
	Table      table.DiskType `json:"table"`
	Partitions PartitionList  `json:"partitions"`
}

func (d Device) Clone() Device {
	d.Partitions = d.Partitions.Clone()
	return d
}

func (d Device) String() string {
	return fmt.Sprintf("%s(%s, %s, %s, %d parts)", d.Path, d.Model,
		strings.ReplaceAll(humanize.IBytes(uint64(d.Length)), " ", ""), d.Table, len(d.Partitions))
}

type DeviceList []Device

// Clone 深拷贝设备列表.
func (dl DeviceList) Clone() DeviceList {
	if dl == nil {
		return nil
	}
	out := make(DeviceList, len(dl))
	for i := range dl {
		out[i] = dl[i].Clone()
	}
	return out
}

// Find 依据设备路径查找设备.
func (dl DeviceList) Find(path string) (Device, bool) {
	for _, d := range dl {
		if d.Path == path {
			return d, true
		}
	}
	return Device{}, false
}

// Digest 设备列表内容的摘要, 内容相同则摘要相同.
func (dl DeviceList) Digest() uint64 {
	b, err := json.Marshal(dl)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}
