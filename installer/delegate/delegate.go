package delegate

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kisun-bit/partman/disk/partman"
	"github.com/kisun-bit/partman/installer/settings"
	"github.com/kisun-bit/partman/util/logger"
)

// Worker 设备扫描工作者, 由 partman.PartitionManager 实现.
// 所有请求均立即返回, 结果经 Events 送回.
type Worker interface {
	RefreshDevices() error
	AutoPart() error
	ManualPart(ops []partman.Operation) error
	Events() <-chan partman.Event
}

// LayoutType 新建分区时可采用的分区角色.
type LayoutType int

const (
	LayoutPrimaryOnly LayoutType = iota
	LayoutLogicalOnly
	LayoutPrimaryOrLogical
	LayoutUnavailable
)

func (l LayoutType) String() string {
	switch l {
	case LayoutPrimaryOnly:
		return "primary-only"
	case LayoutLogicalOnly:
		return "logical-only"
	case LayoutPrimaryOrLogical:
		return "primary-or-logical"
	default:
		return "unavailable"
	}
}

// PartitionType 在该布局下新建分区所使用的角色.
func (l LayoutType) PartitionType() partman.PartitionType {
	if l == LayoutLogicalOnly {
		return partman.TypeLogical
	}
	return partman.TypeNormal
}

type delegateCfg struct {
	logger             *zap.SugaredLogger
	minimumDisplaySize *int64
}

type Option func(cfg *delegateCfg)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(cfg *delegateCfg) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithMinimumDisplaySize 覆盖配置中的未分配空间最小展示大小.
func WithMinimumDisplaySize(size int64) Option {
	return func(cfg *delegateCfg) {
		cfg.minimumDisplaySize = &size
	}
}

// Delegate 分区操作的编排者.
//
// Delegate 持有操作日志、真实设备列表与可视设备列表, 可视列表总是
// 由(过滤后的真实列表, 操作日志)重新推导, 从不直接修改.
// Delegate 不是并发安全的: 除构造外的所有方法都必须在同一个协程(属主)中调用,
// 工作者的通知也须由属主经 HandleEvent/ProcessEvents/WaitEvent 接收.
type Delegate struct {
	worker Worker
	logger *zap.SugaredLogger

	minimumDisplaySize int64
	mountPoints        *MountPointPool
	fsTypes            *FsTypePool

	operations  []partman.Operation
	realDevices partman.DeviceList
	baseDevices partman.DeviceList // 过滤掉过小未分配空间后的真实列表.
	devices     partman.DeviceList

	// stale 最近一次重放中未匹配到任何分区的操作.
	stale []partman.Operation

	onDeviceRefreshed     []func(partman.DeviceList)
	onDeviceRefreshFailed []func(error)
	onAutoPartDone        []func(partman.Result)
	onManualPartDone      []func(partman.Result)
}

// New 依据配置构造 Delegate. 挂载点、文件系统配置错误时返回错误.
// 未开启自动分区时立即请求一次设备扫描.
func New(cfg *settings.Settings, worker Worker, options ...Option) (*Delegate, error) {
	if cfg == nil {
		cfg = settings.Default()
	}
	if worker == nil {
		return nil, errors.New("nil partition worker")
	}
	c := delegateCfg{logger: logger.Named("delegate")}
	for _, opt := range options {
		opt(&c)
	}

	d := &Delegate{worker: worker, logger: c.logger}

	var err error
	if d.mountPoints, err = NewMountPointPool(cfg.Partition.MountPoints); err != nil {
		return nil, errors.Wrap(err, "load mount points")
	}
	if d.fsTypes, err = NewFsTypePool(cfg.Partition.SupportedFs); err != nil {
		return nil, errors.Wrap(err, "load filesystem types")
	}
	if c.minimumDisplaySize != nil {
		d.minimumDisplaySize = *c.minimumDisplaySize
	} else if d.minimumDisplaySize, err = cfg.MinimumDisplaySize(); err != nil {
		return nil, err
	}

	if !cfg.Partition.DoAutoPart {
		if err = worker.RefreshDevices(); err != nil {
			return nil, errors.Wrap(err, "request device scan")
		}
	}
	return d, nil
}

// MustNew 同 New, 配置错误时 panic.
func MustNew(cfg *settings.Settings, worker Worker, options ...Option) *Delegate {
	d, err := New(cfg, worker, options...)
	if err != nil {
		panic(err)
	}
	return d
}

// OnDeviceRefreshed 订阅可视列表变化. 监听函数在触发它的调用内同步执行,
// 不得在其中修改 delegate.
func (d *Delegate) OnDeviceRefreshed(fn func(devices partman.DeviceList)) {
	d.onDeviceRefreshed = append(d.onDeviceRefreshed, fn)
}

// OnDeviceRefreshFailed 订阅扫描失败通知. 扫描失败时设备列表保持不变.
func (d *Delegate) OnDeviceRefreshFailed(fn func(err error)) {
	d.onDeviceRefreshFailed = append(d.onDeviceRefreshFailed, fn)
}

func (d *Delegate) OnAutoPartDone(fn func(result partman.Result)) {
	d.onAutoPartDone = append(d.onAutoPartDone, fn)
}

func (d *Delegate) OnManualPartDone(fn func(result partman.Result)) {
	d.onManualPartDone = append(d.onManualPartDone, fn)
}

// Devices 可视设备列表的拷贝.
func (d *Delegate) Devices() partman.DeviceList {
	return d.devices.Clone()
}

// RealDevices 最近一次扫描所得设备列表的拷贝.
func (d *Delegate) RealDevices() partman.DeviceList {
	return d.realDevices.Clone()
}

// Operations 操作日志的拷贝, 按追加顺序.
func (d *Delegate) Operations() []partman.Operation {
	return append([]partman.Operation(nil), d.operations...)
}

// MountPoints 尚未使用的挂载点.
func (d *Delegate) MountPoints() []string {
	return d.mountPoints.Available()
}

// UseMountPoint 占用一个挂载点. 调用方负责在构造操作前检查其可用性.
func (d *Delegate) UseMountPoint(mountPoint string) {
	d.logger.Debugf("use mount point %s, available %v", mountPoint, d.mountPoints.Available())
	if !d.mountPoints.Use(mountPoint) {
		d.logger.Warnf("mount point %s is not available", mountPoint)
	}
}

// MountPointAvailable 若 mountPoint 尚未被使用, 则返回true.
func (d *Delegate) MountPointAvailable(mountPoint string) bool {
	return d.mountPoints.Contains(mountPoint)
}

// FsTypeSupported 若 fs 在可选文件系统之列, 则返回true.
func (d *Delegate) FsTypeSupported(fs partman.FsType) bool {
	return d.fsTypes.Contains(fs)
}

// FsTypeNames 可选文件系统的规范名称, 保持配置顺序.
func (d *Delegate) FsTypeNames() []string {
	return d.fsTypes.Names()
}

func (d *Delegate) FsTypes() []partman.FsType {
	return d.fsTypes.All()
}

// GetPartitionType 可在 partition 上新建的分区角色.
// TODO: 依据扩展分区与主分区数量判定布局, 目前总是只允许主分区.
func (d *Delegate) GetPartitionType(partition partman.Partition) LayoutType {
	return LayoutPrimaryOnly
}

// AutoConf 请求自动分区, 结果经 OnAutoPartDone 送回.
func (d *Delegate) AutoConf() error {
	return d.worker.AutoPart()
}

// StaleOperations 最近一次重放中未匹配到任何分区的操作, 按日志顺序.
// 它们在可视列表中没有效果, 但仍会随 DoManualPart 提交.
func (d *Delegate) StaleOperations() []partman.Operation {
	return append([]partman.Operation(nil), d.stale...)
}

// DoManualPart 以当前操作日志的快照请求手动分区, 结果经 OnManualPartDone 送回.
func (d *Delegate) DoManualPart() error {
	d.logger.Infof("manual part with %d operations", len(d.operations))
	if len(d.stale) > 0 {
		d.logger.Warnf("%d submitted operations do not match the visual devices", len(d.stale))
	}
	return d.worker.ManualPart(d.Operations())
}

// CreatePartition 在未分配空间 partition 上新建分区.
// size 与 alignStart 目前仅被记录, 新分区总是占满原区域.
func (d *Delegate) CreatePartition(partition partman.Partition, fs partman.FsType,
	mountPoint string, size int64, alignStart bool) {
	proposed := partition
	proposed.Fs = fs
	proposed.MountPoint = mountPoint
	proposed.Freespace = partition.Length
	proposed.Type = d.GetPartitionType(partition).PartitionType()
	proposed.Status = partman.StatusNew
	if size != partition.Length || alignStart {
		d.logger.Warnf("create on %s: size %d (align start %v) not applied, use %d",
			partition, size, alignStart, partition.Length)
	}
	d.append(partman.NewOperationCreate(partition, proposed))
}

// DeletePartition 删除 partition, 其区域成为未分配空间.
func (d *Delegate) DeletePartition(partition partman.Partition) {
	proposed := partman.NewUnallocated(partition.DevicePath, partition.Offset, partition.Length)
	d.append(partman.NewOperationDelete(partition, proposed))
}

// FormatPartition 以 fs 格式化 partition 并设置挂载点.
func (d *Delegate) FormatPartition(partition partman.Partition, fs partman.FsType, mountPoint string) {
	proposed := partition
	proposed.Fs = fs
	proposed.MountPoint = mountPoint
	proposed.Status = partman.StatusFormatted
	d.append(partman.NewOperationFormat(partition, proposed))
}

// UpdateMountPoint 仅修改 partition 的挂载点.
func (d *Delegate) UpdateMountPoint(partition partman.Partition, mountPoint string) {
	proposed := partition
	proposed.MountPoint = mountPoint
	d.append(partman.NewOperationMountPoint(partition, proposed))
}

// ResizePartition 记录调整分区大小的请求. 目前该操作对可视列表没有影响.
func (d *Delegate) ResizePartition(partition partman.Partition, length int64) {
	proposed := partition
	proposed.Length = length
	if proposed.Freespace > length {
		proposed.Freespace = length
	}
	d.logger.Warnf("resize %s to %d is recorded but not applied", partition, length)
	d.append(partman.NewOperationResize(partition, proposed))
}

// ClearOperations 清空操作日志.
func (d *Delegate) ClearOperations() {
	d.logger.Infof("clear %d operations", len(d.operations))
	d.operations = nil
	d.refreshVisual()
}

func (d *Delegate) append(op partman.Operation) {
	d.logger.Infof("append %s", op)
	d.operations = append(d.operations, op)
	d.refreshVisual()
}

// refreshVisual 以过滤后的真实列表为起点, 依序重放全部操作.
func (d *Delegate) refreshVisual() {
	devices := d.baseDevices.Clone()
	stale := make([]partman.Operation, 0)
	for _, op := range d.operations {
		matched := false
		for i := range devices {
			if op.Original().DevicePath != devices[i].Path {
				continue
			}
			if devices[i].Partitions.IndexOfRegion(op.Original()) >= 0 {
				matched = true
			}
			devices[i].Partitions = op.ApplyToVisual(devices[i].Partitions)
		}
		if !matched {
			d.logger.Warnf("operation %s matches no partition, it has no visual effect", op)
			stale = append(stale, op)
		}
	}
	d.devices = devices
	d.stale = stale
	d.logger.Debugf("visual devices refreshed, %d devices, %d operations, digest %016x",
		len(devices), len(d.operations), devices.Digest())
	d.notifyDeviceRefreshed()
}

func (d *Delegate) notifyDeviceRefreshed() {
	for _, fn := range d.onDeviceRefreshed {
		fn(d.devices.Clone())
	}
}

// onDevicesRefreshed 以扫描结果整体替换真实列表.
func (d *Delegate) onDevicesRefreshed(devices partman.DeviceList) {
	d.realDevices = devices.Clone()
	base := devices.Clone()
	for i := range base {
		kept := make(partman.PartitionList, 0, len(base[i].Partitions))
		for _, p := range base[i].Partitions {
			if p.IsUnallocated() && p.GetLength() < d.minimumDisplaySize {
				continue
			}
			kept = append(kept, p)
		}
		base[i].Partitions = kept
	}
	d.baseDevices = base
	d.logger.Infof("devices refreshed, %d devices, digest %016x", len(devices), devices.Digest())
	d.refreshVisual()
}

// HandleEvent 处理一条工作者通知. 扫描失败时保留原有状态.
func (d *Delegate) HandleEvent(ev partman.Event) {
	switch e := ev.(type) {
	case partman.DevicesRefreshed:
		if e.Err != nil {
			d.logger.Errorf("scan devices failed: %v", e.Err)
			for _, fn := range d.onDeviceRefreshFailed {
				fn(e.Err)
			}
			return
		}
		d.onDevicesRefreshed(e.Devices)
	case partman.AutoPartDone:
		d.logger.Infof("auto part done, ok=%v err=%v", e.OK, e.Err)
		for _, fn := range d.onAutoPartDone {
			fn(e.Result)
		}
	case partman.ManualPartDone:
		d.logger.Infof("manual part done, ok=%v err=%v", e.OK, e.Err)
		for _, fn := range d.onManualPartDone {
			fn(e.Result)
		}
	default:
		d.logger.Warnf("ignore unknown event %T", ev)
	}
}

// ProcessEvents 处理所有已到达的通知, 不阻塞. 返回处理的通知数.
func (d *Delegate) ProcessEvents() int {
	n := 0
	for {
		select {
		case ev, ok := <-d.worker.Events():
			if !ok {
				return n
			}
			d.HandleEvent(ev)
			n++
		default:
			return n
		}
	}
}

// WaitEvent 阻塞直到处理完一条通知. 工作者关闭后返回 partman.ErrStopped.
func (d *Delegate) WaitEvent(ctx context.Context) error {
	select {
	case ev, ok := <-d.worker.Events():
		if !ok {
			return partman.ErrStopped
		}
		d.HandleEvent(ev)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
