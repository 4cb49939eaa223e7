package partman

import "context"

// Backend 设备扫描及分区执行的实际承担者, 仅在 PartitionManager 的工作协程中被调用.
type Backend interface {
	// Scan 枚举设备及其分区布局.
	Scan(ctx context.Context) (DeviceList, error)

	// AutoPart 执行自动分区.
	AutoPart(ctx context.Context) error

	// ManualPart 按操作日志执行手动分区.
	ManualPart(ctx context.Context, ops []Operation) error
}

// Result 自动/手动分区的执行结果, 由上层转发而不做解释.
type Result struct {
	OK  bool
	Err error
}

func resultOf(err error) Result {
	return Result{OK: err == nil, Err: err}
}

// Event PartitionManager 发出的完成通知.
type Event interface {
	event()
}

// DevicesRefreshed 扫描完成. Err 非空时 Devices 无意义.
type DevicesRefreshed struct {
	Devices DeviceList
	Err     error
}

type AutoPartDone struct {
	Result
}

type ManualPartDone struct {
	Result
}

func (DevicesRefreshed) event() {}
func (AutoPartDone) event()     {}
func (ManualPartDone) event()   {}
