package partman

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kisun-bit/partman/util/basic"
	"github.com/kisun-bit/partman/util/logger"
)

var (
	ErrStopped   = errors.New("partition manager stopped")
	ErrQueueFull = errors.New("partition manager request queue is full")
)

const (
	_DefaultQueueSize  = 32
	_DefaultEventQueue = 32
)

type requestKind int

const (
	requestRefresh requestKind = iota
	requestAutoPart
	requestManualPart
)

func (k requestKind) String() string {
	switch k {
	case requestRefresh:
		return "refresh-devices"
	case requestAutoPart:
		return "auto-part"
	default:
		return "manual-part"
	}
}

type request struct {
	kind requestKind
	ops  []Operation
}

type managerCfg struct {
	queueSize  int
	eventQueue int
	logger     *zap.SugaredLogger
}

type ManagerOption func(cfg *managerCfg)

// WithQueueSize 设置请求队列长度(默认为32).
func WithQueueSize(size int) ManagerOption {
	return func(cfg *managerCfg) {
		if size > 0 {
			cfg.queueSize = size
		}
	}
}

// WithEventQueueSize 设置通知管道的缓存大小(默认为32).
func WithEventQueueSize(size int) ManagerOption {
	return func(cfg *managerCfg) {
		if size > 0 {
			cfg.eventQueue = size
		}
	}
}

func WithManagerLogger(l *zap.SugaredLogger) ManagerOption {
	return func(cfg *managerCfg) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// PartitionManager 设备扫描工作者.
// 请求按提交顺序逐个执行(单协程池), 提交方从不阻塞; 结果经 Events 异步送回.
// 工作者不持有任何调用方状态, 送回的设备列表是独立副本.
type PartitionManager struct {
	backend Backend
	cfg     managerCfg

	// ctx 控制请求分发与通知投递, Close 时取消; 正在执行的请求使用 workCtx, 不会被取消.
	ctx     context.Context
	cancel  context.CancelFunc
	workCtx context.Context

	requests chan request
	events   chan Event

	pool           *ants.PoolWithFunc
	poolWG         sync.WaitGroup
	dispatcherDone chan struct{}

	mu        sync.Mutex
	stopped   bool
	closeOnce sync.Once
}

func NewPartitionManager(backend Backend, options ...ManagerOption) (m *PartitionManager, err error) {
	if backend == nil {
		return nil, errors.New("nil partition backend")
	}
	m = &PartitionManager{
		backend: backend,
		cfg: managerCfg{
			queueSize:  _DefaultQueueSize,
			eventQueue: _DefaultEventQueue,
			logger:     logger.Named("partman"),
		},
		workCtx:        context.Background(),
		dispatcherDone: make(chan struct{}),
	}
	for _, opt := range options {
		opt(&m.cfg)
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.requests = make(chan request, m.cfg.queueSize)
	m.events = make(chan Event, m.cfg.eventQueue)

	if m.pool, err = ants.NewPoolWithFunc(1, m.handle); err != nil {
		m.cancel()
		return nil, errors.Wrap(err, "create partition worker pool")
	}
	go m.dispatch()
	return m, nil
}

func (m *PartitionManager) String() string {
	return fmt.Sprintf("<PartitionManager(backend=%T)>", m.backend)
}

// Events 完成通知管道, Close 后关闭.
func (m *PartitionManager) Events() <-chan Event {
	return m.events
}

func (m *PartitionManager) RefreshDevices() error {
	return m.post(request{kind: requestRefresh})
}

func (m *PartitionManager) AutoPart() error {
	return m.post(request{kind: requestAutoPart})
}

// ManualPart 提交手动分区请求, ops 被复制后随请求传递.
func (m *PartitionManager) ManualPart(ops []Operation) error {
	snapshot := make([]Operation, len(ops))
	copy(snapshot, ops)
	return m.post(request{kind: requestManualPart, ops: snapshot})
}

// Close 停止接收新请求, 丢弃排队中的请求, 等待正在执行的请求结束后释放工作者.
func (m *PartitionManager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()

		m.cancel()
		<-m.dispatcherDone
		m.poolWG.Wait()
		m.pool.Release()
		close(m.events)
		m.cfg.logger.Debugf("%s closed", m)
	})
	return nil
}

func (m *PartitionManager) post(req request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	select {
	case m.requests <- req:
		m.cfg.logger.Debugf("queued %s request", req.kind)
		return nil
	default:
		return ErrQueueFull
	}
}

func (m *PartitionManager) dispatch() {
	defer close(m.dispatcherDone)
	for {
		select {
		case <-m.ctx.Done():
			return
		case req := <-m.requests:
			if basic.Cancelled(m.ctx) {
				return
			}
			m.poolWG.Add(1)
			// 池容量为1, Invoke 在工作者空闲前阻塞, 从而保证请求按序执行.
			if err := m.pool.Invoke(req); err != nil {
				m.poolWG.Done()
				m.cfg.logger.Errorf("failed to run %s request: %v", req.kind, err)
			}
		}
	}
}

func (m *PartitionManager) handle(i interface{}) {
	defer m.poolWG.Done()
	req := i.(request)

	var ev Event
	func() {
		defer func() {
			if r := recover(); r != nil {
				err := errors.Errorf("%s request panicked: %v", req.kind, r)
				m.cfg.logger.Errorf("%v", err)
				ev = failedEvent(req.kind, err)
			}
		}()
		ev = m.run(req)
	}()
	m.emit(ev)
}

func (m *PartitionManager) run(req request) Event {
	switch req.kind {
	case requestRefresh:
		devices, err := m.backend.Scan(m.workCtx)
		if err != nil {
			m.cfg.logger.Warnf("scan devices failed: %v", err)
			return DevicesRefreshed{Err: err}
		}
		m.cfg.logger.Infof("scanned %d devices", len(devices))
		return DevicesRefreshed{Devices: devices.Clone()}
	case requestAutoPart:
		err := m.backend.AutoPart(m.workCtx)
		if err != nil {
			m.cfg.logger.Warnf("auto part failed: %v", err)
		}
		return AutoPartDone{resultOf(err)}
	default:
		err := m.backend.ManualPart(m.workCtx, req.ops)
		if err != nil {
			m.cfg.logger.Warnf("manual part failed: %v", err)
		}
		return ManualPartDone{resultOf(err)}
	}
}

func failedEvent(kind requestKind, err error) Event {
	switch kind {
	case requestRefresh:
		return DevicesRefreshed{Err: err}
	case requestAutoPart:
		return AutoPartDone{resultOf(err)}
	default:
		return ManualPartDone{resultOf(err)}
	}
}

func (m *PartitionManager) emit(ev Event) {
	select {
	case m.events <- ev:
	case <-m.ctx.Done():
		// 关闭后管道已满时丢弃通知.
		select {
		case m.events <- ev:
		default:
			m.cfg.logger.Warnf("drop %T after close", ev)
		}
	}
}
