package partman

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"

	"github.com/kisun-bit/partman/disk/table"
	"github.com/kisun-bit/partman/util"
	"github.com/kisun-bit/partman/util/logger"
	"github.com/kisun-bit/partman/util/tempfile"
)

var ErrNoHook = errors.New("partition hook is not configured")

const (
	_SettleRetries  = 3
	_SettleInterval = 500 * time.Millisecond
)

type linuxBackendCfg struct {
	autoPartHook   string
	manualPartHook string
	logger         *zap.SugaredLogger
}

type LinuxBackendOption func(cfg *linuxBackendCfg)

// WithAutoPartHook 自动分区时经shell执行的命令行, 不附加参数.
func WithAutoPartHook(hook string) LinuxBackendOption {
	return func(cfg *linuxBackendCfg) {
		cfg.autoPartHook = hook
	}
}

// WithManualPartHook 手动分区时经shell执行的命令行, 末尾附加操作日志JSON文件的路径.
func WithManualPartHook(hook string) LinuxBackendOption {
	return func(cfg *linuxBackendCfg) {
		cfg.manualPartHook = hook
	}
}

func WithBackendLogger(l *zap.SugaredLogger) LinuxBackendOption {
	return func(cfg *linuxBackendCfg) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// LinuxBackend 基于 lsblk 与原始分区表的设备扫描实现.
type LinuxBackend struct {
	cfg linuxBackendCfg

	exec       func(ctx context.Context, name string, args ...string) (int, string, string, error)
	readLayout func(path string, size, sectorSize int64) (table.Layout, error)
	freeBytes  func(ctx context.Context, mountPoint string) (int64, error)
	shell      func(ctx context.Context, line string) (int, string, string, error)
}

func NewLinuxBackend(options ...LinuxBackendOption) *LinuxBackend {
	b := &LinuxBackend{
		cfg:        linuxBackendCfg{logger: logger.Named("backend")},
		exec:       util.Exec,
		readLayout: table.ReadDisk,
		freeBytes:  mountedFreeBytes,
		shell:      shellLine,
	}
	for _, opt := range options {
		opt(&b.cfg)
	}
	return b
}

func (b *LinuxBackend) Scan(ctx context.Context) (DeviceList, error) {
	b.settle(ctx)

	args := []string{"-J", "-b", "-p", "-o", strings.Join(lsblkColumns, ",")}
	r, o, eo, err := b.exec(ctx, "lsblk", args...)
	if err != nil {
		return nil, errors.Wrap(err, "lsblk")
	}
	if r != 0 {
		return nil, errors.Errorf("lsblk exited with %d: %s", r, strings.TrimSpace(eo))
	}
	disks, err := parseLsblk(o)
	if err != nil {
		return nil, err
	}

	devices := make(DeviceList, 0, len(disks))
	for _, blk := range disks {
		layout, err := b.readLayout(blk.Path, blk.Size, blk.SectorSize)
		if err != nil {
			// 单个磁盘不可读不影响其余磁盘.
			b.cfg.logger.Warnf("skip %s: %v", blk.Path, err)
			continue
		}
		dev := buildDevice(blk, layout)
		b.fillFreespace(ctx, dev.Partitions)
		b.cfg.logger.Debugf("found %s", dev)
		devices = append(devices, dev)
	}
	return devices, nil
}

// fillFreespace 以文件系统的剩余空间填充已挂载分区的 Freespace, 未挂载分区保持为0.
func (b *LinuxBackend) fillFreespace(ctx context.Context, partitions PartitionList) {
	for i := range partitions {
		p := &partitions[i]
		if p.MountPoint == "" || p.MountPoint == "[SWAP]" {
			continue
		}
		free, err := b.freeBytes(ctx, p.MountPoint)
		if err != nil {
			b.cfg.logger.Debugf("usage of %s: %v", p.MountPoint, err)
			continue
		}
		p.Freespace = clampFree(free, p.Length)
	}
}

func mountedFreeBytes(ctx context.Context, mountPoint string) (int64, error) {
	usage, err := disk.UsageWithContext(ctx, mountPoint)
	if err != nil {
		return 0, err
	}
	return int64(usage.Free), nil
}

// settle 等待 udev 处理完挂起的事件. 失败仅记录日志.
func (b *LinuxBackend) settle(ctx context.Context) {
	err := util.Retry(ctx, func() error {
		r, _, eo, err := b.exec(ctx, "udevadm", "settle", "--timeout=10")
		if err != nil {
			return err
		}
		if r != 0 {
			return errors.Errorf("udevadm settle exited with %d: %s", r, strings.TrimSpace(eo))
		}
		return nil
	}, _SettleRetries, _SettleInterval)
	if err != nil {
		b.cfg.logger.Warnf("udevadm settle: %v", err)
	}
}

func (b *LinuxBackend) AutoPart(ctx context.Context) error {
	if b.cfg.autoPartHook == "" {
		return errors.Wrap(ErrNoHook, "auto part")
	}
	return b.runHook(ctx, b.cfg.autoPartHook)
}

func (b *LinuxBackend) ManualPart(ctx context.Context, ops []Operation) error {
	if b.cfg.manualPartHook == "" {
		return errors.Wrap(ErrNoHook, "manual part")
	}
	js, err := MarshalOperations(ops)
	if err != nil {
		return err
	}
	path, err := tempfile.WriteTemp("partman-ops-*.json", []byte(js))
	if err != nil {
		return err
	}
	defer os.Remove(path)

	b.cfg.logger.Infof("manual part with %d operations (%s)", len(ops), path)
	return b.runHook(ctx, b.cfg.manualPartHook, path)
}

func shellLine(ctx context.Context, line string) (int, string, string, error) {
	return util.ExecV1(ctx, "%s", line)
}

func (b *LinuxBackend) runHook(ctx context.Context, hook string, args ...string) error {
	hook = strings.TrimSpace(hook)
	if hook == "" {
		return ErrNoHook
	}
	line := hook
	for _, arg := range args {
		line += " " + util.ShellQuote(arg)
	}
	r, o, eo, err := b.shell(ctx, line)
	if o != "" {
		b.cfg.logger.Debugf("%s: %s", hook, o)
	}
	if err != nil {
		return errors.Wrapf(err, "run hook %s", hook)
	}
	if r != 0 {
		return errors.Errorf("hook %s exited with %d: %s", hook, r, strings.TrimSpace(eo))
	}
	return nil
}
