package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/kisun-bit/partman/disk/partman"
	"github.com/kisun-bit/partman/installer/delegate"
	"github.com/kisun-bit/partman/installer/inspect"
	"github.com/kisun-bit/partman/installer/settings"
	"github.com/kisun-bit/partman/util/logger"
)

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --devices devices.json --root ext4\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --config installer.yaml --auto\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --inspect 6060 --root xfs --apply\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	pflag.PrintDefaults()
}

func main() {
	var configPath = pflag.StringP("config", "c", "", "installer settings file (yaml)")
	var auto = pflag.BoolP("auto", "a", false, "run auto part instead of scanning devices")
	var inspectPort = pflag.IntP("inspect", "i", -1, "serve the inspect api on this port (overrides settings)")
	var devicesPath = pflag.StringP("devices", "d", "", "simulate devices from a json file instead of scanning the host")
	var rootFs = pflag.StringP("root", "r", "", "create a root partition with this filesystem on the largest free space")
	var apply = pflag.Bool("apply", false, "submit the pending operations as a manual part request")
	var help = pflag.BoolP("help", "h", false, "show this help message")
	pflag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}

	cfg, err := settings.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *auto {
		cfg.Partition.DoAutoPart = true
	}
	if *inspectPort >= 0 {
		cfg.Inspect.Port = *inspectPort
	}
	closeLog, err := setupLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err = run(ctx, cfg, *devicesPath, *rootFs, *apply); err != nil {
		logger.Errorf("partsim: %v", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *settings.Settings) (func(), error) {
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	writers := []io.Writer{os.Stdout}
	closer := func() {}
	if cfg.Logging.File != "" {
		fp, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, errors.Wrapf(err, "open log file %s", cfg.Logging.File)
		}
		writers = append(writers, fp)
		closer = func() { _ = fp.Close() }
	}
	logger.SetupDefaultLogger(logger.NewLogger("partman", level, writers...))
	return closer, nil
}

func newBackend(cfg *settings.Settings, devicesPath string) partman.Backend {
	if devicesPath != "" {
		return &fileBackend{path: devicesPath}
	}
	return partman.NewLinuxBackend(
		partman.WithAutoPartHook(cfg.Backend.AutoPartHook),
		partman.WithManualPartHook(cfg.Backend.ManualPartHook))
}

func run(ctx context.Context, cfg *settings.Settings, devicesPath, rootFs string, apply bool) error {
	manager, err := partman.NewPartitionManager(newBackend(cfg, devicesPath),
		partman.WithQueueSize(cfg.Backend.QueueSize))
	if err != nil {
		return err
	}
	defer manager.Close()

	d, err := delegate.New(cfg, manager)
	if err != nil {
		return err
	}

	if cfg.Inspect.Port > 0 {
		srv := inspect.New(cfg.Inspect.Port, nil)
		srv.Attach(d)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	done := false
	var result error
	finish := func(name string) func(partman.Result) {
		return func(r partman.Result) {
			logger.Infof("%s done: ok=%v", name, r.OK)
			if !r.OK {
				result = errors.Wrap(r.Err, name)
			}
			done = true
		}
	}
	d.OnAutoPartDone(finish("auto part"))
	d.OnManualPartDone(finish("manual part"))

	// 首次扫描结果到达后再规划, 规划本身会再次触发 OnDeviceRefreshed,
	// 故不在回调中修改 delegate.
	scanned, planPending := false, false
	d.OnDeviceRefreshed(func(devices partman.DeviceList) {
		printDevices(os.Stdout, devices)
		if !scanned {
			scanned, planPending = true, true
		}
	})
	d.OnDeviceRefreshFailed(func(err error) {
		result = errors.Wrap(err, "scan devices")
		done = true
	})

	if cfg.Partition.DoAutoPart {
		if err = d.AutoConf(); err != nil {
			return err
		}
	}

	for !done {
		if err = d.WaitEvent(ctx); err != nil {
			return err
		}
		if !planPending {
			continue
		}
		planPending = false
		if rootFs != "" {
			planRoot(d, rootFs)
		}
		if !apply {
			done = true
		} else if err = d.DoManualPart(); err != nil {
			result = err
			done = true
		}
	}
	if cfg.Inspect.Port > 0 && result == nil {
		logger.Infof("inspect api still serving on :%d, press Ctrl-C to exit", cfg.Inspect.Port)
		<-ctx.Done()
	}
	return result
}

// planRoot 在最大的未分配空间上新建根分区.
func planRoot(d *delegate.Delegate, fsName string) {
	fs, ok := partman.GetFsTypeByName(fsName)
	if !ok || !d.FsTypeSupported(fs) {
		logger.Errorf("filesystem %s is not one of %v", fsName, d.FsTypeNames())
		return
	}
	if !d.MountPointAvailable("/") {
		logger.Errorf("mount point / is not available")
		return
	}
	devices := d.Devices()
	var target *partman.Partition
	for i := range devices {
		for j := range devices[i].Partitions {
			p := &devices[i].Partitions[j]
			if p.IsUnallocated() && (target == nil || p.Length > target.Length) {
				target = p
			}
		}
	}
	if target == nil {
		logger.Warnf("no free space for the root partition")
		return
	}
	d.UseMountPoint("/")
	d.CreatePartition(*target, fs, "/", target.Length, true)
}

func printDevices(w io.Writer, devices partman.DeviceList) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	for _, dev := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", dev.Path, dev.Model, humanize.IBytes(uint64(dev.Length)), dev.Table)
		for _, p := range dev.Partitions {
			name := p.Path
			if name == "" {
				name = "(free)"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n", name, p.Type, humanize.IBytes(uint64(p.Length)),
				p.Fs, p.MountPoint, p.Status)
		}
	}
	fmt.Fprintln(tw, strings.Repeat("-", 48))
}

// fileBackend 从JSON文件模拟设备, 分区请求仅记录日志.
type fileBackend struct {
	path string
}

func (b *fileBackend) Scan(context.Context) (partman.DeviceList, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, errors.Wrapf(err, "read devices %s", b.path)
	}
	var devices partman.DeviceList
	if err = json.Unmarshal(data, &devices); err != nil {
		return nil, errors.Wrapf(err, "parse devices %s", b.path)
	}
	return devices, nil
}

func (b *fileBackend) AutoPart(context.Context) error {
	logger.Infof("simulated auto part")
	return nil
}

func (b *fileBackend) ManualPart(_ context.Context, ops []partman.Operation) error {
	js, err := partman.MarshalOperations(ops)
	if err != nil {
		return err
	}
	logger.Infof("simulated manual part: %s", js)
	return nil
}
