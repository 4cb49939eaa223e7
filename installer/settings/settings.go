package settings

import (
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/kisun-bit/partman/util"
	"github.com/kisun-bit/partman/util/logger"
)

const (
	DefaultMountPoints          = "/;/boot;/home;/tmp;/var;/srv;/opt;/usr/local"
	DefaultSupportedFs          = "ext4;ext3;ext2;btrfs;xfs;jfs;linux-swap;fat32;efi"
	DefaultMinimumSizeToDisplay = "2 MiB"
	DefaultQueueSize            = 32
	DefaultInspectPort          = 0
)

// Partition 分区相关配置.
type Partition struct {
	// MountPoints 以 ';' 分隔的可选挂载点, 保持配置顺序.
	MountPoints string `yaml:"mount_points"`
	// SupportedFs 以 ';' 分隔的可选文件系统名称.
	SupportedFs string `yaml:"supported_fs"`
	// DoAutoPart 为真时不在启动时扫描设备.
	DoAutoPart bool `yaml:"do_auto_part"`
	// MinimumSizeToDisplay 短于该值的未分配空间不展示, 例如 "2 MiB".
	MinimumSizeToDisplay string `yaml:"minimum_size_to_display"`
}

// Backend 分区执行相关配置.
type Backend struct {
	AutoPartHook   string `yaml:"auto_part_hook"`
	ManualPartHook string `yaml:"manual_part_hook"`
	QueueSize      int    `yaml:"queue_size"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Inspect struct {
	// Port 为0时不启动调试服务.
	Port int `yaml:"port"`
}

// Settings 安装器配置.
type Settings struct {
	Partition Partition `yaml:"partition"`
	Backend   Backend   `yaml:"backend"`
	Logging   Logging   `yaml:"logging"`
	Inspect   Inspect   `yaml:"inspect"`
}

func Default() *Settings {
	return &Settings{
		Partition: Partition{
			MountPoints:          DefaultMountPoints,
			SupportedFs:          DefaultSupportedFs,
			MinimumSizeToDisplay: DefaultMinimumSizeToDisplay,
		},
		Backend: Backend{
			QueueSize: DefaultQueueSize,
		},
		Logging: Logging{
			Level: "info",
		},
		Inspect: Inspect{
			Port: DefaultInspectPort,
		},
	}
}

// Load 从 path 加载配置, 未出现的键保留默认值.
// 字符串值中的环境变量(%VAR%, $VAR)会被展开. path 为空或文件不存在时返回默认配置.
func Load(path string) (*Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("settings file %s not found, use defaults", path)
			return s, nil
		}
		return nil, errors.Wrapf(err, "read settings %s", path)
	}
	if err = yaml.Unmarshal(data, s); err != nil {
		return nil, errors.Wrapf(err, "parse settings %s", path)
	}
	s.expandEnv()
	if err = s.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid settings %s", path)
	}
	return s, nil
}

func (s *Settings) expandEnv() {
	for _, v := range []*string{
		&s.Partition.MountPoints,
		&s.Partition.SupportedFs,
		&s.Backend.AutoPartHook,
		&s.Backend.ManualPartHook,
		&s.Logging.File,
	} {
		*v = util.ExpandEnv(*v)
	}
}

// Validate 检查配置项的取值. 挂载点与文件系统列表的内容由资源池负责校验.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Partition.MountPoints) == "" {
		return errors.New("partition.mount_points is empty")
	}
	if strings.TrimSpace(s.Partition.SupportedFs) == "" {
		return errors.New("partition.supported_fs is empty")
	}
	if _, err := s.MinimumDisplaySize(); err != nil {
		return err
	}
	if s.Backend.QueueSize <= 0 {
		return errors.Errorf("backend.queue_size must be positive, got %d", s.Backend.QueueSize)
	}
	if _, err := logger.ParseLevel(s.Logging.Level); err != nil {
		return errors.Wrap(err, "logging.level")
	}
	if s.Inspect.Port < 0 || s.Inspect.Port > 65535 {
		return errors.Errorf("inspect.port %d out of range", s.Inspect.Port)
	}
	return nil
}

// MinimumDisplaySize 解析 partition.minimum_size_to_display, 空值视为0.
func (s *Settings) MinimumDisplaySize() (int64, error) {
	v := strings.TrimSpace(s.Partition.MinimumSizeToDisplay)
	if v == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, errors.Wrapf(err, "partition.minimum_size_to_display %q", v)
	}
	if n > math.MaxInt64 {
		return 0, errors.Errorf("partition.minimum_size_to_display %q is too large", v)
	}
	return int64(n), nil
}

func (s *Settings) String() string {
	b, err := yaml.Marshal(s)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
