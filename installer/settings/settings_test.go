package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "installer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	size, err := s.MinimumDisplaySize()
	require.NoError(t, err)
	assert.EqualValues(t, 2<<20, size)
	assert.False(t, s.Partition.DoAutoPart)
}

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), s)

	s, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoadOverridesAndExpands(t *testing.T) {
	t.Setenv("PARTMAN_HOOKS", "/opt/hooks")
	path := writeSettings(t, `
partition:
  mount_points: "/;/home;/boot"
  do_auto_part: true
  minimum_size_to_display: 16MB
backend:
  manual_part_hook: "%PARTMAN_HOOKS%/manual.sh"
  auto_part_hook: "${PARTMAN_HOOKS}/auto.sh"
logging:
  level: debug
`)
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/;/home;/boot", s.Partition.MountPoints)
	assert.Equal(t, DefaultSupportedFs, s.Partition.SupportedFs)
	assert.True(t, s.Partition.DoAutoPart)
	assert.Equal(t, "/opt/hooks/manual.sh", s.Backend.ManualPartHook)
	assert.Equal(t, "/opt/hooks/auto.sh", s.Backend.AutoPartHook)
	assert.Equal(t, DefaultQueueSize, s.Backend.QueueSize)

	size, err := s.MinimumDisplaySize()
	require.NoError(t, err)
	assert.EqualValues(t, 16000000, size)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"syntax":  "partition: [",
		"mounts":  "partition:\n  mount_points: ''\n",
		"fs":      "partition:\n  supported_fs: ' '\n",
		"size":    "partition:\n  minimum_size_to_display: lots\n",
		"huge":    "partition:\n  minimum_size_to_display: 9 EiB\n",
		"queue":   "backend:\n  queue_size: 0\n",
		"level":   "logging:\n  level: loud\n",
		"inspect": "inspect:\n  port: 70000\n",
	}
	for name, content := range cases {
		_, err := Load(writeSettings(t, content))
		assert.Error(t, err, name)
	}
}

func TestString(t *testing.T) {
	out := Default().String()
	assert.Contains(t, out, "mount_points:")
	assert.Contains(t, out, "/;/boot;/home")
}

func TestMinimumDisplaySizeOverflow(t *testing.T) {
	s := Default()
	s.Partition.MinimumSizeToDisplay = "8 EiB"
	_, err := s.MinimumDisplaySize()
	assert.Error(t, err)

	s.Partition.MinimumSizeToDisplay = "7 EiB"
	size, err := s.MinimumDisplaySize()
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))
}
