package tempfile

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

var (
	mu sync.Mutex

	g_tempdir = os.TempDir()
)

func GetTempDir() string {
	mu.Lock()
	defer mu.Unlock()

	return g_tempdir
}

// CreateTemp 在全局临时目录下创建临时文件.
func CreateTemp(pattern string) (f *os.File, err error) {
	return os.CreateTemp(GetTempDir(), pattern)
}

// WriteTemp 创建临时文件并写入 data, 返回文件路径. 文件由调用方负责删除.
func WriteTemp(pattern string, data []byte) (string, error) {
	f, err := CreateTemp(pattern)
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", errors.Wrapf(err, "write temp file %s", f.Name())
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", errors.Wrapf(err, "close temp file %s", f.Name())
	}
	return f.Name(), nil
}

// SetTempDir 设置全局临时目录, 目录必须存在且可写.
func SetTempDir(path string) error {
	mu.Lock()
	defer mu.Unlock()

	// Try to create a file in the directory to make sure we have
	// permissions and the directory exists.
	tmpfile, err := os.CreateTemp(path, "tmp")
	if err != nil {
		return err
	}
	tmpfile.Close()

	defer os.Remove(tmpfile.Name())

	g_tempdir = path

	return nil
}
