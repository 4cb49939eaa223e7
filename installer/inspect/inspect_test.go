package inspect

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/kisun-bit/partman/disk/partman"
	"github.com/kisun-bit/partman/installer/delegate"
	"github.com/kisun-bit/partman/installer/settings"
	"github.com/kisun-bit/partman/util/logger"
)

type idleWorker struct {
	events chan partman.Event
}

func (w *idleWorker) RefreshDevices() error { return nil }
func (w *idleWorker) AutoPart() error { return nil }
func (w *idleWorker) ManualPart(ops []partman.Operation) error { return nil }
func (w *idleWorker) Events() <-chan partman.Event { return w.events }

func get(t *testing.T, s *Server, url string) (int, string) {
	rec := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	s.Handler().ServeHTTP(rec, req)
	return rec.Code, rec.Body.String()
}

func TestEmptySnapshot(t *testing.T) {
	s := New(0, logger.Nop())
	code, body := get(t, s, "/api/v1/devices")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, gjson.Get(body, "devices").IsArray())
	assert.Zero(t, len(gjson.Get(body, "devices").Array()))

	code, body = get(t, s, "/api/v1/operations")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "[]", body)
}

func TestAttachFollowsDelegate(t *testing.T) {
	d, err := delegate.New(settings.Default(), &idleWorker{}, delegate.WithLogger(logger.Nop()))
	require.NoError(t, err)
	s := New(0, logger.Nop())
	s.Attach(d)

	d.HandleEvent(partman.DevicesRefreshed{Devices: partman.DeviceList{{
		Path:       "/dev/vda",
		Length:     8 << 30,
		Partitions: partman.PartitionList{partman.NewUnallocated("/dev/vda", 0, 8<<30)},
	}}})
	free := d.Devices()[0].Partitions[0]
	d.CreatePartition(free, partman.FsXfs, "/", free.Length, false)

	code, body := get(t, s, "/api/v1/devices")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/dev/vda", gjson.Get(body, "devices.0.path").String())
	assert.Equal(t, "xfs", gjson.Get(body, "devices.0.partitions.0.fs").String())
	assert.Len(t, gjson.Get(body, "digest").String(), 16)

	code, body = get(t, s, "/api/v1/device?path=/dev/vda")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "new", gjson.Get(body, "partitions.0.status").String())

	code, _ = get(t, s, "/api/v1/device?path=/dev/sdz")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = get(t, s, "/api/v1/operations")
	require.Equal(t, http.StatusOK, code)
	ops, err := partman.UnmarshalOperations(body)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, partman.OperationCreate, ops[0].Type())
}

func TestPprofRoute(t *testing.T) {
	s := New(0, logger.Nop())
	code, _ := get(t, s, "/api/v1/pprof/cmdline")
	assert.Equal(t, http.StatusOK, code)
}
