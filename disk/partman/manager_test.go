package partman

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu      sync.Mutex
	calls   []string
	devices DeviceList
	scanErr error
	partErr error
	manual  [][]Operation
	gate    chan struct{} // 非空时每次调用都等待放行.
	panics  bool
}

func (f *fakeBackend) record(name string) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Scan(context.Context) (DeviceList, error) {
	f.record("scan")
	return f.devices, f.scanErr
}

func (f *fakeBackend) AutoPart(context.Context) error {
	f.record("auto")
	return f.partErr
}

func (f *fakeBackend) ManualPart(_ context.Context, ops []Operation) error {
	f.record("manual")
	f.mu.Lock()
	f.manual = append(f.manual, ops)
	f.mu.Unlock()
	return f.partErr
}

func nextEvent(t *testing.T, m *PartitionManager) Event {
	t.Helper()
	select {
	case ev := <-m.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func TestPartitionManagerRunsInOrder(t *testing.T) {
	backend := &fakeBackend{devices: testDevices()}
	m, err := NewPartitionManager(backend)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.RefreshDevices())
	require.NoError(t, m.AutoPart())
	require.NoError(t, m.ManualPart(nil))

	ev := nextEvent(t, m)
	refreshed, ok := ev.(DevicesRefreshed)
	require.True(t, ok, "%T", ev)
	assert.NoError(t, refreshed.Err)
	assert.Equal(t, testDevices(), refreshed.Devices)

	_, ok = nextEvent(t, m).(AutoPartDone)
	assert.True(t, ok)
	manual, ok := nextEvent(t, m).(ManualPartDone)
	require.True(t, ok)
	assert.True(t, manual.OK)
	assert.NoError(t, manual.Err)

	assert.Equal(t, []string{"scan", "auto", "manual"}, backend.Calls())
}

func TestPartitionManagerReturnsIndependentCopy(t *testing.T) {
	backend := &fakeBackend{devices: testDevices()}
	m, err := NewPartitionManager(backend)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.RefreshDevices())
	ev := nextEvent(t, m).(DevicesRefreshed)
	ev.Devices[0].Partitions[0].MountPoint = "/"
	assert.Empty(t, backend.devices[0].Partitions[0].MountPoint)
}

func TestPartitionManagerReportsFailures(t *testing.T) {
	backend := &fakeBackend{scanErr: errors.New("no lsblk"), partErr: errors.New("hook failed")}
	m, err := NewPartitionManager(backend)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.RefreshDevices())
	require.NoError(t, m.AutoPart())

	refreshed := nextEvent(t, m).(DevicesRefreshed)
	assert.EqualError(t, refreshed.Err, "no lsblk")
	assert.Nil(t, refreshed.Devices)

	auto := nextEvent(t, m).(AutoPartDone)
	assert.False(t, auto.OK)
	assert.EqualError(t, auto.Err, "hook failed")
}

func TestPartitionManagerRecoversPanic(t *testing.T) {
	m, err := NewPartitionManager(&fakeBackend{panics: true})
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.ManualPart(nil))
	done := nextEvent(t, m).(ManualPartDone)
	assert.False(t, done.OK)
	assert.Contains(t, done.Err.Error(), "boom")
}

func TestPartitionManagerSnapshotsOperations(t *testing.T) {
	backend := &fakeBackend{}
	m, err := NewPartitionManager(backend)
	require.NoError(t, err)
	defer m.Close()

	p := testDevices()[0].Partitions[1]
	ops := []Operation{NewOperationCreate(p, p)}
	require.NoError(t, m.ManualPart(ops))
	ops[0] = NewOperationDelete(p, p)

	nextEvent(t, m)
	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.manual, 1)
	assert.Equal(t, OperationCreate, backend.manual[0][0].Type())
}

func TestPartitionManagerQueueFull(t *testing.T) {
	backend := &fakeBackend{gate: make(chan struct{})}
	m, err := NewPartitionManager(backend, WithQueueSize(1))
	require.NoError(t, err)

	// 首个请求被工作者取走并阻塞, 第二个请求被分发协程持有, 第三个占满队列.
	queueDrained := func() bool { return len(m.requests) == 0 }
	require.NoError(t, m.RefreshDevices())
	require.Eventually(t, queueDrained, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, m.RefreshDevices())
	require.Eventually(t, queueDrained, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, m.RefreshDevices())
	assert.ErrorIs(t, m.RefreshDevices(), ErrQueueFull)

	close(backend.gate)
	require.NoError(t, m.Close())
}

func TestPartitionManagerClose(t *testing.T) {
	backend := &fakeBackend{gate: make(chan struct{})}
	m, err := NewPartitionManager(backend)
	require.NoError(t, err)

	require.NoError(t, m.AutoPart())
	require.Eventually(t, func() bool { return len(m.requests) == 0 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, m.AutoPart())

	closed := make(chan struct{})
	go func() {
		_ = m.Close()
		close(closed)
	}()

	// Close 等待正在执行的请求.
	select {
	case <-closed:
		t.Fatal("close returned while a request was running")
	case <-time.After(100 * time.Millisecond):
	}
	close(backend.gate)
	<-closed

	assert.ErrorIs(t, m.RefreshDevices(), ErrStopped)
	assert.ErrorIs(t, m.ManualPart(nil), ErrStopped)
	assert.NoError(t, m.Close())

	events := 0
	for range m.Events() {
		events++
	}
	assert.LessOrEqual(t, events, 2)
	assert.GreaterOrEqual(t, events, 1)
	assert.Contains(t, backend.Calls(), "auto")
}

func TestNewPartitionManagerNilBackend(t *testing.T) {
	_, err := NewPartitionManager(nil)
	assert.Error(t, err)
}
