package partman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationCreate(t *testing.T) {
	parts := testDevices()[0].Partitions
	orig := parts[1]
	proposed := orig
	proposed.Path = "/dev/sda2"
	proposed.Fs = FsXfs
	proposed.MountPoint = "/home"
	proposed.Type = TypeNormal
	proposed.Status = StatusNew

	op := NewOperationCreate(orig, proposed)
	assert.Equal(t, OperationCreate, op.Type())
	assert.Equal(t, orig, op.Original())
	assert.Equal(t, proposed, op.Proposed())

	out := op.ApplyToVisual(parts.Clone())
	require.Len(t, out, 2)
	assert.Equal(t, parts[0], out[0])
	assert.Equal(t, proposed, out[1])
}

func TestOperationNoMatch(t *testing.T) {
	parts := testDevices()[0].Partitions
	ghost := NewUnallocated("/dev/sdb", 0, 1<<20)

	ops := []Operation{
		NewOperationCreate(ghost, ghost),
		NewOperationDelete(ghost, ghost),
		NewOperationFormat(ghost, ghost),
		NewOperationMountPoint(ghost, ghost),
	}
	for _, op := range ops {
		assert.Equal(t, parts, op.ApplyToVisual(parts.Clone()), op.Type().String())
	}
}

func TestOperationDelete(t *testing.T) {
	parts := testDevices()[0].Partitions
	orig := parts[0]
	proposed := NewUnallocated(orig.DevicePath, orig.Offset, orig.Length)

	out := NewOperationDelete(orig, proposed).ApplyToVisual(parts.Clone())
	assert.Equal(t, proposed, out[0])
	assert.Equal(t, parts[1], out[1])
}

func TestOperationFormatKeepsOtherFields(t *testing.T) {
	parts := testDevices()[0].Partitions
	// 先前的操作改变了标签, 格式化只覆盖文件系统与挂载点.
	parts[0].Label = "data"
	orig := parts[0]
	proposed := orig
	proposed.Fs = FsBtrfs
	proposed.MountPoint = "/"

	out := NewOperationFormat(orig, proposed).ApplyToVisual(parts.Clone())
	assert.Equal(t, FsBtrfs, out[0].Fs)
	assert.Equal(t, "/", out[0].MountPoint)
	assert.Equal(t, StatusFormatted, out[0].Status)
	assert.Equal(t, "data", out[0].Label)
}

func TestOperationMountPoint(t *testing.T) {
	parts := testDevices()[0].Partitions
	orig := parts[0]
	proposed := orig
	proposed.MountPoint = "/data"
	proposed.Fs = FsNTFS

	out := NewOperationMountPoint(orig, proposed).ApplyToVisual(parts.Clone())
	assert.Equal(t, "/data", out[0].MountPoint)
	assert.Equal(t, FsExt4, out[0].Fs)
}

func TestOperationResizeIsNoop(t *testing.T) {
	parts := testDevices()[0].Partitions
	orig := parts[0]
	proposed := orig
	proposed.Length = 10 * GiB

	op := NewOperationResize(orig, proposed)
	assert.Equal(t, OperationResize, op.Type())
	assert.Equal(t, parts, op.ApplyToVisual(parts.Clone()))
}

func TestNewOperation(t *testing.T) {
	p := testDevices()[0].Partitions[0]
	for _, typ := range []OperationType{OperationCreate, OperationDelete, OperationFormat, OperationResize, OperationMountPoint} {
		op, err := NewOperation(typ, p, p)
		require.NoError(t, err)
		assert.Equal(t, typ, op.Type())
	}
	_, err := NewOperation(OperationType(42), p, p)
	assert.Error(t, err)

	typ, err := ParseOperationType("mount-point")
	require.NoError(t, err)
	assert.Equal(t, OperationMountPoint, typ)
	_, err = ParseOperationType("move")
	assert.Error(t, err)
}

func TestOperationLogJSON(t *testing.T) {
	parts := testDevices()[0].Partitions
	created := parts[1]
	created.Path = "/dev/sda2"
	created.Fs = FsXfs
	created.Type = TypeNormal
	created.Status = StatusNew
	formatted := parts[0]
	formatted.Fs = FsExt3
	formatted.Status = StatusFormatted

	ops := []Operation{
		NewOperationCreate(parts[1], created),
		NewOperationFormat(parts[0], formatted),
	}
	js, err := MarshalOperations(ops)
	require.NoError(t, err)

	decoded, err := UnmarshalOperations(js)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	for i := range ops {
		assert.Equal(t, ops[i].Type(), decoded[i].Type())
		assert.Equal(t, ops[i].Original(), decoded[i].Original())
		assert.Equal(t, ops[i].Proposed(), decoded[i].Proposed())
	}

	empty, err := MarshalOperations(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)

	_, err = UnmarshalOperations(`{"type":"create"}`)
	assert.Error(t, err)
	_, err = UnmarshalOperations(`[{"type":"move"}]`)
	assert.Error(t, err)
	_, err = UnmarshalOperations(`[`)
	assert.Error(t, err)
}
