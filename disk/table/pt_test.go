package table

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putMBREntry(sector []byte, i int, typ byte, start, sectors uint32) {
	off := 446 + 16*i
	sector[off+4] = typ
	binary.LittleEndian.PutUint32(sector[off+8:], start)
	binary.LittleEndian.PutUint32(sector[off+12:], sectors)
	sector[510] = MBRSignature510
	sector[511] = MBRSignature511
}

func guidBytes(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(s, "-", ""))
	require.NoError(t, err)
	return []byte{b[3], b[2], b[1], b[0], b[5], b[4], b[7], b[6],
		b[8], b[9], b[10], b[11], b[12], b[13], b[14], b[15]}
}

func TestReadRAW(t *testing.T) {
	disk := make([]byte, 4096)
	layout, err := Read(bytes.NewReader(disk), int64(len(disk)), 512)
	require.NoError(t, err)
	assert.Equal(t, DTypeRAW, layout.Type)
	assert.Empty(t, layout.Entries)
	assert.EqualValues(t, 7, layout.LastUsableLBA)
}

func TestReadMBRWithLogicalPartitions(t *testing.T) {
	const ss = 512
	disk := make([]byte, (34816+1)*ss)
	putMBREntry(disk[0:ss], 0, Linux, 2048, 20480)
	putMBREntry(disk[0:ss], 1, ExtendLBA, 22528, 40960)

	ebr1 := disk[22528*ss : 22529*ss]
	putMBREntry(ebr1, 0, Linux, 2048, 10240)
	putMBREntry(ebr1, 1, ExtendCHS, 12288, 12288)

	ebr2 := disk[34816*ss : 34817*ss]
	putMBREntry(ebr2, 0, LinuxSwap, 2048, 8192)

	layout, err := Read(bytes.NewReader(disk), 64<<20, ss)
	require.NoError(t, err)
	assert.Equal(t, DTypeMBR, layout.Type)
	require.Len(t, layout.Entries, 4)

	assert.Equal(t, Entry{Index: 1, StartLBA: 2048, Sectors: 20480, Role: RolePrimary, MBRType: Linux}, layout.Entries[0])
	assert.Equal(t, RoleExtended, layout.Entries[1].Role)
	assert.Equal(t, 2, layout.Entries[1].Index)
	assert.Equal(t, Entry{Index: 5, StartLBA: 24576, Sectors: 10240, Role: RoleLogical, MBRType: Linux}, layout.Entries[2])
	assert.Equal(t, Entry{Index: 6, StartLBA: 36864, Sectors: 8192, Role: RoleLogical, MBRType: LinuxSwap}, layout.Entries[3])
}

func TestReadMBREBRLoop(t *testing.T) {
	const ss = 512
	disk := make([]byte, 4096*ss)
	putMBREntry(disk[0:ss], 0, ExtendLBA, 2048, 2048)
	ebr := disk[2048*ss : 2049*ss]
	putMBREntry(ebr, 0, Linux, 64, 128)
	putMBREntry(ebr, 1, ExtendCHS, 0, 2048)

	_, err := Read(bytes.NewReader(disk), int64(len(disk)), ss)
	assert.Error(t, err)
}

func TestReadGPT(t *testing.T) {
	const ss = 512
	disk := make([]byte, 1<<20)
	putMBREntry(disk[0:ss], 0, EFIGPTProtectiveMBR, 1, uint32(len(disk)/ss-1))

	header := disk[ss : 2*ss]
	copy(header, GPTSignature)
	binary.LittleEndian.PutUint64(header[0x28:], 34)
	binary.LittleEndian.PutUint64(header[0x30:], uint64(len(disk)/ss-34))
	binary.LittleEndian.PutUint64(header[0x48:], 2)
	binary.LittleEndian.PutUint32(header[0x50:], 128)
	binary.LittleEndian.PutUint32(header[0x54:], 128)

	entry := disk[2*ss+128 : 2*ss+256] // 第2个表项, 第1个留空.
	copy(entry[0:16], guidBytes(t, LinuxFSData))
	binary.LittleEndian.PutUint64(entry[0x20:], 2048)
	binary.LittleEndian.PutUint64(entry[0x28:], 4095)
	for i, u := range utf16.Encode([]rune("root")) {
		binary.LittleEndian.PutUint16(entry[0x38+2*i:], u)
	}

	layout, err := Read(bytes.NewReader(disk), int64(len(disk)), ss)
	require.NoError(t, err)
	assert.Equal(t, DTypeGPT, layout.Type)
	assert.EqualValues(t, 34, layout.FirstUsableLBA)
	require.Len(t, layout.Entries, 1)
	e := layout.Entries[0]
	assert.Equal(t, 2, e.Index)
	assert.EqualValues(t, 2048, e.StartLBA)
	assert.EqualValues(t, 2048, e.Sectors)
	assert.EqualValues(t, 4095, e.EndLBA())
	assert.Equal(t, LinuxFSData, e.TypeGUID)
	assert.Equal(t, "root", e.Name)
}

func TestGUIDToString(t *testing.T) {
	assert.Equal(t, GEFISystemPartition, GUIDToString(guidBytes(t, GEFISystemPartition)))
	assert.Equal(t, "", GUIDToString([]byte{1, 2, 3}))
}

func TestPartDeviceName(t *testing.T) {
	assert.Equal(t, "/dev/sda1", PartDeviceName("/dev/sda", 1))
	assert.Equal(t, "/dev/nvme0n1p3", PartDeviceName("/dev/nvme0n1", 3))
	assert.Equal(t, "/dev/mmcblk0p5", PartDeviceName("/dev/mmcblk0", 5))
}
