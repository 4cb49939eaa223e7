package table

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// GPTHeader 位于GPT磁盘的LBA1数据.
// 具体见：https://en.wikipedia.org/wiki/GUID_Partition_Table.
type GPTHeader struct {
	Signature                 []byte `struc:"[8]byte"`       // 0x00, 8, "EFI PART".
	Revision                  uint32 `struc:"uint32,little"` // 0x08, 4.
	HeaderSize                uint32 `struc:"uint32,little"` // 0x0C, 4.
	HeaderCRC32               uint32 `struc:"uint32,little"` // 0x10, 4.
	Reserved                  []byte `struc:"[4]byte"`       // 0x14, 4.
	CurrentLBA                int64  `struc:"int64,little"`  // 0x18, 8.
	BackupLBA                 int64  `struc:"int64,little"`  // 0x20, 8.
	FirstUsableLBA            int64  `struc:"int64,little"`  // 0x28, 8.
	LastUsableLBA             int64  `struc:"int64,little"`  // 0x30, 8.
	GUID                      []byte `struc:"[16]byte"`      // 0x38, 16, mixed endian.
	StartingLBAForPartEntries int64  `struc:"int64,little"`  // 0x48, 8, 通常为2.
	NumberOfPartEntriesArray  int    `struc:"int32,little"`  // 0x50, 4.
	PartEntrySize             int    `struc:"int32,little"`  // 0x54, 4.
	PartEntriesArrayCRC32     uint32 `struc:"uint32,little"` // 0x58, 4.
	TailReversed              []byte `struc:"[420]byte"`     // 0x5C, 420.
}

// GPTPartitionEntry GPT磁盘的一项分区表项数据.
type GPTPartitionEntry struct {
	PartTypeGUID  []byte   `struc:"[16]byte"`          // 0x00, 16, mixed endian.
	UniqGUID      []byte   `struc:"[16]byte"`          // 0x10, 16, mixed endian.
	FirstLBAIndex int64    `struc:"int64,little"`      // 0x20, 8, 起始LBA(包含).
	LastLBAIndex  int64    `struc:"int64,little"`      // 0x28, 8, 结束LBA(包含).
	AttrFlags     []byte   `struc:"[8]byte"`           // 0x30, 8.
	PartitionName []uint16 `struc:"[36]uint16,little"` // 0x38, 72, UTF-16LE.
}

func (gpe *GPTPartitionEntry) IsEmpty() bool {
	return GUIDToString(gpe.PartTypeGUID) == BlankEmptyPart
}

func (gpe *GPTPartitionEntry) Name() string {
	return strings.TrimRight(string(utf16.Decode(gpe.PartitionName)), "\x00")
}

func readGPT(disk io.ReadSeeker, layout *Layout) error {
	ss := layout.SectorSize
	if _, err := disk.Seek(ss, io.SeekStart); err != nil {
		return err
	}
	bin := make([]byte, GPTHeaderSize)
	if _, err := io.ReadFull(disk, bin); err != nil {
		return errors.Wrap(err, "read gpt header")
	}
	var header GPTHeader
	if err := struc.Unpack(bytes.NewReader(bin), &header); err != nil {
		return errors.Wrap(err, "unpack gpt header")
	}
	if string(header.Signature) != GPTSignature {
		return errors.Errorf("invalid gpt signature %q", header.Signature)
	}
	if header.PartEntrySize < GPTMinPartEntrySize || header.NumberOfPartEntriesArray > GPTMaxPartitionEntryCount {
		return errors.Errorf("unsupported gpt entry array (%d x %d bytes)",
			header.NumberOfPartEntriesArray, header.PartEntrySize)
	}

	layout.Type = DTypeGPT
	layout.FirstUsableLBA = header.FirstUsableLBA
	layout.LastUsableLBA = header.LastUsableLBA

	if _, err := disk.Seek(header.StartingLBAForPartEntries*ss, io.SeekStart); err != nil {
		return err
	}
	raw := make([]byte, header.PartEntrySize)
	for i := 0; i < header.NumberOfPartEntriesArray; i++ {
		if _, err := io.ReadFull(disk, raw); err != nil {
			return errors.Wrapf(err, "read gpt entry #%d", i+1)
		}
		var gpe GPTPartitionEntry
		if err := struc.Unpack(bytes.NewReader(raw[:GPTMinPartEntrySize]), &gpe); err != nil {
			return errors.Wrapf(err, "unpack gpt entry #%d", i+1)
		}
		if gpe.IsEmpty() {
			continue
		}
		layout.Entries = append(layout.Entries, Entry{
			Index:    i + 1,
			StartLBA: gpe.FirstLBAIndex,
			Sectors:  gpe.LastLBAIndex - gpe.FirstLBAIndex + 1,
			Role:     RolePrimary,
			TypeGUID: GUIDToString(gpe.PartTypeGUID),
			Name:     gpe.Name(),
		})
	}
	return nil
}
