package zim

import (
	"fmt"

	"github.com/google/uuid"
)

// magicNumber is the ZIM magic, 72173914, stored little-endian at offset 0.
const magicNumber = 0x44D495A

// noPage is the sentinel for "no main/layout page" in the header.
const noPage = 0xFFFFFFFF

// fullHeaderSize is the size of a modern header including the checksum
// position. Legacy archives stop at 72 bytes.
const fullHeaderSize = 80

var headerLayout = newRecordLayout(
	fieldSpec{name: "magicNumber", kind: fieldUint32},
	fieldSpec{name: "majorVersion", kind: fieldUint16},
	fieldSpec{name: "minorVersion", kind: fieldUint16},
	fieldSpec{name: "uuid", kind: fieldBytes, size: 16},
	fieldSpec{name: "entryCount", kind: fieldUint32},
	fieldSpec{name: "clusterCount", kind: fieldUint32},
	fieldSpec{name: "urlPtrPos", kind: fieldUint64},
	fieldSpec{name: "titlePtrPos", kind: fieldUint64},
	fieldSpec{name: "clusterPtrPos", kind: fieldUint64},
	fieldSpec{name: "mimeListPos", kind: fieldUint64},
	fieldSpec{name: "mainPage", kind: fieldUint32},
	fieldSpec{name: "layoutPage", kind: fieldUint32},
	fieldSpec{name: "checksumPos", kind: fieldUint64},
)

// Header is the fixed archive header, decoded once at open time. The
// header's logical size equals MimeListPos: the mimetype list begins where
// the header ends.
type Header struct {
	MajorVersion uint16
	MinorVersion uint16
	UUID         uuid.UUID
	EntryCount   uint32
	ClusterCount uint32

	URLPtrPos     uint64
	TitlePtrPos   uint64
	ClusterPtrPos uint64
	MimeListPos   uint64

	MainPage   uint32
	LayoutPage uint32

	checksumPos uint64
}

func decodeHeader(s *source) (Header, error) {
	var h Header
	var err error
	u16 := func(name string) uint16 {
		if err != nil {
			return 0
		}
		var v uint16
		v, err = headerLayout.field(name).uint16(s, 0)
		return v
	}
	u32 := func(name string) uint32 {
		if err != nil {
			return 0
		}
		var v uint32
		v, err = headerLayout.field(name).uint32(s, 0)
		return v
	}
	u64 := func(name string) uint64 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = headerLayout.field(name).uint64(s, 0)
		return v
	}

	magic := u32("magicNumber")
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if magic != magicNumber {
		return Header{}, fmt.Errorf("%w: got %#x, want %#x", ErrInvalidMagic, magic, uint32(magicNumber))
	}

	h.MajorVersion = u16("majorVersion")
	h.MinorVersion = u16("minorVersion")
	if err == nil {
		var raw []byte
		raw, err = headerLayout.field("uuid").bytes(s, 0)
		if err == nil {
			h.UUID, err = uuid.FromBytes(raw)
		}
	}
	h.EntryCount = u32("entryCount")
	h.ClusterCount = u32("clusterCount")
	h.URLPtrPos = u64("urlPtrPos")
	h.TitlePtrPos = u64("titlePtrPos")
	h.ClusterPtrPos = u64("clusterPtrPos")
	h.MimeListPos = u64("mimeListPos")
	h.MainPage = u32("mainPage")
	h.LayoutPage = u32("layoutPage")
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	// The checksum position exists only when the header extends to 80
	// bytes; legacy 72-byte headers put the mimetype list right on top of
	// where it would live.
	if h.MimeListPos >= fullHeaderSize {
		h.checksumPos, err = headerLayout.field("checksumPos").uint64(s, 0)
		if err != nil {
			return Header{}, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
	}
	return h, nil
}

// Size returns the header's logical size, which is where the mimetype list
// begins.
func (h Header) Size() uint64 { return h.MimeListPos }

// HasMainPage reports whether the header names a main page.
func (h Header) HasMainPage() bool { return h.MainPage != noPage }

// ChecksumPos returns the byte offset of the archive checksum. Legacy
// archives with headers smaller than 80 bytes carry none; callers get
// ErrNoChecksum and should treat the checksum as unsupported, not the
// archive as broken.
func (h Header) ChecksumPos() (uint64, error) {
	if h.MimeListPos < fullHeaderSize {
		return 0, ErrNoChecksum
	}
	return h.checksumPos, nil
}

func (h Header) String() string {
	return fmt.Sprintf("ZIM header: version %d.%d, %d entries, %d clusters",
		h.MajorVersion, h.MinorVersion, h.EntryCount, h.ClusterCount)
}
