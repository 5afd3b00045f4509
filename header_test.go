package zim

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawHeader builds header bytes by hand so legacy and malformed shapes can
// be expressed; the zimtest builder only emits well-formed modern archives.
func rawHeader(magic uint32, mimeListPos uint64, withChecksum bool) []byte {
	var b bytes.Buffer
	u16 := func(v uint16) { _ = binary.Write(&b, binary.LittleEndian, v) }
	u32 := func(v uint32) { _ = binary.Write(&b, binary.LittleEndian, v) }
	u64 := func(v uint64) { _ = binary.Write(&b, binary.LittleEndian, v) }

	u32(magic)
	u16(6)
	u16(1)
	b.Write(bytes.Repeat([]byte{0x42}, 16))
	u32(10)     // entry count
	u32(3)      // cluster count
	u64(0x100)  // urlPtrPos
	u64(0x200)  // titlePtrPos
	u64(0x300)  // clusterPtrPos
	u64(mimeListPos)
	u32(7)      // main page
	u32(noPage) // layout page
	if withChecksum {
		u64(0xBEEF)
	}
	return b.Bytes()
}

func TestDecodeHeader(t *testing.T) {
	t.Parallel()

	h, err := decodeHeader(newSource(bytes.NewReader(rawHeader(magicNumber, 80, true))))
	require.NoError(t, err)

	assert.Equal(t, uint16(6), h.MajorVersion)
	assert.Equal(t, uint16(1), h.MinorVersion)
	assert.Equal(t, uint32(10), h.EntryCount)
	assert.Equal(t, uint32(3), h.ClusterCount)
	assert.Equal(t, uint64(0x100), h.URLPtrPos)
	assert.Equal(t, uint64(0x200), h.TitlePtrPos)
	assert.Equal(t, uint64(0x300), h.ClusterPtrPos)
	assert.Equal(t, uint64(80), h.MimeListPos)
	assert.Equal(t, uint64(80), h.Size())
	assert.Equal(t, uint32(7), h.MainPage)
	assert.True(t, h.HasMainPage())

	pos, err := h.ChecksumPos()
	require.NoError(t, err)
	assert.Equal(t, uint64(0xBEEF), pos)
}

func TestDecodeHeaderInvalidMagic(t *testing.T) {
	t.Parallel()

	_, err := decodeHeader(newSource(bytes.NewReader(rawHeader(0xDEADBEEF, 80, true))))
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestDecodeHeaderLegacyNoChecksum(t *testing.T) {
	t.Parallel()

	// A 72-byte header: the mimetype list starts where checksumPos would
	// live, so the field is absent rather than the archive broken.
	h, err := decodeHeader(newSource(bytes.NewReader(rawHeader(magicNumber, 72, false))))
	require.NoError(t, err)

	_, err = h.ChecksumPos()
	assert.ErrorIs(t, err, ErrNoChecksum)
}

func TestDecodeHeaderTruncated(t *testing.T) {
	t.Parallel()

	full := rawHeader(magicNumber, 80, true)
	for _, n := range []int{0, 3, 20, 71} {
		_, err := decodeHeader(newSource(bytes.NewReader(full[:n])))
		assert.ErrorIs(t, err, ErrTruncated, "prefix of %d bytes", n)
	}
}

func TestHeaderNoMainPageSentinel(t *testing.T) {
	t.Parallel()

	raw := rawHeader(magicNumber, 80, true)
	binary.LittleEndian.PutUint32(raw[64:68], noPage)

	h, err := decodeHeader(newSource(bytes.NewReader(raw)))
	require.NoError(t, err)
	assert.False(t, h.HasMainPage())
}
