package zim

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contentDirentBytes(mimetype uint16, ns byte, clusterNum, blobNum uint32, url, title string, param []byte) []byte {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.LittleEndian, mimetype)
	b.WriteByte(byte(len(param)))
	b.WriteByte(ns)
	_ = binary.Write(&b, binary.LittleEndian, uint32(9)) // revision
	_ = binary.Write(&b, binary.LittleEndian, clusterNum)
	_ = binary.Write(&b, binary.LittleEndian, blobNum)
	b.WriteString(url)
	b.WriteByte(0)
	b.WriteString(title)
	b.WriteByte(0)
	b.Write(param)
	return b.Bytes()
}

func redirectDirentBytes(ns byte, target uint32, url, title string) []byte {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.LittleEndian, uint16(redirectMimetype))
	b.WriteByte(0)
	b.WriteByte(ns)
	_ = binary.Write(&b, binary.LittleEndian, uint32(0))
	_ = binary.Write(&b, binary.LittleEndian, target)
	b.WriteString(url)
	b.WriteByte(0)
	b.WriteString(title)
	b.WriteByte(0)
	return b.Bytes()
}

func TestDecodeContentDirent(t *testing.T) {
	t.Parallel()

	raw := contentDirentBytes(2, 'A', 11, 4, "Main_Page", "Main Page", []byte{0xCA, 0xFE})
	d, err := decodeDirent(newSource(bytes.NewReader(raw)), 0)
	require.NoError(t, err)

	assert.Equal(t, DirentContent, d.Kind)
	assert.Equal(t, uint16(2), d.MimetypeID)
	assert.Equal(t, byte('A'), d.Namespace)
	assert.Equal(t, uint32(9), d.Revision)
	assert.Equal(t, uint32(11), d.ClusterNumber)
	assert.Equal(t, uint32(4), d.BlobNumber)
	assert.Equal(t, "Main_Page", d.URL)
	assert.Equal(t, "Main Page", d.Title)
	assert.Equal(t, "Main Page", d.EffectiveTitle())
	assert.Equal(t, []byte{0xCA, 0xFE}, d.Parameter)
}

func TestDecodeRedirectDirent(t *testing.T) {
	t.Parallel()

	raw := redirectDirentBytes('A', 42, "Golang", "")
	d, err := decodeDirent(newSource(bytes.NewReader(raw)), 0)
	require.NoError(t, err)

	assert.Equal(t, DirentRedirect, d.Kind)
	assert.Equal(t, uint32(42), d.RedirectIndex)
	assert.Equal(t, "Golang", d.URL)
	assert.Equal(t, "", d.Title)
	// Empty title falls back to the URL for display and sorting.
	assert.Equal(t, "Golang", d.EffectiveTitle())
}

func TestDecodeDirentAtOffset(t *testing.T) {
	t.Parallel()

	pad := bytes.Repeat([]byte{0xFF}, 37)
	raw := append(pad, contentDirentBytes(0, 'I', 0, 0, "logo.png", "", nil)...)
	d, err := decodeDirent(newSource(bytes.NewReader(raw)), 37)
	require.NoError(t, err)
	assert.Equal(t, "logo.png", d.URL)
	assert.Equal(t, byte('I'), d.Namespace)
}

func TestDecodeDirentTruncated(t *testing.T) {
	t.Parallel()

	full := contentDirentBytes(0, 'A', 0, 0, "page", "title", nil)

	// Cut inside the fixed fields: out of bounds.
	_, err := decodeDirent(newSource(bytes.NewReader(full[:10])), 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	// Cut inside the URL string: no terminator before end of source.
	_, err = decodeDirent(newSource(bytes.NewReader(full[:18])), 0)
	assert.ErrorIs(t, err, ErrTruncated)

	// Cut inside the title string.
	_, err = decodeDirent(newSource(bytes.NewReader(full[:23])), 0)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDirentKeys(t *testing.T) {
	t.Parallel()

	content := contentDirentBytes(0, 'A', 0, 0, "url-a", "Title A", nil)
	redirect := redirectDirentBytes('B', 0, "url-b", "")
	raw := append(append([]byte{}, content...), redirect...)
	s := newSource(bytes.NewReader(raw))

	ns, url, err := direntURLKey(s, 0)
	require.NoError(t, err)
	assert.Equal(t, byte('A'), ns)
	assert.Equal(t, "url-a", url)

	ns, title, err := direntTitleKey(s, 0)
	require.NoError(t, err)
	assert.Equal(t, byte('A'), ns)
	assert.Equal(t, "Title A", title)

	// Redirect variant has a shorter fixed part; the key reads must honor it.
	off := int64(len(content))
	ns, url, err = direntURLKey(s, off)
	require.NoError(t, err)
	assert.Equal(t, byte('B'), ns)
	assert.Equal(t, "url-b", url)

	ns, title, err = direntTitleKey(s, off)
	require.NoError(t, err)
	assert.Equal(t, byte('B'), ns)
	assert.Equal(t, "url-b", title, "empty title falls back to url")
}
