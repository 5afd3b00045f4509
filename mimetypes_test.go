package zim

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMimetypeList(t *testing.T) {
	t.Parallel()

	raw := []byte("text/html\x00image/png\x00\x00trailing junk")
	m, err := decodeMimetypeList(newSource(bytes.NewReader(raw)), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len())

	mt, err := m.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "text/html", mt)

	mt, err = m.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)

	_, err = m.Get(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = m.Get(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestMimetypeListIndexOf(t *testing.T) {
	t.Parallel()

	raw := []byte("text/html\x00text/css\x00\x00")
	m, err := decodeMimetypeList(newSource(bytes.NewReader(raw)), 0)
	require.NoError(t, err)

	id, ok := m.IndexOf("text/css")
	assert.True(t, ok)
	assert.Equal(t, 1, id)

	_, ok = m.IndexOf("application/json")
	assert.False(t, ok)
}

func TestMimetypeListEmpty(t *testing.T) {
	t.Parallel()

	m, err := decodeMimetypeList(newSource(bytes.NewReader([]byte{0})), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestMimetypeListUnterminated(t *testing.T) {
	t.Parallel()

	_, err := decodeMimetypeList(newSource(bytes.NewReader([]byte("text/html"))), 0)
	assert.ErrorIs(t, err, ErrTruncated)
}
