package zim

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordLayoutOffsets(t *testing.T) {
	t.Parallel()

	l := newRecordLayout(
		fieldSpec{name: "a", kind: fieldUint16},
		fieldSpec{name: "b", kind: fieldUint8},
		fieldSpec{name: "c", kind: fieldBytes, size: 5},
		fieldSpec{name: "d", kind: fieldUint64},
	)

	assert.Equal(t, int64(0), l.field("a").offset)
	assert.Equal(t, int64(2), l.field("b").offset)
	assert.Equal(t, int64(3), l.field("c").offset)
	assert.Equal(t, int64(8), l.field("d").offset)
	assert.Equal(t, int64(16), l.size)
}

func TestRecordLayoutReads(t *testing.T) {
	t.Parallel()

	// Little-endian: a=0x0201, b=0x03, c="hello", d=0x0807060504030201.
	raw := []byte{
		0x01, 0x02,
		0x03,
		'h', 'e', 'l', 'l', 'o',
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	}
	s := newSource(bytes.NewReader(raw))
	l := newRecordLayout(
		fieldSpec{name: "a", kind: fieldUint16},
		fieldSpec{name: "b", kind: fieldUint8},
		fieldSpec{name: "c", kind: fieldBytes, size: 5},
		fieldSpec{name: "d", kind: fieldUint64},
	)

	a, err := l.field("a").uint16(s, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0201), a)

	b, err := l.field("b").uint8(s, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), b)

	c, err := l.field("c").bytes(s, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), c)

	d, err := l.field("d").uint64(s, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0807060504030201), d)
}

func TestRecordLayoutOutOfBounds(t *testing.T) {
	t.Parallel()

	s := newSource(bytes.NewReader([]byte{0x01, 0x02}))
	l := newRecordLayout(fieldSpec{name: "v", kind: fieldUint32})

	_, err := l.field("v").uint32(s, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	// A field read at a shifted base must respect the base too.
	l2 := newRecordLayout(fieldSpec{name: "v", kind: fieldUint8})
	_, err = l2.field("v").uint8(s, 2)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}
