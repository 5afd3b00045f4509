package zim

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/exp/mmap"
)

// ByteSource provides random access to the archive bytes.
//
// Implementations exist for memory-mapped local files (see Open), in-memory
// archives (*bytes.Reader), and HTTP range requests (the http subpackage).
// The source must be immutable for the lifetime of the Archive reading it.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// Interface compliance for the stock sources.
var (
	_ ByteSource = mmapSource{}
	_ ByteSource = (*bytes.Reader)(nil)
)

// mmapSource adapts mmap.ReaderAt, whose length accessor is Len() int, to
// the ByteSource interface.
type mmapSource struct {
	*mmap.ReaderAt
}

func (m mmapSource) Size() int64 { return int64(m.Len()) }

// source wraps a ByteSource with bounds-checked little-endian reads. All
// record decoding in this package goes through it; no read may leave the
// [0, size) window.
type source struct {
	r    ByteSource
	size int64
}

func newSource(r ByteSource) *source {
	return &source{r: r, size: r.Size()}
}

func (s *source) bytesAt(off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off > s.size-n {
		return nil, fmt.Errorf("%w: [%d,%d) outside source of %d bytes", ErrOutOfBounds, off, off+n, s.size)
	}
	buf := make([]byte, n)
	if _, err := s.r.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("zim: read %d bytes at %d: %w", n, off, err)
	}
	return buf, nil
}

func (s *source) uint8At(off int64) (uint8, error) {
	b, err := s.bytesAt(off, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *source) uint16At(off int64) (uint16, error) {
	b, err := s.bytesAt(off, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (s *source) uint32At(off int64) (uint32, error) {
	b, err := s.bytesAt(off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (s *source) uint64At(off int64) (uint64, error) {
	b, err := s.bytesAt(off, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// cstringChunk sizes the scan window for NUL-terminated strings. Dirent URLs
// and titles are short, so most scans finish in one read.
const cstringChunk = 256

// cstringAt reads a NUL-terminated string starting at off and returns it
// together with the offset of the first byte past the terminator. A string
// that runs off the end of the source is ErrTruncated.
func (s *source) cstringAt(off int64) (string, int64, error) {
	if off < 0 || off > s.size {
		return "", 0, fmt.Errorf("%w: string offset %d outside source of %d bytes", ErrOutOfBounds, off, s.size)
	}
	var out []byte
	buf := make([]byte, cstringChunk)
	for pos := off; pos < s.size; {
		n := int64(len(buf))
		if pos > s.size-n {
			n = s.size - pos
		}
		if _, err := s.r.ReadAt(buf[:n], pos); err != nil {
			return "", 0, fmt.Errorf("zim: read string at %d: %w", off, err)
		}
		if i := bytes.IndexByte(buf[:n], 0); i >= 0 {
			out = append(out, buf[:i]...)
			return string(out), pos + int64(i) + 1, nil
		}
		out = append(out, buf[:n]...)
		pos += n
	}
	return "", 0, fmt.Errorf("%w: unterminated string at offset %d", ErrTruncated, off)
}
