package zim

import "fmt"

// pointerArray is a flat array of fixed-width unsigned integers at a base
// offset in the archive: URL pointers (8 bytes, byte offsets of dirents),
// title pointers (4 bytes, indices into the URL array), and cluster pointers
// (8 bytes, byte offsets of clusters). A zero-ownership indexed view; no
// caching, O(1) per access.
type pointerArray struct {
	src    *source
	offset int64
	width  int64
}

func (p pointerArray) at(index uint32) (uint64, error) {
	off := p.offset + int64(index)*p.width
	if off < 0 || off > p.src.size-p.width {
		return 0, fmt.Errorf("%w: pointer %d at byte %d, source is %d bytes", ErrIndexOutOfRange, index, off, p.src.size)
	}
	if p.width == 4 {
		v, err := p.src.uint32At(off)
		return uint64(v), err
	}
	return p.src.uint64At(off)
}
