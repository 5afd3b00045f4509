package zim

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression identifies a cluster payload encoding.
type Compression uint8

const (
	// CompressionNone marks a raw cluster; blobs are read straight from the
	// archive with no decompression.
	CompressionNone Compression = iota
	// CompressionLZMA marks an LZMA2 cluster in an XZ container.
	CompressionLZMA
	// CompressionZstd marks a Zstandard cluster.
	CompressionZstd
	// CompressionUnsupported covers every other method code.
	CompressionUnsupported
)

// Raw method codes from the cluster info byte's low nibble.
const (
	rawCompressionDefault = 0
	rawCompressionNone    = 1
	rawCompressionLZMA    = 4
	rawCompressionZstd    = 5
)

// clusterExtendedFlag in the info byte selects 64-bit blob offsets.
const clusterExtendedFlag = 0x10

// cluster is one blob container. off addresses the info byte; end bounds the
// cluster's bytes (the next cluster's offset, or the checksum position or
// end of file for the last cluster).
type cluster struct {
	src  *source
	off  int64
	end  int64
	info byte
}

func (c cluster) compression() Compression {
	switch c.info & 0x0F {
	case rawCompressionDefault, rawCompressionNone:
		return CompressionNone
	case rawCompressionLZMA:
		return CompressionLZMA
	case rawCompressionZstd:
		return CompressionZstd
	default:
		return CompressionUnsupported
	}
}

func (c cluster) extended() bool {
	return c.info&clusterExtendedFlag != 0
}

// offsetWidth is the byte width of one blob-offset table entry.
func (c cluster) offsetWidth() int64 {
	if c.extended() {
		return 8
	}
	return 4
}

// decompress streams the cluster body through the method's decoder and
// returns the whole decompressed payload. Called at most once per cluster
// offset; results are memoized by the cluster cache.
func (c cluster) decompress() ([]byte, error) {
	body := io.NewSectionReader(c.src.r, c.off+1, c.end-c.off-1)
	switch c.compression() {
	case CompressionLZMA:
		xr, err := xz.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("%w: xz: %v", ErrDecompression, err)
		}
		data, err := io.ReadAll(xr)
		if err != nil {
			return nil, fmt.Errorf("%w: xz: %v", ErrDecompression, err)
		}
		return data, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(body, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrDecompression, err)
		}
		defer dec.Close()
		data, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrDecompression, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: method %d", ErrUnsupportedCompression, c.info&0x0F)
	}
}

// payload returns a readable view of the decompressed cluster body and the
// base offset the blob-offset table starts at. Raw clusters are served
// zero-materialization from the archive source; compressed clusters go
// through the cache.
func (c cluster) payload(cc *clusterCache) (*source, int64, error) {
	switch c.compression() {
	case CompressionNone:
		return c.src, c.off + 1, nil
	case CompressionLZMA, CompressionZstd:
		data, err := cc.payload(c.off, c.decompress)
		if err != nil {
			return nil, 0, err
		}
		return newSource(bytes.NewReader(data)), 0, nil
	default:
		return nil, 0, fmt.Errorf("%w: method %d", ErrUnsupportedCompression, c.info&0x0F)
	}
}

func (c cluster) readOffset(p *source, base int64, index uint64) (uint64, error) {
	w := c.offsetWidth()
	if w == 4 {
		v, err := p.uint32At(base + int64(index)*4)
		return uint64(v), err
	}
	return p.uint64At(base + int64(index)*8)
}

// blobCount derives the number of blobs from the offset table: the first
// entry encodes the table's own byte span, so dividing by the entry width
// yields the offset count, one more than the blob count.
func (c cluster) blobCount(cc *clusterCache) (uint64, error) {
	p, base, err := c.payload(cc)
	if err != nil {
		return 0, err
	}
	first, err := c.readOffset(p, base, 0)
	if err != nil {
		return 0, err
	}
	n := first / uint64(c.offsetWidth())
	if n == 0 {
		return 0, fmt.Errorf("%w: empty blob offset table", ErrOutOfBounds)
	}
	return n - 1, nil
}

// blob returns the bytes of blob index, the span [offset[index],
// offset[index+1]) within the payload.
func (c cluster) blob(cc *clusterCache, index uint32) ([]byte, error) {
	p, base, err := c.payload(cc)
	if err != nil {
		return nil, err
	}
	first, err := c.readOffset(p, base, 0)
	if err != nil {
		return nil, err
	}
	offsets := first / uint64(c.offsetWidth())
	if uint64(index)+1 >= offsets {
		return nil, fmt.Errorf("%w: blob %d, cluster has %d", ErrIndexOutOfRange, index, offsets-1)
	}
	start, err := c.readOffset(p, base, uint64(index))
	if err != nil {
		return nil, err
	}
	end, err := c.readOffset(p, base, uint64(index)+1)
	if err != nil {
		return nil, err
	}
	if end < start {
		return nil, fmt.Errorf("%w: blob offsets decrease at %d", ErrOutOfBounds, index)
	}
	return p.bytesAt(base+int64(start), int64(end-start))
}
