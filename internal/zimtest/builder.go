// Package zimtest builds synthetic ZIM archives in memory for tests.
//
// The builder writes the same on-disk layout the zim package reads: an
// 80-byte header, the mimetype list, dirents sorted by (namespace, url),
// the three pointer arrays, and a single cluster holding every content blob.
// It deliberately does not import the zim package so both internal and
// external test packages can use it.
package zimtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Raw cluster compression codes as stored in the info byte.
const (
	CompressionNone = 1
	CompressionLZMA = 4
	CompressionZstd = 5
)

const (
	magicNumber      = 0x44D495A
	noPage           = 0xFFFFFFFF
	redirectMimetype = 0xFFFF
	headerSize       = 80
)

type entrySpec struct {
	namespace byte
	url       string
	title     string

	mimetype string
	content  []byte

	redirect        bool
	targetNamespace byte
	targetURL       string
}

// Builder assembles a synthetic archive. The zero value produces an
// uncompressed archive with no main page.
type Builder struct {
	compression int
	extended    bool
	mainNS      byte
	mainURL     string
	hasMain     bool
	entries     []entrySpec
}

// NewBuilder returns a Builder producing uncompressed clusters.
func NewBuilder() *Builder {
	return &Builder{compression: CompressionNone}
}

// Compression sets the raw compression code written to the cluster info
// byte. Codes other than the three supported ones are written with a raw
// payload, which is enough to exercise the reader's unsupported-method path.
func (b *Builder) Compression(code int) *Builder {
	b.compression = code
	return b
}

// Extended switches the cluster to the 64-bit blob offset table.
func (b *Builder) Extended() *Builder {
	b.extended = true
	return b
}

// MainPage marks the entry with the given namespace and URL as the main
// page. Unset means the header carries the absent sentinel.
func (b *Builder) MainPage(namespace byte, url string) *Builder {
	b.mainNS, b.mainURL, b.hasMain = namespace, url, true
	return b
}

// AddContent adds a content entry.
func (b *Builder) AddContent(namespace byte, url, title, mimetype string, content []byte) *Builder {
	b.entries = append(b.entries, entrySpec{
		namespace: namespace,
		url:       url,
		title:     title,
		mimetype:  mimetype,
		content:   content,
	})
	return b
}

// AddRedirect adds a redirect entry pointing at the entry with the target
// namespace and URL. Redirects may target other redirects, including cycles.
func (b *Builder) AddRedirect(namespace byte, url, title string, targetNamespace byte, targetURL string) *Builder {
	b.entries = append(b.entries, entrySpec{
		namespace:       namespace,
		url:             url,
		title:           title,
		redirect:        true,
		targetNamespace: targetNamespace,
		targetURL:       targetURL,
	})
	return b
}

// Build assembles the archive bytes.
func (b *Builder) Build(t testing.TB) []byte {
	t.Helper()
	data, err := b.build()
	if err != nil {
		t.Fatalf("zimtest: build archive: %v", err)
	}
	return data
}

func entryKey(ns byte, url string) string {
	return string(ns) + "\x00" + url
}

func (b *Builder) build() ([]byte, error) {
	entries := make([]entrySpec, len(b.entries))
	copy(entries, b.entries)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].namespace != entries[j].namespace {
			return entries[i].namespace < entries[j].namespace
		}
		return entries[i].url < entries[j].url
	})

	indexByKey := make(map[string]uint32, len(entries))
	for i, e := range entries {
		indexByKey[entryKey(e.namespace, e.url)] = uint32(i)
	}

	// Title order: indices into the URL-sorted entries, sorted by
	// (namespace, title-or-url).
	titleOrder := make([]uint32, len(entries))
	for i := range titleOrder {
		titleOrder[i] = uint32(i)
	}
	effTitle := func(e entrySpec) string {
		if e.title != "" {
			return e.title
		}
		return e.url
	}
	sort.Slice(titleOrder, func(i, j int) bool {
		a, c := entries[titleOrder[i]], entries[titleOrder[j]]
		if a.namespace != c.namespace {
			return a.namespace < c.namespace
		}
		return effTitle(a) < effTitle(c)
	})

	// Mimetype ids in first-use order over the sorted entries.
	mimeID := make(map[string]uint16)
	var mimetypes []string
	for _, e := range entries {
		if e.redirect {
			continue
		}
		if _, ok := mimeID[e.mimetype]; !ok {
			mimeID[e.mimetype] = uint16(len(mimetypes))
			mimetypes = append(mimetypes, e.mimetype)
		}
	}

	// Blob numbers for content entries, in sorted order, all in cluster 0.
	blobNumber := make(map[uint32]uint32)
	var blobs [][]byte
	for i, e := range entries {
		if e.redirect {
			continue
		}
		blobNumber[uint32(i)] = uint32(len(blobs))
		blobs = append(blobs, e.content)
	}

	clusterBytes, err := b.buildCluster(blobs)
	if err != nil {
		return nil, err
	}

	var mimeList bytes.Buffer
	for _, mt := range mimetypes {
		mimeList.WriteString(mt)
		mimeList.WriteByte(0)
	}
	mimeList.WriteByte(0)

	// Dirents, tracking the absolute offset of each.
	var dirents bytes.Buffer
	direntBase := int64(headerSize + mimeList.Len())
	direntOffsets := make([]uint64, len(entries))
	for i, e := range entries {
		direntOffsets[i] = uint64(direntBase + int64(dirents.Len()))
		if e.redirect {
			target, ok := indexByKey[entryKey(e.targetNamespace, e.targetURL)]
			if !ok {
				return nil, fmt.Errorf("redirect %q targets unknown entry %c/%s", e.url, e.targetNamespace, e.targetURL)
			}
			writeU16(&dirents, redirectMimetype)
			dirents.WriteByte(0) // parameter length
			dirents.WriteByte(e.namespace)
			writeU32(&dirents, 0) // revision
			writeU32(&dirents, target)
		} else {
			writeU16(&dirents, mimeID[e.mimetype])
			dirents.WriteByte(0)
			dirents.WriteByte(e.namespace)
			writeU32(&dirents, 0)
			writeU32(&dirents, 0) // cluster number
			writeU32(&dirents, blobNumber[uint32(i)])
		}
		dirents.WriteString(e.url)
		dirents.WriteByte(0)
		dirents.WriteString(e.title)
		dirents.WriteByte(0)
	}

	urlPtrPos := uint64(direntBase) + uint64(dirents.Len())
	titlePtrPos := urlPtrPos + uint64(8*len(entries))
	clusterPtrPos := titlePtrPos + uint64(4*len(entries))
	clusterPos := clusterPtrPos + 8
	checksumPos := clusterPos + uint64(len(clusterBytes))

	mainPage := uint32(noPage)
	if b.hasMain {
		idx, ok := indexByKey[entryKey(b.mainNS, b.mainURL)]
		if !ok {
			return nil, fmt.Errorf("main page %c/%s not found", b.mainNS, b.mainURL)
		}
		mainPage = idx
	}

	var out bytes.Buffer
	writeU32(&out, magicNumber)
	writeU16(&out, 5) // major version
	writeU16(&out, 0) // minor version
	out.Write(bytes.Repeat([]byte{0xAB}, 16))
	writeU32(&out, uint32(len(entries)))
	writeU32(&out, 1) // cluster count
	writeU64(&out, urlPtrPos)
	writeU64(&out, titlePtrPos)
	writeU64(&out, clusterPtrPos)
	writeU64(&out, headerSize) // mimeListPos
	writeU32(&out, mainPage)
	writeU32(&out, noPage) // layout page
	writeU64(&out, checksumPos)

	out.Write(mimeList.Bytes())
	out.Write(dirents.Bytes())
	for _, off := range direntOffsets {
		writeU64(&out, off)
	}
	for _, idx := range titleOrder {
		writeU32(&out, idx)
	}
	writeU64(&out, clusterPos)
	out.Write(clusterBytes)
	return out.Bytes(), nil
}

// buildCluster packs blobs behind an offset table and the info byte,
// compressing the payload per the builder's method.
func (b *Builder) buildCluster(blobs [][]byte) ([]byte, error) {
	width := 4
	if b.extended {
		width = 8
	}

	var payload bytes.Buffer
	tableLen := width * (len(blobs) + 1)
	offset := uint64(tableLen)
	for i := 0; i <= len(blobs); i++ {
		if width == 4 {
			writeU32(&payload, uint32(offset))
		} else {
			writeU64(&payload, offset)
		}
		if i < len(blobs) {
			offset += uint64(len(blobs[i]))
		}
	}
	for _, blob := range blobs {
		payload.Write(blob)
	}

	info := byte(b.compression)
	if b.extended {
		info |= 0x10
	}
	out := []byte{info}

	switch b.compression {
	case CompressionLZMA:
		var buf bytes.Buffer
		w, err := xz.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(payload.Bytes()); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return append(out, buf.Bytes()...), nil
	case CompressionZstd:
		var buf bytes.Buffer
		w, err := zstd.NewWriter(&buf, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(payload.Bytes()); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return append(out, buf.Bytes()...), nil
	default:
		return append(out, payload.Bytes()...), nil
	}
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
