package zim

import "fmt"

// Record layouts describe the packed little-endian structures of the ZIM
// format. Field offsets are the running sum of prior field sizes, computed
// once at package init and shared as immutable values; fields are read
// independently so hot paths (binary-search comparisons) never materialize
// a whole record.

type fieldKind uint8

const (
	fieldUint8 fieldKind = iota
	fieldUint16
	fieldUint32
	fieldUint64
	fieldBytes
)

func (k fieldKind) width() int64 {
	switch k {
	case fieldUint8:
		return 1
	case fieldUint16:
		return 2
	case fieldUint32:
		return 4
	case fieldUint64:
		return 8
	default:
		return 0
	}
}

// fieldSpec declares one field of a record. size overrides the kind's
// natural width and is required for fieldBytes.
type fieldSpec struct {
	name string
	kind fieldKind
	size int64
}

// field is a resolved (offset, width) pair within a record.
type field struct {
	offset int64
	width  int64
}

func (f field) uint8(s *source, base int64) (uint8, error) {
	return s.uint8At(base + f.offset)
}

func (f field) uint16(s *source, base int64) (uint16, error) {
	return s.uint16At(base + f.offset)
}

func (f field) uint32(s *source, base int64) (uint32, error) {
	return s.uint32At(base + f.offset)
}

func (f field) uint64(s *source, base int64) (uint64, error) {
	return s.uint64At(base + f.offset)
}

func (f field) bytes(s *source, base int64) ([]byte, error) {
	return s.bytesAt(base+f.offset, f.width)
}

// recordLayout maps field names to offsets and knows the record's total
// fixed size. Immutable after construction.
type recordLayout struct {
	fields map[string]field
	size   int64
}

func newRecordLayout(specs ...fieldSpec) *recordLayout {
	l := &recordLayout{fields: make(map[string]field, len(specs))}
	for _, spec := range specs {
		width := spec.size
		if width == 0 {
			width = spec.kind.width()
		}
		if width == 0 {
			panic(fmt.Sprintf("zim: field %q needs an explicit size", spec.name))
		}
		l.fields[spec.name] = field{offset: l.size, width: width}
		l.size += width
	}
	return l
}

// field returns the resolved field by name. Unknown names are programmer
// errors caught the first time the layout is exercised.
func (l *recordLayout) field(name string) field {
	f, ok := l.fields[name]
	if !ok {
		panic(fmt.Sprintf("zim: unknown field %q", name))
	}
	return f
}
