package zim

import "fmt"

// MimetypeList is the archive's ordered table of content-type strings,
// indexed by the mimetype id embedded in dirents.
//
// The on-disk form is a run of NUL-terminated strings ended by an empty
// string (two consecutive NULs). The list is materialized eagerly in one
// scan at open time, so Get is O(1) afterwards.
type MimetypeList struct {
	types []string
}

func decodeMimetypeList(s *source, offset int64) (*MimetypeList, error) {
	var types []string
	for off := offset; ; {
		mt, next, err := s.cstringAt(off)
		if err != nil {
			return nil, err
		}
		if mt == "" {
			break
		}
		types = append(types, mt)
		off = next
	}
	return &MimetypeList{types: types}, nil
}

// Len returns the number of mimetypes in the list.
func (m *MimetypeList) Len() int { return len(m.types) }

// Get returns the mimetype string with the given id.
func (m *MimetypeList) Get(index int) (string, error) {
	if index < 0 || index >= len(m.types) {
		return "", fmt.Errorf("%w: mimetype %d of %d", ErrIndexOutOfRange, index, len(m.types))
	}
	return m.types[index], nil
}

// IndexOf returns the id of the given mimetype string, if present.
func (m *MimetypeList) IndexOf(mimetype string) (int, bool) {
	for i, mt := range m.types {
		if mt == mimetype {
			return i, true
		}
	}
	return 0, false
}
