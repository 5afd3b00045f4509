package zim

import "fmt"

// redirectMimetype in the first two bytes of a dirent marks the redirect
// variant; every other value is a content entry's mimetype id.
const redirectMimetype = 0xFFFF

var contentDirentLayout = newRecordLayout(
	fieldSpec{name: "mimetype", kind: fieldUint16},
	fieldSpec{name: "parameterLen", kind: fieldUint8},
	fieldSpec{name: "namespace", kind: fieldUint8},
	fieldSpec{name: "revision", kind: fieldUint32},
	fieldSpec{name: "clusterNumber", kind: fieldUint32},
	fieldSpec{name: "blobNumber", kind: fieldUint32},
)

var redirectDirentLayout = newRecordLayout(
	fieldSpec{name: "mimetype", kind: fieldUint16},
	fieldSpec{name: "parameterLen", kind: fieldUint8},
	fieldSpec{name: "namespace", kind: fieldUint8},
	fieldSpec{name: "revision", kind: fieldUint32},
	fieldSpec{name: "redirectIndex", kind: fieldUint32},
)

// Fields resolved once for the hot paths. The common prefix is identical in
// both variants, so prefix fields resolve through either layout.
var (
	fldDirentMimetype  = contentDirentLayout.field("mimetype")
	fldDirentParamLen  = contentDirentLayout.field("parameterLen")
	fldDirentNamespace = contentDirentLayout.field("namespace")
	fldDirentRevision  = contentDirentLayout.field("revision")
	fldContentCluster  = contentDirentLayout.field("clusterNumber")
	fldContentBlob     = contentDirentLayout.field("blobNumber")
	fldRedirectTarget  = redirectDirentLayout.field("redirectIndex")
)

// DirentKind discriminates the two dirent variants.
type DirentKind uint8

const (
	// DirentContent is an entry whose payload lives in a cluster blob.
	DirentContent DirentKind = iota
	// DirentRedirect is an entry pointing at another entry by URL index.
	DirentRedirect
)

func (k DirentKind) String() string {
	if k == DirentRedirect {
		return "redirect"
	}
	return "content"
}

// Dirent is one directory entry: a typed view over the archive bytes,
// decoded transiently per lookup. Kind selects which variant payload is
// meaningful: ClusterNumber/BlobNumber for content entries, RedirectIndex
// (an index into the URL pointer array, not a byte offset) for redirects.
type Dirent struct {
	Kind       DirentKind
	MimetypeID uint16
	Namespace  byte
	Revision   uint32
	URL        string
	Title      string
	Parameter  []byte

	ClusterNumber uint32
	BlobNumber    uint32
	RedirectIndex uint32
}

// EffectiveTitle returns the title, falling back to the URL when the stored
// title is empty. Used uniformly wherever a display or sort title is needed.
func (d Dirent) EffectiveTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.URL
}

func (d Dirent) String() string {
	return fmt.Sprintf("%s url: %s, title: %s", d.Kind, d.URL, d.Title)
}

func decodeDirent(s *source, off int64) (Dirent, error) {
	var d Dirent
	mimetype, err := fldDirentMimetype.uint16(s, off)
	if err != nil {
		return Dirent{}, err
	}
	d.MimetypeID = mimetype

	layout := contentDirentLayout
	if mimetype == redirectMimetype {
		d.Kind = DirentRedirect
		layout = redirectDirentLayout
	}

	paramLen, err := fldDirentParamLen.uint8(s, off)
	if err != nil {
		return Dirent{}, err
	}
	ns, err := fldDirentNamespace.uint8(s, off)
	if err != nil {
		return Dirent{}, err
	}
	d.Namespace = ns
	if d.Revision, err = fldDirentRevision.uint32(s, off); err != nil {
		return Dirent{}, err
	}

	if d.Kind == DirentRedirect {
		if d.RedirectIndex, err = fldRedirectTarget.uint32(s, off); err != nil {
			return Dirent{}, err
		}
	} else {
		if d.ClusterNumber, err = fldContentCluster.uint32(s, off); err != nil {
			return Dirent{}, err
		}
		if d.BlobNumber, err = fldContentBlob.uint32(s, off); err != nil {
			return Dirent{}, err
		}
	}

	// Variable tail: NUL-terminated URL, NUL-terminated title, then
	// parameterLen bytes of opaque extra data.
	next := off + layout.size
	if d.URL, next, err = s.cstringAt(next); err != nil {
		return Dirent{}, err
	}
	if d.Title, next, err = s.cstringAt(next); err != nil {
		return Dirent{}, err
	}
	if paramLen > 0 {
		if d.Parameter, err = s.bytesAt(next, int64(paramLen)); err != nil {
			return Dirent{}, err
		}
	}
	return d, nil
}

// direntTailOffset returns the offset of a dirent's variable tail, which
// depends on the variant's fixed size.
func direntTailOffset(s *source, off int64) (int64, error) {
	mimetype, err := fldDirentMimetype.uint16(s, off)
	if err != nil {
		return 0, err
	}
	if mimetype == redirectMimetype {
		return off + redirectDirentLayout.size, nil
	}
	return off + contentDirentLayout.size, nil
}

// direntURLKey decodes only the (namespace, url) sort key of the dirent at
// off. Binary search probes read this instead of whole records.
func direntURLKey(s *source, off int64) (byte, string, error) {
	tail, err := direntTailOffset(s, off)
	if err != nil {
		return 0, "", err
	}
	ns, err := fldDirentNamespace.uint8(s, off)
	if err != nil {
		return 0, "", err
	}
	url, _, err := s.cstringAt(tail)
	if err != nil {
		return 0, "", err
	}
	return ns, url, nil
}

// direntTitleKey decodes the (namespace, title-or-url) sort key of the
// dirent at off, with the empty-title fallback applied.
func direntTitleKey(s *source, off int64) (byte, string, error) {
	tail, err := direntTailOffset(s, off)
	if err != nil {
		return 0, "", err
	}
	ns, err := fldDirentNamespace.uint8(s, off)
	if err != nil {
		return 0, "", err
	}
	url, next, err := s.cstringAt(tail)
	if err != nil {
		return 0, "", err
	}
	title, _, err := s.cstringAt(next)
	if err != nil {
		return 0, "", err
	}
	if title == "" {
		title = url
	}
	return ns, title, nil
}
