package zim

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"golang.org/x/exp/mmap"
)

// NamespaceArticle tags article entries; other namespaces carry assets,
// metadata, and redirect targets.
const NamespaceArticle = byte('A')

// maxRedirects bounds redirect-chain resolution. A well-formed archive
// reaches content in one or two hops; anything longer is a malformed or
// cyclic chain.
const maxRedirects = 20

// defaultClusterCacheSize is the default number of decompressed clusters
// retained. Decompressed clusters run to a few MiB each, so whole-archive
// retention is memory-unbounded for large archives.
const defaultClusterCacheSize = 64

// Archive is a read-only handle on a ZIM archive. It owns the byte source
// for its lifetime; every decoded view (header, dirents, clusters) borrows
// from it without copying, except for decompression output.
//
// All methods are safe for concurrent use.
type Archive struct {
	src    *source
	closer io.Closer

	header    Header
	mimetypes *MimetypeList

	urlPtrs     pointerArray
	titlePtrs   pointerArray
	clusterPtrs pointerArray

	clusters         *clusterCache
	clusterCacheSize int
}

// Option configures an Archive.
type Option func(*Archive)

// WithClusterCacheSize sets how many decompressed clusters are retained
// before LRU eviction. The default is 64.
func WithClusterCacheSize(n int) Option {
	return func(a *Archive) {
		if n > 0 {
			a.clusterCacheSize = n
		}
	}
}

// Open memory-maps the archive at path and decodes its header.
func Open(path string, opts ...Option) (*Archive, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("zim: open %s: %w", path, err)
	}
	a, err := New(mmapSource{r}, opts...)
	if err != nil {
		r.Close()
		return nil, err
	}
	a.closer = r
	return a, nil
}

// New creates an Archive over an existing byte source, which must be
// immutable for the archive's lifetime. The source is not closed by Close;
// use Open for that.
func New(src ByteSource, opts ...Option) (*Archive, error) {
	a := &Archive{
		src:              newSource(src),
		clusterCacheSize: defaultClusterCacheSize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(a)
	}

	header, err := decodeHeader(a.src)
	if err != nil {
		return nil, err
	}
	a.header = header

	if a.mimetypes, err = decodeMimetypeList(a.src, int64(header.MimeListPos)); err != nil {
		return nil, fmt.Errorf("zim: decode mimetype list: %w", err)
	}

	a.urlPtrs = pointerArray{src: a.src, offset: int64(header.URLPtrPos), width: 8}
	a.titlePtrs = pointerArray{src: a.src, offset: int64(header.TitlePtrPos), width: 4}
	a.clusterPtrs = pointerArray{src: a.src, offset: int64(header.ClusterPtrPos), width: 8}

	if a.clusters, err = newClusterCache(a.clusterCacheSize); err != nil {
		return nil, fmt.Errorf("zim: cluster cache: %w", err)
	}
	return a, nil
}

// Close releases the underlying mapping when the archive was opened from a
// file. Archives created with New over a caller-owned source are unaffected.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Header returns the decoded archive header.
func (a *Archive) Header() Header { return a.header }

// Mimetypes returns the archive's mimetype table.
func (a *Archive) Mimetypes() *MimetypeList { return a.mimetypes }

// Mimetype maps a dirent's mimetype id to its content-type string.
func (a *Archive) Mimetype(id uint16) (string, error) {
	return a.mimetypes.Get(int(id))
}

// EntryAt decodes the dirent at the given URL-pointer index.
func (a *Archive) EntryAt(index uint32) (Dirent, error) {
	if index >= a.header.EntryCount {
		return Dirent{}, fmt.Errorf("%w: entry %d of %d", ErrIndexOutOfRange, index, a.header.EntryCount)
	}
	off, err := a.urlPtrs.at(index)
	if err != nil {
		return Dirent{}, err
	}
	return decodeDirent(a.src, int64(off))
}

// bisect runs an exact-match binary search over [0, n). cmp reports the sign
// of entry(mid) minus the target; a negative sign moves low past mid, a
// positive one pulls high down to mid, and zero returns mid immediately. An
// exhausted range is ErrNotFound, never a panic.
func (a *Archive) bisect(n uint32, cmp func(uint32) (int, error)) (uint32, error) {
	low, high := uint32(0), n
	for low < high {
		mid := low + (high-low)/2
		c, err := cmp(mid)
		if err != nil {
			return 0, err
		}
		switch {
		case c == 0:
			return mid, nil
		case c < 0:
			low = mid + 1
		default:
			high = mid
		}
	}
	return 0, ErrNotFound
}

func compareKey(ns byte, key string, targetNS byte, target string) int {
	if ns != targetNS {
		if ns < targetNS {
			return -1
		}
		return 1
	}
	return strings.Compare(key, target)
}

// FindByURL returns the URL-pointer index of the entry with exactly the
// given namespace and URL. The URL pointer array is sorted by
// (namespace, url), so this is a pure binary search.
func (a *Archive) FindByURL(namespace byte, url string) (uint32, error) {
	return a.bisect(a.header.EntryCount, func(i uint32) (int, error) {
		off, err := a.urlPtrs.at(i)
		if err != nil {
			return 0, err
		}
		ns, entryURL, err := direntURLKey(a.src, int64(off))
		if err != nil {
			return 0, err
		}
		return compareKey(ns, entryURL, namespace, url), nil
	})
}

// FindByTitle returns the URL-pointer index of the entry with exactly the
// given namespace and title, searching through the title pointer array
// (sorted by namespace and title-or-URL) and using the empty-title fallback
// as the sort key.
func (a *Archive) FindByTitle(namespace byte, title string) (uint32, error) {
	var found uint32
	_, err := a.bisect(a.header.EntryCount, func(i uint32) (int, error) {
		urlIndex, err := a.titlePtrs.at(i)
		if err != nil {
			return 0, err
		}
		off, err := a.urlPtrs.at(uint32(urlIndex))
		if err != nil {
			return 0, err
		}
		ns, entryTitle, err := direntTitleKey(a.src, int64(off))
		if err != nil {
			return 0, err
		}
		c := compareKey(ns, entryTitle, namespace, title)
		if c == 0 {
			found = uint32(urlIndex)
		}
		return c, nil
	})
	if err != nil {
		return 0, err
	}
	return found, nil
}

// Resolve follows a redirect chain until it reaches a content dirent.
// Chains longer than maxRedirects fail with ErrRedirectLoop; a malformed
// archive must not hang the reader.
func (a *Archive) Resolve(d Dirent) (Dirent, error) {
	for hop := 0; hop <= maxRedirects; hop++ {
		if d.Kind == DirentContent {
			return d, nil
		}
		next, err := a.EntryAt(d.RedirectIndex)
		if err != nil {
			return Dirent{}, err
		}
		d = next
	}
	return Dirent{}, fmt.Errorf("%w: gave up after %d hops", ErrRedirectLoop, maxRedirects)
}

// LookupURL finds the entry with the given namespace and URL and resolves
// redirects to a content dirent.
func (a *Archive) LookupURL(namespace byte, url string) (Dirent, error) {
	index, err := a.FindByURL(namespace, url)
	if err != nil {
		return Dirent{}, err
	}
	d, err := a.EntryAt(index)
	if err != nil {
		return Dirent{}, err
	}
	return a.Resolve(d)
}

// LookupTitle finds the entry with the given namespace and title and
// resolves redirects to a content dirent.
func (a *Archive) LookupTitle(namespace byte, title string) (Dirent, error) {
	index, err := a.FindByTitle(namespace, title)
	if err != nil {
		return Dirent{}, err
	}
	d, err := a.EntryAt(index)
	if err != nil {
		return Dirent{}, err
	}
	return a.Resolve(d)
}

// MainPage resolves the header's main-page pointer to a content dirent.
func (a *Archive) MainPage() (Dirent, error) {
	if !a.header.HasMainPage() {
		return Dirent{}, ErrNoMainPage
	}
	d, err := a.EntryAt(a.header.MainPage)
	if err != nil {
		return Dirent{}, err
	}
	return a.Resolve(d)
}

// clusterAt locates cluster n. The cluster's byte extent ends at the next
// cluster's offset; the last cluster ends at the checksum position, or at
// end of file for legacy archives without one.
func (a *Archive) clusterAt(n uint32) (cluster, error) {
	if n >= a.header.ClusterCount {
		return cluster{}, fmt.Errorf("%w: cluster %d of %d", ErrIndexOutOfRange, n, a.header.ClusterCount)
	}
	off, err := a.clusterPtrs.at(n)
	if err != nil {
		return cluster{}, err
	}

	var end int64
	if n+1 < a.header.ClusterCount {
		next, err := a.clusterPtrs.at(n + 1)
		if err != nil {
			return cluster{}, err
		}
		end = int64(next)
	} else if pos, err := a.header.ChecksumPos(); err == nil {
		end = int64(pos)
	} else {
		end = a.src.size
	}
	if end > a.src.size {
		end = a.src.size
	}

	info, err := a.src.uint8At(int64(off))
	if err != nil {
		return cluster{}, err
	}
	return cluster{src: a.src, off: int64(off), end: end, info: info}, nil
}

// Blob returns the raw bytes of one blob, decompressing its cluster on first
// access. The fetch returns the complete blob or an error, never a prefix.
func (a *Archive) Blob(clusterNumber, blobNumber uint32) ([]byte, error) {
	c, err := a.clusterAt(clusterNumber)
	if err != nil {
		return nil, err
	}
	return c.blob(a.clusters, blobNumber)
}

// Content resolves a dirent to its blob bytes and content-type string.
func (a *Archive) Content(d Dirent) ([]byte, string, error) {
	d, err := a.Resolve(d)
	if err != nil {
		return nil, "", err
	}
	data, err := a.Blob(d.ClusterNumber, d.BlobNumber)
	if err != nil {
		return nil, "", err
	}
	mimetype, err := a.Mimetype(d.MimetypeID)
	if err != nil {
		return nil, "", err
	}
	return data, mimetype, nil
}

// Entry is one row of the enumeration sequence used to populate external
// indexes.
type Entry struct {
	Index      uint32
	Namespace  byte
	URL        string
	Title      string
	IsArticle  bool
	IsRedirect bool
}

// Entries returns a lazy, one-pass sequence over every dirent in URL-pointer
// order. The sequence is restartable: each range starts again from entry 0.
// Iteration stops after yielding the first decode error.
func (a *Archive) Entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for i := uint32(0); i < a.header.EntryCount; i++ {
			d, err := a.EntryAt(i)
			if err != nil {
				yield(Entry{Index: i}, err)
				return
			}
			e := Entry{
				Index:      i,
				Namespace:  d.Namespace,
				URL:        d.URL,
				Title:      d.EffectiveTitle(),
				IsArticle:  d.Namespace == NamespaceArticle && d.Kind == DirentContent,
				IsRedirect: d.Kind == DirentRedirect,
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Stats reports cluster-cache activity.
type Stats struct {
	// Decompressions counts clusters decompressed since open. Cached reads
	// do not increment it.
	Decompressions int64
	// CachedClusters is the number of decompressed payloads currently held.
	CachedClusters int
}

// Stats returns a snapshot of cache counters.
func (a *Archive) Stats() Stats {
	return Stats{
		Decompressions: a.clusters.decompressions.Load(),
		CachedClusters: a.clusters.entries.Len(),
	}
}
