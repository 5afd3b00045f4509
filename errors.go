package zim

import "errors"

// Archive-level errors, fatal to the handle.
var (
	// ErrInvalidMagic is returned when the archive header does not carry the
	// ZIM magic number.
	ErrInvalidMagic = errors.New("zim: invalid magic number")

	// ErrTruncated is returned when a record extends past the end of the
	// archive, including unterminated dirent strings.
	ErrTruncated = errors.New("zim: truncated archive")
)

// Decode errors, fatal to a single lookup.
var (
	// ErrOutOfBounds is returned when a field read falls outside the mapped
	// archive bytes or a decompressed cluster payload.
	ErrOutOfBounds = errors.New("zim: read out of bounds")

	// ErrNoChecksum is returned by Header.ChecksumPos for legacy archives
	// whose header ends before the checksum field. Not fatal; the archive
	// simply carries no checksum position.
	ErrNoChecksum = errors.New("zim: header has no checksum position")
)

// Lookup errors, expected and recoverable.
var (
	// ErrNotFound is returned when no entry matches a URL or title lookup.
	ErrNotFound = errors.New("zim: entry not found")

	// ErrRedirectLoop is returned when redirect resolution does not reach a
	// content entry within a bounded number of hops.
	ErrRedirectLoop = errors.New("zim: redirect loop")

	// ErrNoMainPage is returned by MainPage when the archive header carries
	// the "no main page" sentinel.
	ErrNoMainPage = errors.New("zim: archive has no main page")
)

// Cluster errors, fatal to a single blob fetch.
var (
	// ErrIndexOutOfRange is returned for out-of-range mimetype, pointer,
	// entry, cluster, or blob indices.
	ErrIndexOutOfRange = errors.New("zim: index out of range")

	// ErrUnsupportedCompression is returned when a cluster's info byte
	// carries a compression method this reader does not implement.
	ErrUnsupportedCompression = errors.New("zim: unsupported cluster compression")

	// ErrDecompression is returned when a cluster's compressed payload is
	// corrupt or truncated.
	ErrDecompression = errors.New("zim: cluster decompression failed")
)
