// Package http provides a zim.ByteSource backed by HTTP range requests, so
// an archive can be served straight from a URL without downloading it.
//
// ZIM archives are routinely tens of gigabytes; range requests let the
// reader touch only the headers, pointer arrays, and clusters a request
// actually needs. The remote content must be immutable: the source pins the
// ETag and Last-Modified observed at open time and sends them as
// preconditions on every read, so an archive replaced mid-flight fails
// loudly instead of serving torn records.
package http

import (
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
)

// ErrRangeUnsupported is returned when the remote ignores Range headers.
// A ZIM archive cannot be read over plain full-body GETs.
var ErrRangeUnsupported = errors.New("zim/http: server does not support range requests")

// Source implements random access reads of a remote archive via HTTP range
// requests. It satisfies zim.ByteSource (io.ReaderAt plus Size) and is safe
// for concurrent use.
type Source struct {
	url          string
	client       *nethttp.Client
	size         int64
	etag         string
	lastModified string
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		if client != nil {
			s.client = client
		}
	}
}

// NewSource probes url with a one-byte range request to learn the archive
// size and validators, and returns a Source reading from it.
func NewSource(url string, opts ...Option) (*Source, error) {
	s := &Source{
		url:    url,
		client: nethttp.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.probe(); err != nil {
		return nil, err
	}
	return s, nil
}

// Size returns the total size of the remote archive.
func (s *Source) Size() int64 { return s.size }

// ReadAt reads len(p) bytes at offset off with a single range request.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("zim/http: read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}

	end := off + int64(len(p)) - 1
	want := len(p)
	if end >= s.size {
		end = s.size - 1
		want = int(end - off + 1)
	}

	resp, err := s.get(fmt.Sprintf("bytes=%d-%d", off, end))
	if err != nil {
		return 0, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusRequestedRangeNotSatisfiable:
		return 0, io.EOF
	case nethttp.StatusOK:
		return 0, ErrRangeUnsupported
	case nethttp.StatusPreconditionFailed:
		return 0, fmt.Errorf("zim/http: remote archive changed since open")
	default:
		return 0, fmt.Errorf("zim/http: range request failed: %s", resp.Status)
	}

	n, err := io.ReadFull(resp.Body, p[:want])
	if err != nil {
		return n, err
	}
	if want < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *Source) probe() error {
	resp, err := s.get("bytes=0-0")
	if err != nil {
		return err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusOK:
		return ErrRangeUnsupported
	default:
		return fmt.Errorf("zim/http: probe failed: %s", resp.Status)
	}

	size, err := totalFromContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return err
	}
	s.size = size
	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	return nil
}

func (s *Source) get(rangeValue string) (*nethttp.Response, error) {
	req, err := nethttp.NewRequest(nethttp.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", rangeValue)
	req.Header.Set("Accept-Encoding", "identity")
	if s.etag != "" {
		req.Header.Set("If-Match", s.etag)
	} else if s.lastModified != "" {
		req.Header.Set("If-Unmodified-Since", s.lastModified)
	}
	return s.client.Do(req)
}

func drain(resp *nethttp.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// totalFromContentRange extracts the complete length from a Content-Range
// header such as "bytes 0-0/53687091200".
func totalFromContentRange(value string) (int64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return 0, fmt.Errorf("zim/http: invalid Content-Range %q", value)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("zim/http: invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("zim/http: invalid Content-Range %q", value)
	}
	return size, nil
}
