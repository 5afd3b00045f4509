// Package server serves a ZIM archive as a small wiki over HTTP.
package server

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/meridel/zim"
	"github.com/meridel/zim/internal/search"
)

var searchTemplate = template.Must(template.New("search").Parse(`<!DOCTYPE html>
<html>
<head><title>Search: {{.Query}}</title></head>
<body>
<h1>{{len .Results}} result(s) for &quot;{{.Query}}&quot;</h1>
<ul>
{{- range .Results}}
<li><a href="/{{.URL}}">{{.Title}}</a></li>
{{- end}}
</ul>
</body>
</html>
`))

// Server resolves wiki page requests against an archive, with an optional
// search index for the /search route.
type Server struct {
	archive *zim.Archive
	index   *search.Index
	log     *slog.Logger
}

// New creates a Server. index may be nil, disabling /search.
func New(archive *zim.Archive, index *search.Index, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{archive: archive, index: index, log: log}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleMainPage)
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /w/", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /", s.handlePage)
	return mux
}

func (s *Server) handleMainPage(w http.ResponseWriter, r *http.Request) {
	d, err := s.archive.MainPage()
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.renderPage(w, r, d)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	namespace, page := splitNamespace(strings.TrimPrefix(r.URL.Path, "/"))
	d, err := s.archive.LookupURL(namespace, page)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.renderPage(w, r, d)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		http.Error(w, "Search is disabled", http.StatusNotFound)
		return
	}
	query := r.URL.Query().Get("q")
	results, err := s.index.Query(query, 100)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if len(results) == 1 {
		http.Redirect(w, r, "/"+url.PathEscape(results[0].URL), http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = searchTemplate.Execute(w, struct {
		Query   string
		Results []search.Result
	}{Query: query, Results: results})
	if err != nil {
		s.log.Error("render search results", "query", query, "error", err)
	}
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, d zim.Dirent) {
	body, mimetype, err := s.archive.Content(d)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", mimetype)
	if _, err := w.Write(body); err != nil {
		s.log.Debug("write response", "url", d.URL, "error", err)
	}
}

// renderError maps reader errors to HTTP statuses: lookup failures are plain
// 404s, everything else is a 500 worth logging.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, zim.ErrNotFound), errors.Is(err, zim.ErrNoMainPage):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
		http.Error(w, fmt.Sprintf("Internal error: %v", err), http.StatusInternalServerError)
	}
}

// splitNamespace separates the one-byte namespace prefix from a request
// path. Paths without a namespace segment default to articles, matching the
// common case of in-article relative links.
func splitNamespace(path string) (byte, string) {
	if len(path) >= 2 && path[1] == '/' && isNamespaceByte(path[0]) {
		return path[0], path[2:]
	}
	return zim.NamespaceArticle, path
}

func isNamespaceByte(b byte) bool {
	return b == '-' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
