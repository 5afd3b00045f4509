package search_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridel/zim"
	"github.com/meridel/zim/internal/search"
	"github.com/meridel/zim/internal/zimtest"
)

func testArchive(t *testing.T) *zim.Archive {
	t.Helper()
	data := zimtest.NewBuilder().
		AddContent('A', "Go_(language)", "Go (language)", "text/html", []byte("go")).
		AddContent('A', "Golang_history", "History of Go", "text/html", []byte("history")).
		AddContent('A', "Python", "Python", "text/html", []byte("python")).
		AddContent('I', "logo.png", "Go logo", "image/png", []byte{1, 2, 3}).
		AddRedirect('A', "Golang", "Golang", 'A', "Go_(language)").
		Build(t)
	a, err := zim.New(bytes.NewReader(data))
	require.NoError(t, err)
	return a
}

func openIndex(t *testing.T) *search.Index {
	t.Helper()
	ix, err := search.Open(filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestIndexBuildAndQuery(t *testing.T) {
	t.Parallel()

	ix := openIndex(t)
	require.NoError(t, ix.Build(testArchive(t)))

	// Only article content entries are indexed: no images, no redirects.
	results, err := ix.Query("", 100)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = ix.Query("Go", 100)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Shortest title first.
	assert.Equal(t, "Go (language)", results[0].Title)
	assert.Equal(t, "Go_(language)", results[0].URL)
	assert.Equal(t, "History of Go", results[1].Title)

	results, err = ix.Query("Python", 100)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Python", results[0].URL)

	results, err = ix.Query("no such page", 100)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexQueryLimit(t *testing.T) {
	t.Parallel()

	ix := openIndex(t)
	require.NoError(t, ix.Build(testArchive(t)))

	results, err := ix.Query("", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestIndexBuildIdempotent(t *testing.T) {
	t.Parallel()

	ix := openIndex(t)
	a := testArchive(t)
	require.NoError(t, ix.Build(a))
	require.NoError(t, ix.Build(a))

	results, err := ix.Query("", 100)
	require.NoError(t, err)
	assert.Len(t, results, 3, "a populated index is not rebuilt")
}
