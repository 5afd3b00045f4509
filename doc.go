// Package zim reads the ZIM archive format, a compressed indexed container
// used for offline encyclopedic content.
//
// An [Archive] resolves logical page requests — by URL, by title, or via the
// header's main-page pointer — into decompressed article bytes and a MIME
// type. The archive bytes are accessed through a [ByteSource]; local files
// are memory-mapped by [Open], and the [github.com/meridel/zim/http]
// subpackage provides a ByteSource backed by HTTP range requests for remote
// archives.
//
// # Quick Start
//
// Open an archive and fetch a page:
//
//	a, err := zim.Open("wiki.zim")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	d, err := a.LookupURL(zim.NamespaceArticle, "Go_(programming_language)")
//	if err != nil {
//	    return err
//	}
//	body, mimetype, err := a.Content(d)
//
// # Concurrency
//
// All read paths are pure functions over the immutable archive bytes and are
// safe for concurrent use without coordination. The one shared mutable
// resource, the decompressed-cluster cache, deduplicates concurrent first
// reads so each cluster is decompressed at most once.
package zim
