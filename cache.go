package zim

import (
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// clusterCache memoizes decompressed cluster payloads keyed by cluster byte
// offset. Concurrent first readers of the same cluster are deduplicated with
// singleflight so decompression runs at most once per key; the exclusion is
// per cluster, never a global lock, so unrelated decompressions proceed in
// parallel. Entries are evicted LRU once the configured capacity is reached.
type clusterCache struct {
	group   singleflight.Group
	entries *lru.Cache[int64, []byte]

	decompressions atomic.Int64
}

func newClusterCache(size int) (*clusterCache, error) {
	entries, err := lru.New[int64, []byte](size)
	if err != nil {
		return nil, err
	}
	return &clusterCache{entries: entries}, nil
}

// payload returns the decompressed payload for the cluster at off, invoking
// decompress on a miss.
func (cc *clusterCache) payload(off int64, decompress func() ([]byte, error)) ([]byte, error) {
	if data, ok := cc.entries.Get(off); ok {
		return data, nil
	}

	result, err, _ := cc.group.Do(strconv.FormatInt(off, 10), func() (any, error) {
		// Double-check: another goroutine may have cached this cluster
		// between our lookup and winning the singleflight slot.
		if data, ok := cc.entries.Get(off); ok {
			return data, nil
		}
		data, err := decompress()
		if err != nil {
			return nil, err
		}
		cc.decompressions.Add(1)
		cc.entries.Add(off, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	data, _ := result.([]byte)
	return data, nil
}
