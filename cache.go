package idcompressor

import lru "github.com/hashicorp/golang-lru/v2"

const defaultCacheSize = 4096

// idCache memoizes the two hot conversions a long-running session repeats
// constantly: final ID -> stable ID (decompress) and stable ID -> session-
// space ID (recompress). Both mappings are immutable for the lifetime of
// a compressor once computed — a final ID's owning cluster never moves,
// and a stable ID either belongs to a cluster or it doesn't — so there is
// no invalidation to manage, only eviction of the coldest entries once
// the cache is full.
type idCache struct {
	decompress *lru.Cache[FinalID, StableID]
	recompress *lru.Cache[StableID, SessionSpaceID]
}

func newIDCache(size int) (*idCache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	decompress, err := lru.New[FinalID, StableID](size)
	if err != nil {
		return nil, err
	}
	recompress, err := lru.New[StableID, SessionSpaceID](size)
	if err != nil {
		return nil, err
	}
	return &idCache{decompress: decompress, recompress: recompress}, nil
}

func (c *idCache) getDecompressed(final FinalID) (StableID, bool) {
	return c.decompress.Get(final)
}

func (c *idCache) putDecompressed(final FinalID, stable StableID) {
	c.decompress.Add(final, stable)
}

func (c *idCache) getRecompressed(stable StableID) (SessionSpaceID, bool) {
	return c.recompress.Get(stable)
}

func (c *idCache) putRecompressed(stable StableID, id SessionSpaceID) {
	c.recompress.Add(stable, id)
}
