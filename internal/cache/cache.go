package cache

import (
	"errors"
	"time"

	"github.com/coocood/freecache"
)

var ErrNotFound = errors.New("cache: not found")

type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
	Del(key string)
}

var _ Cache = (*Freecache)(nil)
var _ Cache = Noop{}

type Freecache struct {
	cache *freecache.Cache
}

// NewFreecache creates an in-memory cache of sizeMB megabytes.
// freecache enforces a minimum size of 512KB.
func NewFreecache(sizeMB int) *Freecache {
	return &Freecache{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
	}
}

func (c *Freecache) Get(key string) ([]byte, error) {
	val, err := c.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (c *Freecache) Set(key string, value []byte, ttl time.Duration) error {
	return c.cache.Set([]byte(key), value, int(ttl.Seconds()))
}

func (c *Freecache) Del(key string) {
	c.cache.Del([]byte(key))
}

func (c *Freecache) EntryCount() int64 {
	return c.cache.EntryCount()
}

// Noop is used when caching is disabled.
type Noop struct{}

func (Noop) Get(string) ([]byte, error)              { return nil, ErrNotFound }
func (Noop) Set(string, []byte, time.Duration) error { return nil }
func (Noop) Del(string)                              {}
