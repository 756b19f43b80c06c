package notifications

import (
	"sync"
	"time"
)

// rateCache is a bounded, TTL-evicting counter keyed by
// (recipient, category). It caps how often one address can be mailed about
// one category, without growing past maxKeys for the life of the process.
type rateCache struct {
	mu      sync.Mutex
	now     func() time.Time
	data    map[string]*rateBucket
	maxKeys int
	limit   int
	window  time.Duration
}

type rateBucket struct {
	count     int
	windowEnd time.Time
}

func newRateCache(limit int, window time.Duration, maxKeys int) *rateCache {
	return &rateCache{
		now:     time.Now,
		data:    make(map[string]*rateBucket),
		maxKeys: maxKeys,
		limit:   limit,
		window:  window,
	}
}

// Allow reports whether one more send is permitted for the key and counts
// it when so.
func (c *rateCache) Allow(recipient, category string) bool {
	key := recipient + "|" + category
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.data[key]
	if ok && now.After(bucket.windowEnd) {
		delete(c.data, key)
		ok = false
	}
	if !ok {
		if len(c.data) >= c.maxKeys {
			c.gc(now)
		}
		if len(c.data) >= c.maxKeys {
			return false
		}
		bucket = &rateBucket{windowEnd: now.Add(c.window)}
		c.data[key] = bucket
	}

	if bucket.count >= c.limit {
		return false
	}
	bucket.count++
	return true
}

func (c *rateCache) gc(now time.Time) {
	for key, bucket := range c.data {
		if now.After(bucket.windowEnd) {
			delete(c.data, key)
		}
	}
}
