package geolib

import (
	"net"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheWindow = 20 * time.Minute

	resultCacheItems = 1024
	resultCacheSelf  = "self"
)

// ResultCache memoizes resolved records within coarse time buckets.
// A bucket is floor(now / window): every call within the same bucket
// reuses the same record, there is no comparison of wall clock with
// a time when record was cached.
//
// Concurrent misses for the same bucket are collapsed into a single
// resolution.
type ResultCache struct {
	cache  *ristretto.Cache
	group  singleflight.Group
	window time.Duration
	now    func() time.Time
}

func (r *ResultCache) Get(ip net.IP) (*LocationRecord, bool) {
	value, ok := r.cache.Get(r.key(ip))
	if !ok {
		return nil, false
	}

	return value.(*LocationRecord).Copy(), true
}

func (r *ResultCache) Set(ip net.IP, record *LocationRecord) {
	if !record.HasLocation() {
		return
	}

	r.cache.SetWithTTL(r.key(ip), record.Copy(), 1, r.window)

	// ristretto is eventually consistent.
	r.cache.Wait()
}

// Do executes callback if there is no other execution for the same
// bucket in flight. Otherwise it waits for that execution and returns
// its result.
func (r *ResultCache) Do(ip net.IP, callback func() *LocationRecord) *LocationRecord {
	value, _, _ := r.group.Do(r.key(ip), func() (interface{}, error) {
		return callback(), nil
	})

	return value.(*LocationRecord).Copy()
}

func (r *ResultCache) Invalidate() {
	r.cache.Clear()
}

func (r *ResultCache) Close() {
	r.cache.Close()
}

func (r *ResultCache) key(ip net.IP) string {
	target := resultCacheSelf
	if ip != nil {
		target = ip.String()
	}

	bucket := r.now().UnixNano() / int64(r.window)

	return strconv.FormatInt(bucket, 10) + "|" + target
}

func NewResultCache(window time.Duration, now func() time.Time) *ResultCache {
	if window <= 0 {
		window = DefaultCacheWindow
	}

	if now == nil {
		now = time.Now
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		MaxCost:     resultCacheItems,
		NumCounters: 10 * resultCacheItems,
		BufferItems: 64,
	})
	if err != nil {
		panic(err)
	}

	return &ResultCache{
		cache:  cache,
		window: window,
		now:    now,
	}
}
