// Package seatcache keeps rendered seat maps in Redis.  Values are the
// JSON encoded seat list of a show under "<prefix>:<showID>"; a counter
// under "<prefix>:<showID>:gen" is bumped on every invalidation and guards
// writes.  Redis errors never fail a request: a broken cache behaves like
// an empty one.
package seatcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-ticket-booking/internal/logging"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// DefaultPrefix namespaces seat map keys.
const DefaultPrefix = "seatmap"

// generationTTL keeps idle generation counters from piling up.  It must
// exceed the time between reading a generation and writing the entry.
const generationTTL = 24 * time.Hour

// setIfGeneration stores ARGV[2] under KEYS[2] for ARGV[3] ms unless the
// generation in KEYS[1] moved away from ARGV[1].
var setIfGeneration = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
if cur ~= tonumber(ARGV[1]) then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Cache implements booking.AvailabilityCache on top of Redis.
type Cache struct {
	rdb    *redis.Client
	prefix string
}

// New returns a Cache using rdb.  A nil client yields a nil Cache, which
// callers treat as "no cache".
func New(rdb *redis.Client, prefix string) *Cache {
	if rdb == nil {
		return nil
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Cache{rdb: rdb, prefix: prefix}
}

func (c *Cache) key(showID uint64) string {
	return fmt.Sprintf("%s:%d", c.prefix, showID)
}

func (c *Cache) genKey(showID uint64) string {
	return c.key(showID) + ":gen"
}

// Get returns the cached seat map of a show.
func (c *Cache) Get(ctx context.Context, showID uint64) ([]model.SeatAvailability, bool) {
	bs, err := c.rdb.Get(ctx, c.key(showID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).WithError(err).Warn("seat map cache read failed")
		}
		return nil, false
	}
	var seats []model.SeatAvailability
	if err := json.Unmarshal(bs, &seats); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("seat map cache entry corrupt")
		return nil, false
	}
	return seats, true
}

// Generation returns the invalidation counter of a show.  Read it before
// loading the seat map from storage and hand it to Set.  ok is false when
// Redis cannot answer; the result must not be cached then.
func (c *Cache) Generation(ctx context.Context, showID uint64) (int64, bool) {
	gen, err := c.rdb.Get(ctx, c.genKey(showID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("seat map generation read failed")
		return 0, false
	}
	return gen, true
}

// Set stores seats for ttl if no invalidation happened since gen was read,
// so a map built before a concurrent change never overwrites the newer
// state.
func (c *Cache) Set(ctx context.Context, showID uint64, gen int64, seats []model.SeatAvailability, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	bs, err := json.Marshal(seats)
	if err != nil {
		return
	}
	keys := []string{c.genKey(showID), c.key(showID)}
	stored, err := setIfGeneration.Run(ctx, c.rdb, keys, gen, string(bs), ttl.Milliseconds()).Int()
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("seat map cache write failed")
		return
	}
	if stored == 0 {
		logging.FromContext(ctx).WithField("show_id", showID).Debug("seat map changed while loading, not cached")
	}
}

// Invalidate bumps the generation of a show and drops its cached seat map.
func (c *Cache) Invalidate(ctx context.Context, showID uint64) {
	l := logging.FromContext(ctx).WithField("show_id", showID)
	gk := c.genKey(showID)
	if err := c.rdb.Incr(ctx, gk).Err(); err != nil {
		l.WithError(err).Warn("seat map generation bump failed")
	} else if err := c.rdb.Expire(ctx, gk, generationTTL).Err(); err != nil {
		l.WithError(err).Warn("seat map generation expiry failed")
	}
	if err := c.rdb.Del(ctx, c.key(showID)).Err(); err != nil {
		l.WithError(err).Warn("seat map cache invalidation failed")
	}
}
