package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers keys for a TTL so at-least-once deliveries are
// processed once.
type Deduper struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewDeduper(rdb redis.Cmdable, prefix string, ttl time.Duration) *Deduper {
	return &Deduper{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (d *Deduper) key(k string) string {
	return fmt.Sprintf("localboard:%s:%s", d.prefix, k)
}

// Claim returns true the first time k is seen within the TTL.
func (d *Deduper) Claim(ctx context.Context, k string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, d.key(k), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim %s: %w", k, err)
	}
	return ok, nil
}

// Release forgets k so a failed attempt can be retried by the sender.
func (d *Deduper) Release(ctx context.Context, k string) error {
	if err := d.rdb.Del(ctx, d.key(k)).Err(); err != nil {
		return fmt.Errorf("dedup release %s: %w", k, err)
	}
	return nil
}
