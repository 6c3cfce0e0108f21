// Package dedupe implements the advisory stage claim on Redis. A claim
// stops two workers from polling the same presentation concurrently after a
// duplicate queue delivery; the repository CAS remains the authoritative
// guard on the stored result.
package dedupe

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/valorize-app/valorize/internal/domain"
)

// Claimer implements domain.StageClaimer with SET NX PX.
type Claimer struct {
	rdb *redis.Client
}

// New constructs a Claimer over the given Redis address.
func New(addr string) *Claimer {
	return &Claimer{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewWithClient constructs a Claimer over an existing client.
func NewWithClient(rdb *redis.Client) *Claimer {
	return &Claimer{rdb: rdb}
}

// Claim acquires key for ttl. Returns false when another worker holds it.
func (c *Claimer) Claim(ctx domain.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("op=dedupe.claim: %w", err)
	}
	return ok, nil
}

// Release drops the claim early so a legitimate retry does not wait for the
// ttl to lapse.
func (c *Claimer) Release(ctx domain.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("op=dedupe.release: %w", err)
	}
	return nil
}

// Ping reports broker health for the readiness probe.
func (c *Claimer) Ping(ctx domain.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *Claimer) Close() error { return c.rdb.Close() }
