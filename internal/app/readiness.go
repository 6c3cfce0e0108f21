package app

import (
	"context"
	"fmt"
)

// Pinger is the minimal interface for a dependency capable of Ping. The pgx
// pool, the dedupe claimer and the queue producer all satisfy it.
type Pinger interface{ Ping(ctx context.Context) error }

// BuildReadinessChecks returns the db, redis and queue readiness checks.
func BuildReadinessChecks(pool, rdb, queue Pinger) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	check := func(name string, p Pinger) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			if p == nil {
				return fmt.Errorf("%s not configured", name)
			}
			return p.Ping(ctx)
		}
	}
	return check("db", pool), check("redis", rdb), check("queue", queue)
}
