package app

import (
	"context"
	"fmt"
)

// Pinger is anything that can report its own reachability.
type Pinger interface{ Ping(ctx context.Context) error }

// BuildReadinessChecks returns the db, redis and tika readiness checks. A
// nil dependency reports "not configured".
func BuildReadinessChecks(db, redis, tika Pinger) (dbCheck, redisCheck, tikaCheck func(ctx context.Context) error) {
	return check("db", db), check("redis", redis), check("tika", tika)
}

func check(name string, p Pinger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if p == nil {
			return fmt.Errorf("%s not configured", name)
		}
		return p.Ping(ctx)
	}
}
