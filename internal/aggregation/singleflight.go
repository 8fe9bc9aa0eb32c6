package aggregation

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Concurrent admins refreshing the same worklist collapse into one
// repository read.
var loadGroup singleflight.Group

func singleflightLoad(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	// The load runs on a detached context. The flight is shared, so a
	// leader that gives up must not fail the followers still waiting.
	loadCtx := context.WithoutCancel(ctx)
	resultChan := loadGroup.DoChan(key, func() (any, error) {
		return fn(loadCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
