package aggregation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSingleflightLoadCollapsesConcurrentCalls(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(context.Context) (any, error) {
		close(started)
		<-release
		return "rows", nil
	}

	type result struct {
		val    any
		err    error
		shared bool
	}
	leader := make(chan result, 1)
	go func() {
		val, err, shared := singleflightLoad(context.Background(), "collapse", load)
		leader <- result{val, err, shared}
	}()
	<-started

	follower := make(chan result, 1)
	go func() {
		val, err, shared := singleflightLoad(context.Background(), "collapse", func(context.Context) (any, error) {
			return nil, errors.New("second load ran instead of joining the flight")
		})
		follower <- result{val, err, shared}
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	for _, ch := range []chan result{leader, follower} {
		res := <-ch
		require.NoError(t, res.err)
		require.Equal(t, "rows", res.val)
	}
}

func TestSingleflightLoadSurvivesLeaderCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (any, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return "rows", nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err, _ := singleflightLoad(leaderCtx, "leader-cancel", load)
		leaderErr <- err
	}()
	<-started

	type result struct {
		val any
		err error
	}
	follower := make(chan result, 1)
	go func() {
		val, err, _ := singleflightLoad(context.Background(), "leader-cancel", func(context.Context) (any, error) {
			return nil, errors.New("second load ran instead of joining the flight")
		})
		follower <- result{val, err}
	}()
	time.Sleep(20 * time.Millisecond)

	// The leader gives up; its own call fails but the flight keeps going.
	cancel()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	res := <-follower
	require.NoError(t, res.err)
	require.Equal(t, "rows", res.val)
}
