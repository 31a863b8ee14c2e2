package clients_test

import (
	"context"
	"testing"
	"time"

	"github.com/dbcrossbar/dbcrossbar/pkg/clients"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsBurstThenBlocks(t *testing.T) {
	rl := clients.NewRateLimiter(1, 2)
	ctx := context.Background()

	require.NoError(t, rl.Wait(ctx))
	require.NoError(t, rl.Wait(ctx))

	start := time.Now()
	require.NoError(t, rl.Wait(ctx))
	assert := require.New(t)
	assert.GreaterOrEqual(time.Since(start), 500*time.Millisecond)
}

func TestRateLimiterWaitRespectsContextCancellation(t *testing.T) {
	rl := clients.NewRateLimiter(1, 1)
	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx))

	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, rl.Wait(cancelCtx), context.Canceled)
}
