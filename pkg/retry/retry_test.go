package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsEventually(t *testing.T) {
	p := retry.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return dbcerrors.New(dbcerrors.KindNetwork, "connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	p := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return dbcerrors.New(dbcerrors.KindTimeout, "deadline exceeded")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoDoesNotRetryNonRetryable(t *testing.T) {
	attempts := 0
	err := retry.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("permanent failure")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
