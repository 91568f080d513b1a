package reindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_FirstTrySuccess(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return nil
	}, 3, 10*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, 5, 10*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	persistent := errors.New("persistent error")
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return persistent
	}, 3, 10*time.Millisecond)

	require.Error(t, err)
	assert.Equal(t, persistent, err, "should return the last attempt's error")
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	for _, maxAttempts := range []int{0, -1} {
		attempts := 0
		err := RetryWithBackoff(context.Background(), func() error {
			attempts++
			return errors.New("error")
		}, maxAttempts, 10*time.Millisecond)

		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.Equal(t, 0, attempts, "should never run the operation")
	}
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := RetryWithBackoff(ctx, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}, 10, 10*time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2, "should stop once the context is canceled")
}

func TestRetryWithBackoff_BackoffGrows(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	lastTime := time.Now()

	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(lastTime))
		}
		lastTime = time.Now()
		if attempts < 4 {
			return errors.New("error")
		}
		return nil
	}, 5, 10*time.Millisecond)

	require.NoError(t, err)
	require.Len(t, delays, 3)

	// Each delay doubles; allow timing variance, only check monotonicity.
	assert.Greater(t, delays[1], delays[0])
	assert.Greater(t, delays[2], delays[1])
}
