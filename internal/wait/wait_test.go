package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilReturnsTrueOnFirstObservation(t *testing.T) {
	c := New()
	ok, err := c.Until(context.Background(), func() (bool, error) { return true, nil }, time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUntilTimesOut(t *testing.T) {
	c := New()
	start := time.Now()
	ok, err := c.Until(context.Background(), func() (bool, error) { return false, nil }, 30*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestUntilPropagatesPredicateError(t *testing.T) {
	c := New()
	wantErr := errors.New("boom")
	ok, err := c.Until(context.Background(), func() (bool, error) { return false, wantErr }, time.Second, time.Millisecond)
	assert.False(t, ok)
	assert.ErrorIs(t, err, wantErr)
}

func TestUntilBecomesTrueAfterSeveralPolls(t *testing.T) {
	c := New()
	attempts := 0
	ok, err := c.Until(context.Background(), func() (bool, error) {
		attempts++
		return attempts >= 3, nil
	}, time.Second, 2*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, attempts)
}

func TestSleepHonorsContextCancellation(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	c.Sleep(ctx, time.Second)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
