package concurrency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyGuard_RejectsOverlap(t *testing.T) {
	guard := NewConcurrencyGuard()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- guard.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.True(t, guard.Busy())
	assert.ErrorIs(t, guard.Execute(func() error { return nil }), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, guard.Busy())

	// free again after the first task finished
	assert.NoError(t, guard.Execute(func() error { return nil }))
}

func TestConcurrencyGuard_PropagatesTaskError(t *testing.T) {
	guard := NewConcurrencyGuard()
	boom := errors.New("boom")
	assert.ErrorIs(t, guard.Execute(func() error { return boom }), boom)
	assert.False(t, guard.Busy())
}

func TestConcurrencyGuard_ExecuteWithContext(t *testing.T) {
	guard := NewConcurrencyGuard()

	ran := false
	err := guard.ExecuteWithContext(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran = false
	err = guard.ExecuteWithContext(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}
