package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSameKeyIsSerialized(t *testing.T) {
	s := NewService()
	defer s.Shutdown()

	var (
		running int32
		overlap int32
		order   []int
		mu      sync.Mutex
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Do(context.Background(), "conv", func(context.Context) error {
				if atomic.AddInt32(&running, 1) > 1 {
					atomic.StoreInt32(&overlap, 1)
				}
				time.Sleep(time.Millisecond)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				atomic.AddInt32(&running, -1)
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&overlap))
	assert.Len(t, order, 20)
}

func TestDifferentKeysRunConcurrently(t *testing.T) {
	s := NewService()
	defer s.Shutdown()

	a := make(chan struct{})
	b := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Do(ctx, "a", func(ctx context.Context) error {
			close(a)
			select {
			case <-b:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Do(ctx, "b", func(ctx context.Context) error {
			close(b)
			select {
			case <-a:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}))
	}()
	wg.Wait()
}

func TestJobErrorAndPanic(t *testing.T) {
	s := NewService()
	defer s.Shutdown()

	want := errors.New("boom")
	assert.ErrorIs(t, s.Do(context.Background(), "k", func(context.Context) error { return want }), want)

	err := s.Do(context.Background(), "k", func(context.Context) error { panic("oops") })
	assert.ErrorContains(t, err, "panicked")

	assert.NoError(t, s.Do(context.Background(), "k", func(context.Context) error { return nil }))
}

func TestCancelledJobIsSkipped(t *testing.T) {
	s := NewService()
	defer s.Shutdown()

	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = s.Do(context.Background(), "k", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool

	done := make(chan error, 1)
	go func() {
		done <- s.Do(ctx, "k", func(context.Context) error {
			ran.Store(true)
			return nil
		})
	}()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.NoError(t, s.Do(context.Background(), "k", func(context.Context) error { return nil }))
	assert.False(t, ran.Load())
}

func TestShutdown(t *testing.T) {
	s := NewService()

	require.NoError(t, s.Do(context.Background(), "k", func(context.Context) error { return nil }))
	require.NoError(t, s.Shutdown())

	assert.ErrorIs(t, s.Do(context.Background(), "k", func(context.Context) error { return nil }), ErrClosed)
}
