package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSweeper struct {
	mu     sync.Mutex
	calls  int
	limits []int
	err    error
}

func (s *recordingSweeper) SweepExpired(_ context.Context, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.limits = append(s.limits, limit)
	return 1, s.err
}

func (s *recordingSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestReaperSweepsUntilCancelled(t *testing.T) {
	sweeper := &recordingSweeper{}
	reaper := NewExpiryReaper(sweeper, time.Millisecond, 50)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sweeper.count() >= 3 },
		time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop on context cancel")
	}

	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()
	for _, limit := range sweeper.limits {
		assert.Equal(t, 50, limit)
	}
}

func TestReaperKeepsGoingAfterSweepError(t *testing.T) {
	sweeper := &recordingSweeper{err: errors.New("db down")}
	reaper := NewExpiryReaper(sweeper, time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reaper.Run(ctx)

	// Errors are logged, not fatal; the ticker keeps firing.
	require.Eventually(t, func() bool { return sweeper.count() >= 2 },
		time.Second, time.Millisecond)
}

func TestReaperEndToEnd(t *testing.T) {
	f, tierID := newFixture(t, 10)

	_, err := f.svc.Create(context.Background(), customer(1), tierID, 2)
	require.NoError(t, err)
	f.clk.advance(16 * time.Minute)

	reaper := NewExpiryReaper(f.svc, time.Millisecond, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reaper.Run(ctx)

	require.Eventually(t, func() bool {
		f.w.mu.Lock()
		defer f.w.mu.Unlock()
		return f.w.tiers[tierID].Sold == 0
	}, time.Second, time.Millisecond)
}
