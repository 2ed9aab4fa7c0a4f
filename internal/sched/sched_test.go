package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Gocron {
	t.Helper()
	g, err := NewGocron(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Shutdown() })
	return g
}

func TestAfterRunsOnce(t *testing.T) {
	g := newTestScheduler(t)
	fired := make(chan struct{}, 2)
	_, err := g.After(20*time.Millisecond, func() { fired <- struct{}{} })
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("one-time job did not fire")
	}
	select {
	case <-fired:
		t.Fatalf("one-time job fired twice")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAfterCancelled(t *testing.T) {
	g := newTestScheduler(t)
	var n atomic.Int32
	cancel, err := g.After(100*time.Millisecond, func() { n.Add(1) })
	require.NoError(t, err)
	cancel()
	cancel()
	time.Sleep(250 * time.Millisecond)
	require.Zero(t, n.Load())
}

func TestEveryTicksUntilCancelled(t *testing.T) {
	g := newTestScheduler(t)
	var n atomic.Int32
	cancel, err := g.Every(20*time.Millisecond, func() { n.Add(1) })
	require.NoError(t, err)

	require.Eventually(t, func() bool { return n.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)
	stopped := n.Load()
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, stopped, n.Load())
}
