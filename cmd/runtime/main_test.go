package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/contenox/modelrouter/benchservice"
	"github.com/contenox/modelrouter/libroutine"
	"github.com/contenox/modelrouter/runtimetypes"
	"github.com/contenox/modelrouter/serverapi"
	"github.com/stretchr/testify/require"
)

type sweepCounter struct {
	benchservice.Service
	calls atomic.Int32
}

func (s *sweepCounter) Sweep(ctx context.Context, tasks []string, sizes []string) ([]*runtimetypes.TestResult, error) {
	s.calls.Add(1)
	return nil, nil
}

func TestUnit_SweepLoop_RunsPeriodically(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	counter := &sweepCounter{}
	startSweepLoop(ctx, &serverapi.Config{SweepInterval: "10ms"}, counter)
	require.True(t, libroutine.GetGroup().IsLoopActive("bench-sweep"))

	require.Eventually(t, func() bool {
		return counter.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		return !libroutine.GetGroup().IsLoopActive("bench-sweep")
	}, 2*time.Second, 5*time.Millisecond)
}

func TestUnit_SweepLoop_DisabledWithoutInterval(t *testing.T) {
	counter := &sweepCounter{}
	startSweepLoop(context.Background(), &serverapi.Config{}, counter)
	require.False(t, libroutine.GetGroup().IsLoopActive("bench-sweep"))

	startSweepLoop(context.Background(), &serverapi.Config{SweepInterval: "bogus"}, counter)
	require.False(t, libroutine.GetGroup().IsLoopActive("bench-sweep"))
	require.Zero(t, counter.calls.Load())
}
