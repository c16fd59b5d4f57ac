package roomrelease

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-roomrelease/pkg/config"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	ctrl := NewController("lab", newFakePort(), Settings{}, newManualClock(t0), nil, testLogger())
	return NewRunner(ctrl, testLogger())
}

func TestRunner_PreservesOrder(t *testing.T) {
	r := newTestRunner(t)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		r.Submit(func(ctx context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	assert.Equal(t, 100, r.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	require.Eventually(t, func() bool { return r.Pending() == 0 }, time.Second, time.Millisecond)
	cancel()
	<-r.Done()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestRunner_RecoversFromPanic(t *testing.T) {
	r := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	done := make(chan struct{})
	r.Submit(func(ctx context.Context) { panic("boom") })
	r.Submit(func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner stopped after panic")
	}
}

func TestRunner_DropsWorkAfterShutdown(t *testing.T) {
	r := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	cancel()
	<-r.Done()

	ran := false
	r.Submit(func(ctx context.Context) { ran = true })
	assert.Equal(t, 0, r.Pending())
	assert.False(t, ran)
}

func TestRunner_RoutesControllerTimers(t *testing.T) {
	clock := newManualClock(t0)
	port := newFakePort()
	ctrl := NewController("lab", port, SettingsFromConfig(config.NewConfig()), clock, nil, testLogger())
	r := NewRunner(ctrl, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	started := make(chan struct{})
	r.Submit(func(ctx context.Context) {
		ctrl.OnBookingStarted(ctx, "booking-1")
		close(started)
	})
	<-started

	// the periodic tick is queued on the runner, not run by the clock
	clock.Advance(2 * time.Minute)

	require.Eventually(t, func() bool {
		port.mu.Lock()
		defer port.mu.Unlock()
		return port.statusCalls == 2*len(allSignals)
	}, time.Second, time.Millisecond)
}
