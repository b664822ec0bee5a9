package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/internal/testutil"
	"github.com/hupe1980/chatmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gateModel blocks streaming generations until release is closed and tracks
// how many run at once.
type gateModel struct {
	release chan struct{}
	started chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
}

func newGateModel() *gateModel {
	return &gateModel{release: make(chan struct{}), started: make(chan struct{}, 64)}
}

func (g *gateModel) Generate(ctx context.Context, req model.Request) (<-chan model.Delta, <-chan error) {
	out := make(chan model.Delta, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		if !req.Stream {
			out <- model.Delta{Content: "title", IsFull: true}
			return
		}

		n := g.active.Add(1)
		for {
			p := g.peak.Load()
			if n <= p || g.peak.CompareAndSwap(p, n) {
				break
			}
		}
		g.started <- struct{}{}

		select {
		case <-ctx.Done():
			g.active.Add(-1)
			errs <- ctx.Err()
			return
		case <-g.release:
		}
		g.active.Add(-1)
		out <- model.Delta{Content: "done"}
	}()
	return out, errs
}

func (g *gateModel) Info() model.Info { return model.Info{Name: "gate", Provider: "test"} }

func TestThrottle_BoundsConcurrentGeneration(t *testing.T) {
	gate := newGateModel()
	throttle := core.NewThrottle(2)
	e := newEngine(gate, WithThrottle(throttle))

	const turns = 5
	var wg sync.WaitGroup
	results := make([][]core.StreamEvent, turns)
	for i := 0; i < turns; i++ {
		_, ch, err := e.Invoke(context.Background(), Request{Query: "q"})
		require.NoError(t, err)
		wg.Add(1)
		go func(i int, ch <-chan core.StreamEvent) {
			defer wg.Done()
			results[i] = testutil.Collect(t, ch, waitFor)
		}(i, ch)
	}

	require.Eventually(t, func() bool { return throttle.Active() == 2 }, waitFor, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), gate.active.Load(), "waiting turns are not admitted")

	close(gate.release)
	wg.Wait()

	assert.LessOrEqual(t, gate.peak.Load(), int32(2))
	assert.Equal(t, 0, throttle.Active())
	for _, events := range results {
		assert.Contains(t, testutil.Statuses(events), core.StatusFinished)
	}
}

func TestInvoke_CancellationStopsStream(t *testing.T) {
	gate := newGateModel()
	e := newEngine(gate)

	ctx, cancel := context.WithCancel(context.Background())
	_, ch, err := e.Invoke(ctx, Request{Query: "q"})
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, core.StatusGenerating, first.Status)
	<-gate.started

	cancel()

	rest := testutil.Collect(t, ch, waitFor)
	assert.Empty(t, rest, "no events after cancellation")
	assert.Equal(t, 0, e.Throttle().Active())
	assert.Equal(t, 0, e.ActiveInvocations())
}

func TestInvoke_CancelledWhileQueued(t *testing.T) {
	gate := newGateModel()
	throttle := core.NewThrottle(1)
	e := newEngine(gate, WithThrottle(throttle))

	_, busy, err := e.Invoke(context.Background(), Request{Query: "first"})
	require.NoError(t, err)
	<-gate.started

	ctx, cancel := context.WithCancel(context.Background())
	_, queued, err := e.Invoke(ctx, Request{Query: "second"})
	require.NoError(t, err)
	assert.Equal(t, core.StatusGenerating, (<-queued).Status)

	cancel()
	assert.Empty(t, testutil.Collect(t, queued, waitFor))

	close(gate.release)
	events := testutil.Collect(t, busy, waitFor)
	assert.Contains(t, testutil.Statuses(events), core.StatusFinished)
	assert.Equal(t, 0, throttle.Active())
}

func TestStop(t *testing.T) {
	gate := newGateModel()
	e := newEngine(gate)

	id, ch, err := e.Invoke(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	<-gate.started

	require.NoError(t, e.Stop(id))

	events := testutil.Collect(t, ch, waitFor)
	for _, ev := range events {
		assert.NotEqual(t, core.StatusFinished, ev.Status)
	}
	assert.Error(t, e.Stop(id), "stopped invocations are forgotten")
	assert.Error(t, e.Stop("unknown"))
}
