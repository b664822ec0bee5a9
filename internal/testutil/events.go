package testutil

import (
	"testing"
	"time"

	"github.com/hupe1980/chatmesh/core"
)

// Collect drains an event stream, failing the test when it does not close
// within timeout.
func Collect(t testing.TB, ch <-chan core.StreamEvent, timeout time.Duration) []core.StreamEvent {
	t.Helper()
	var events []core.StreamEvent
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("event stream did not close within %s (got %d events)", timeout, len(events))
			return events
		}
	}
}

// Statuses lists the status of every event in order.
func Statuses(events []core.StreamEvent) []core.Status {
	out := make([]core.Status, len(events))
	for i, ev := range events {
		out[i] = ev.Status
	}
	return out
}

// Filter returns the events with the given status.
func Filter(events []core.StreamEvent, status core.Status) []core.StreamEvent {
	var out []core.StreamEvent
	for _, ev := range events {
		if ev.Status == status {
			out = append(out, ev)
		}
	}
	return out
}

// Find returns the first event with the given status.
func Find(events []core.StreamEvent, status core.Status) (core.StreamEvent, bool) {
	for _, ev := range events {
		if ev.Status == status {
			return ev, true
		}
	}
	return core.StreamEvent{}, false
}
