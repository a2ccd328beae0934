// Package devices is a small illustrative library of devices exercising
// the scenarios named in the kernel specification: a pure timer, a
// configured-value source, a passthrough, and a sink that records whatever
// it last received.
package devices

import (
	"sync"

	"github.com/dls-controls/tickit/component"
	"github.com/dls-controls/tickit/sim"
)

// Timer is a device with no inputs and no outputs that asks to be woken
// again every Period nanoseconds, starting from the first time it is
// updated. It exists purely to exercise a component driven only by its own
// requested wakeups, per Scenario A.
type Timer struct {
	Period sim.SimTime

	mu    sync.Mutex
	ticks []sim.SimTime
}

// Update records the time it was called at and requests another wakeup
// Period later.
func (t *Timer) Update(time sim.SimTime, _ sim.Changes) component.DeviceUpdate {
	t.mu.Lock()
	t.ticks = append(t.ticks, time)
	t.mu.Unlock()

	callAt := time + t.Period
	return component.DeviceUpdate{Outputs: sim.Changes{}, CallAt: &callAt}
}

// Ticks returns every simulated time Update has been called at, in order.
func (t *Timer) Ticks() []sim.SimTime {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]sim.SimTime, len(t.ticks))
	copy(out, t.ticks)

	return out
}
