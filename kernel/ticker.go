package kernel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dls-controls/tickit/sim"
	"github.com/dls-controls/tickit/wiring"
)

// UpdateComponent is called by the Ticker to request that a component
// perform an update; the call is expected to eventually result in a
// corresponding call to Ticker.Propagate with that component's Output.
// Grounded on the original scheduler's update_component callback threaded
// through Ticker.__init__.
type UpdateComponent func(ctx context.Context, in sim.Input) error

// Ticker sequences the update of components during a single tick, eagerly
// updating each component whose upstream dependencies have already been
// resolved within the tick. One Ticker is constructed per scheduler and
// reused across every tick that scheduler drives.
type Ticker struct {
	*sim.HookableBase

	router *wiring.Router
	update UpdateComponent

	mu   sync.Mutex
	time sim.SimTime

	// toUpdate maps a component awaiting update to whether it has already
	// been asked (true) or is still pending resolution (false). A nil
	// state would let a Go map lose the "not yet scheduled" signal the
	// Python implementation gets for free from `None` values, so a bool is
	// used instead.
	toUpdate map[sim.ComponentID]bool
	inputs   []sim.Input

	// timeout bounds how long a dispatched component is given to reply
	// with its Output before the tick fails with sim.ComponentTimeout.
	// Zero disables the deadline.
	timeout time.Duration
	timers  map[sim.ComponentID]*time.Timer

	done chan struct{}
	err  error
}

// NewTicker creates a Ticker that routes changes according to router and
// calls update whenever a component's dependencies are resolved.
func NewTicker(router *wiring.Router, update UpdateComponent) *Ticker {
	return &Ticker{
		HookableBase: sim.NewHookableBase(),
		router:       router,
		update:       update,
	}
}

// Components returns every component named in the ticker's wiring.
func (t *Ticker) Components() map[sim.ComponentID]struct{} {
	return t.router.Components()
}

// SetTimeout bounds how long the Ticker waits for a dispatched component to
// reply with its Output before failing the tick with sim.ComponentTimeout.
// d <= 0 disables the deadline, which is the default.
func (t *Ticker) SetTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.timeout = d
}

// Tick performs one tick at time, starting by requesting an update from
// every component reachable from updateComponents. It blocks until every
// component scheduled in this tick has replied with an Output.
func (t *Ticker) Tick(ctx context.Context, time sim.SimTime, updateComponents map[sim.ComponentID]struct{}) error {
	t.startTick(time, updateComponents)

	t.InvokeHook(sim.HookCtx{Domain: t, Pos: sim.HookPosBeforeTick, Item: time})
	defer t.InvokeHook(sim.HookCtx{Domain: t, Pos: sim.HookPosAfterTick, Item: time})

	if err := t.schedulePossibleUpdates(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	empty := len(t.toUpdate) == 0
	t.mu.Unlock()

	if empty {
		t.finish(nil)
	}

	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Ticker) startTick(tickTime sim.SimTime, updateComponents map[sim.ComponentID]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.time = tickTime
	t.inputs = nil
	t.done = make(chan struct{})
	t.err = nil
	t.toUpdate = map[sim.ComponentID]bool{}
	t.timers = map[sim.ComponentID]*time.Timer{}

	for component := range updateComponents {
		for dependant := range t.router.Dependants(component) {
			t.toUpdate[dependant] = false
		}
	}
}

// schedulePossibleUpdates requests an update from every component whose
// upstream dependencies no longer intersect the set of components still
// awaiting resolution this tick, mirroring schedule_possible_updates in the
// original implementation exactly.
func (t *Ticker) schedulePossibleUpdates(ctx context.Context) error {
	t.mu.Lock()

	var toStart []sim.ComponentID

	for component, started := range t.toUpdate {
		if started {
			continue
		}

		blocked := false

		for upstream := range t.router.InverseDependants(component) {
			if upstream == component {
				continue
			}

			if _, stillPending := t.toUpdate[upstream]; stillPending {
				blocked = true
				break
			}
		}

		if !blocked {
			toStart = append(toStart, component)
			t.toUpdate[component] = true
		}
	}

	collated := t.collateInputs()

	t.mu.Unlock()

	for _, component := range toStart {
		in := sim.Input{Target: component, Time: t.time, Changes: collated[component]}

		t.InvokeHook(sim.HookCtx{Domain: t, Pos: sim.HookPosInputSent, Item: in})

		if err := t.update(ctx, in); err != nil {
			t.fail(err)
			return err
		}

		t.armTimeout(component)
	}

	return nil
}

// armTimeout starts the per-component reply deadline for component, if a
// timeout is configured. The callback checks the tick's done channel by
// identity so a timer left over from a tick that already finished (by
// succeeding or by failing some other way) never misattributes a timeout to
// a later tick that happens to reuse the same component name.
func (t *Ticker) armTimeout(component sim.ComponentID) {
	t.mu.Lock()
	timeout := t.timeout
	generation := t.done
	t.mu.Unlock()

	if timeout <= 0 {
		return
	}

	timer := time.AfterFunc(timeout, func() {
		t.componentTimedOut(component, generation)
	})

	t.mu.Lock()
	t.timers[component] = timer
	t.mu.Unlock()
}

func (t *Ticker) componentTimedOut(component sim.ComponentID, generation chan struct{}) {
	t.mu.Lock()

	if t.done != generation {
		t.mu.Unlock()
		return
	}

	started, known := t.toUpdate[component]
	if !known || !started {
		t.mu.Unlock()
		return
	}

	delete(t.toUpdate, component)
	t.mu.Unlock()

	t.fail(sim.NewComponentTimeout(component))
}

// cancelTimeout stops and forgets component's reply deadline once it has
// replied, so a slow-but-within-budget reply never races a stale timer.
func (t *Ticker) cancelTimeout(component sim.ComponentID) {
	if timer, ok := t.timers[component]; ok {
		timer.Stop()
		delete(t.timers, component)
	}
}

// collateInputs merges, per target component, every change queued for
// delivery at the current tick time, mirroring Ticker.collate_inputs.
func (t *Ticker) collateInputs() map[sim.ComponentID]sim.Changes {
	collated := map[sim.ComponentID]sim.Changes{}

	for _, in := range t.inputs {
		if in.Time != t.time {
			continue
		}

		changes, ok := collated[in.Target]
		if !ok {
			changes = sim.Changes{}
			collated[in.Target] = changes
		}

		for port, value := range in.Changes {
			changes[port] = value
		}
	}

	return collated
}

// Propagate is called once a component replies to an update with its
// Output. It removes the component from the set awaiting resolution, routes
// its changes to downstream components, and schedules any further updates
// those changes unblock. Once every component has replied, Tick returns.
func (t *Ticker) Propagate(ctx context.Context, out sim.Output) error {
	t.InvokeHook(sim.HookCtx{Domain: t, Pos: sim.HookPosOutputReceived, Item: out})

	t.mu.Lock()

	if out.Time != t.time {
		t.mu.Unlock()
		return sim.NewOrderingError(fmt.Errorf(
			"component %s reported output for time %d during tick at time %d",
			out.Source, out.Time, t.time))
	}

	started, known := t.toUpdate[out.Source]
	if !known || !started {
		t.mu.Unlock()
		return sim.NewOrderingError(fmt.Errorf(
			"component %s produced an output it was not asked for this tick", out.Source))
	}

	delete(t.toUpdate, out.Source)
	t.cancelTimeout(out.Source)
	t.inputs = append(t.inputs, t.router.Route(out)...)

	t.mu.Unlock()

	if err := t.schedulePossibleUpdates(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	empty := len(t.toUpdate) == 0
	t.mu.Unlock()

	if empty {
		t.finish(nil)
	}

	return nil
}

func (t *Ticker) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.done:
		return
	default:
	}

	t.err = err
	close(t.done)
}

func (t *Ticker) fail(err error) {
	t.finish(err)
}
