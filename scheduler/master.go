// Package scheduler implements the Master and Slave schedulers: the
// objects that own simulated time and a wake queue and drive the kernel's
// Ticker tick by tick.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dls-controls/tickit/kernel"
	"github.com/dls-controls/tickit/sim"
	"github.com/dls-controls/tickit/transport"
	"github.com/dls-controls/tickit/wiring"
)

// Master owns simulated time and the wake queue for a top-level simulation.
// It never calls a component directly: it publishes Input messages to the
// component's input topic and reacts to Output, Interrupt, and
// ComponentException messages published to the bus by each component's own
// run loop (see component.Runner), mirroring the original scheduler's
// message-passing design from base.py/master.py exactly.
type Master struct {
	*sim.HookableBase

	router *wiring.Router
	bus    transport.Bus
	ticker *kernel.Ticker
	wakes  *kernel.WakeQueue

	mu       sync.Mutex
	time     sim.SimTime
	fatalErr error
	stopped  chan struct{}
}

// NewMaster builds a Master that drives the components named in w over bus.
func NewMaster(w *wiring.Wiring, bus transport.Bus) (*Master, error) {
	router, err := wiring.NewRouter(w)
	if err != nil {
		return nil, err
	}

	m := &Master{
		HookableBase: sim.NewHookableBase(),
		router:       router,
		bus:          bus,
		wakes:        kernel.NewWakeQueue(),
		stopped:      make(chan struct{}),
	}

	m.ticker = kernel.NewTicker(router, m.updateComponent)

	return m, nil
}

// SetTimeout bounds how long Master waits for a component to reply to an
// Input before failing the run with sim.ComponentTimeout. Zero (the
// default) disables the deadline.
func (m *Master) SetTimeout(d time.Duration) {
	m.ticker.SetTimeout(d)
}

// Setup subscribes to the output topic of every component in the wiring.
// It must be called once, before Run.
func (m *Master) Setup() error {
	for component := range m.router.Components() {
		topic := transport.OutputTopic(component)
		if err := m.bus.Subscribe([]transport.Topic{topic}, m.handleMessage); err != nil {
			return err
		}
	}

	return nil
}

// updateComponent is the Ticker's UpdateComponent callback: it publishes in
// to the target component's input topic and returns immediately, since the
// matching Output arrives asynchronously via handleMessage.
func (m *Master) updateComponent(_ context.Context, in sim.Input) error {
	if err := m.bus.Publish(transport.InputTopic(in.Target), in); err != nil {
		return sim.NewTransportError(err)
	}

	return nil
}

// handleMessage is the bus subscription callback: it dispatches Output,
// Interrupt, and ComponentException messages exactly as
// BaseScheduler.handle_message does.
func (m *Master) handleMessage(msg sim.Message) {
	switch v := msg.(type) {
	case sim.Output:
		if err := m.ticker.Propagate(context.Background(), v); err != nil {
			m.fail(err)
			return
		}

		if v.CallAt != nil {
			m.addWakeup(v.Source, *v.CallAt)
		}
	case sim.Interrupt:
		m.addWakeup(v.Source, m.currentTime())
	case sim.ComponentException:
		m.handleComponentException(v)
	}
}

// addWakeup schedules component for wakeup at when, rejecting a when that
// does not advance on or past the current simulation time: the open
// question from the kernel specification is resolved as a hard
// *sim.ConfigError rather than silently clamping when to now.
func (m *Master) addWakeup(component sim.ComponentID, when sim.SimTime) {
	now := m.currentTime()

	if when < now {
		m.fail(sim.NewConfigError(fmt.Errorf(
			"component %s requested a wakeup at %d, before current time %d",
			component, when, now)))

		return
	}

	m.wakes.Schedule(component, when)
	m.InvokeHook(sim.HookCtx{Domain: m, Pos: sim.HookPosWakeScheduled, Item: component, Detail: when})
}

func (m *Master) handleComponentException(exc sim.ComponentException) {
	for component := range m.router.Components() {
		_ = m.bus.Publish(transport.InputTopic(component), sim.StopComponent{})
	}

	m.fail(sim.NewComponentError(exc.Source, exc.Err))
}

func (m *Master) currentTime() sim.SimTime {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.time
}

// CurrentTime returns the simulated time of the tick Run is currently
// executing, or most recently completed. It is safe to call concurrently
// with Run, for use by the monitor package's status endpoint.
func (m *Master) CurrentTime() sim.SimTime {
	return m.currentTime()
}

// Components returns every component name in the simulation Master drives.
func (m *Master) Components() []sim.ComponentID {
	out := make([]sim.ComponentID, 0, len(m.router.Components()))
	for c := range m.router.Components() {
		out = append(out, c)
	}

	return out
}

func (m *Master) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fatalErr != nil {
		return
	}

	m.fatalErr = err

	select {
	case <-m.stopped:
	default:
		close(m.stopped)
	}
}

// Run drives the simulation: an initial tick of every component at time
// zero, then a loop popping the earliest due wakeups and ticking at that
// time, until the wake queue is empty or a fatal error occurs.
func (m *Master) Run(ctx context.Context) error {
	if err := m.runTick(ctx, 0, allComponents(m.router)); err != nil {
		return err
	}

	for {
		select {
		case <-m.stopped:
			return m.fatalErr
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		due, at, ok := m.wakes.PopDue()
		if !ok {
			return nil
		}

		components := make(map[sim.ComponentID]struct{}, len(due))
		for _, c := range due {
			components[c] = struct{}{}
		}

		if err := m.runTick(ctx, at, components); err != nil {
			return err
		}
	}
}

func (m *Master) runTick(ctx context.Context, at sim.SimTime, components map[sim.ComponentID]struct{}) error {
	m.mu.Lock()
	m.time = at
	m.mu.Unlock()

	// A fatal error raised by handleMessage (a ComponentException or a failed
	// Propagate) leaves the tick without a reply, so stopping cancels the tick.
	tickCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-m.stopped:
		case <-tickCtx.Done():
		}
		cancel()
	}()

	if err := m.ticker.Tick(tickCtx, at, components); err != nil {
		m.fail(err)
	}

	m.mu.Lock()
	err := m.fatalErr
	m.mu.Unlock()

	return err
}

func allComponents(router *wiring.Router) map[sim.ComponentID]struct{} {
	out := make(map[sim.ComponentID]struct{})
	for c := range router.Components() {
		out[c] = struct{}{}
	}

	return out
}
