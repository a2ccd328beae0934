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

// ExternalComponent is the reserved component ID a Slave's wiring uses as
// the producer of boundary inputs: whatever a nested simulation's Wiring
// wires ExternalComponent's ports to is what receives changes passed into
// Slave.OnTick.
const ExternalComponent sim.ComponentID = "external"

// ExposeComponent is the reserved component ID a Slave's wiring uses as the
// consumer of boundary outputs: whatever is wired to feed ExposeComponent's
// ports becomes the Changes Slave.OnTick returns to its embedder.
const ExposeComponent sim.ComponentID = "expose"

// Slave embeds an entire sub-simulation so it can be driven as a single
// component from a parent scheduler's point of view. It synthesizes the
// ExternalComponent/ExposeComponent boundary components described by
// add_exposing_wiring/InverseWiring in the original implementation, tracks
// a set of components that raised an Interrupt since the last tick, and
// reports the minimum of its internal components' next wakeup as the
// CallAt its own OnTick result requests.
type Slave struct {
	*sim.HookableBase

	router *wiring.Router
	bus    transport.Bus
	ticker *kernel.Ticker
	wakes  *kernel.WakeQueue

	mu              sync.Mutex
	time            sim.SimTime
	interrupts      map[sim.ComponentID]struct{}
	pendingExternal sim.Changes
	exposed         sim.Changes
	fatalErr        error
}

// NewSlave builds a Slave driving the nested simulation described by w over
// an internal bus. w is expected to wire ExternalComponent and
// ExposeComponent as the boundary producer/consumer.
func NewSlave(w *wiring.Wiring, bus transport.Bus) (*Slave, error) {
	router, err := wiring.NewRouter(w)
	if err != nil {
		return nil, err
	}

	s := &Slave{
		HookableBase: sim.NewHookableBase(),
		router:       router,
		bus:          bus,
		wakes:        kernel.NewWakeQueue(),
		interrupts:   map[sim.ComponentID]struct{}{},
	}

	s.ticker = kernel.NewTicker(router, s.updateComponent)

	for component := range router.Components() {
		if component == ExternalComponent || component == ExposeComponent {
			continue
		}

		topic := transport.OutputTopic(component)
		if err := bus.Subscribe([]transport.Topic{topic}, s.handleMessage); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// SetTimeout bounds how long Slave waits for an internal component to
// reply to an Input before failing with sim.ComponentTimeout. Zero (the
// default) disables the deadline.
func (s *Slave) SetTimeout(d time.Duration) {
	s.ticker.SetTimeout(d)
}

// RaiseInterrupt schedules component for immediate update on the next
// OnTick call, bypassing the normal wakeup mechanism, mirroring
// SlaveScheduler.raise_interrupt.
func (s *Slave) RaiseInterrupt(component sim.ComponentID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interrupts[component] = struct{}{}
}

func (s *Slave) updateComponent(ctx context.Context, in sim.Input) error {
	switch in.Target {
	case ExternalComponent:
		s.mu.Lock()
		changes := s.pendingExternal
		s.mu.Unlock()

		return s.ticker.Propagate(ctx, sim.Output{
			Source: ExternalComponent, Time: in.Time, Changes: changes,
		})
	case ExposeComponent:
		s.mu.Lock()
		s.exposed = in.Changes.Clone()
		s.mu.Unlock()

		return s.ticker.Propagate(ctx, sim.Output{Source: ExposeComponent, Time: in.Time})
	default:
		if err := s.bus.Publish(transport.InputTopic(in.Target), in); err != nil {
			return sim.NewTransportError(err)
		}

		return nil
	}
}

func (s *Slave) handleMessage(msg sim.Message) {
	switch v := msg.(type) {
	case sim.Output:
		if err := s.ticker.Propagate(context.Background(), v); err != nil {
			s.fail(err)
			return
		}

		if v.CallAt != nil {
			s.addWakeup(v.Source, *v.CallAt)
		}
	case sim.Interrupt:
		s.RaiseInterrupt(v.Source)
	case sim.ComponentException:
		s.fail(sim.NewComponentError(v.Source, v.Err))
	}
}

// addWakeup schedules component for wakeup at when, applying the same
// reject-past-wakeup policy as scheduler.Master.addWakeup.
func (s *Slave) addWakeup(component sim.ComponentID, when sim.SimTime) {
	s.mu.Lock()
	now := s.time
	s.mu.Unlock()

	if when < now {
		s.fail(sim.NewConfigError(fmt.Errorf(
			"component %s requested a wakeup at %d, before current time %d",
			component, when, now)))

		return
	}

	s.wakes.Schedule(component, when)
	s.InvokeHook(sim.HookCtx{Domain: s, Pos: sim.HookPosWakeScheduled, Item: component, Detail: when})
}

func (s *Slave) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fatalErr == nil {
		s.fatalErr = err
	}
}

// OnTick drives one step of the nested simulation at time, feeding changes
// in through ExternalComponent and returning whatever changes have reached
// ExposeComponent since the previous call. The returned CallAt, when
// non-nil, is the earliest time any internal component still wants to be
// woken at, so the parent scheduler can treat this Slave like any other
// component with a pending wakeup.
func (s *Slave) OnTick(time sim.SimTime, changes sim.Changes) (sim.Changes, *sim.SimTime, error) {
	s.mu.Lock()
	s.time = time
	s.pendingExternal = changes
	s.exposed = sim.Changes{}

	root := map[sim.ComponentID]struct{}{}
	for c := range s.interrupts {
		root[c] = struct{}{}
	}
	s.interrupts = map[sim.ComponentID]struct{}{}

	for {
		next, ok := s.wakes.NextTime()
		if !ok || next > time {
			break
		}

		due, _, _ := s.wakes.PopDue()
		for _, c := range due {
			root[c] = struct{}{}
		}
	}

	if len(changes) > 0 {
		root[ExternalComponent] = struct{}{}
	}
	s.mu.Unlock()

	if len(root) == 0 {
		return sim.Changes{}, nil, nil
	}

	if err := s.ticker.Tick(context.Background(), time, root); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	exposed := s.exposed
	fatalErr := s.fatalErr
	s.mu.Unlock()

	if fatalErr != nil {
		return nil, nil, fatalErr
	}

	callAt, ok := s.wakes.NextTime()
	if !ok {
		return exposed, nil, nil
	}

	return exposed, &callAt, nil
}
