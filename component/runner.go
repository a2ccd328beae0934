package component

import (
	"context"

	"github.com/dls-controls/tickit/sim"
	"github.com/dls-controls/tickit/transport"
)

// Runner drives a Handler's side of the State Interface contract: it
// subscribes to the component's input topic, calls OnTick for every Input
// it receives until a StopComponent arrives, and publishes the resulting
// Output (or a
// ComponentException, if OnTick fails) to the component's output topic. A
// scheduler never calls a Handler directly; it only ever talks to the
// matching Runner through the bus.
type Runner struct {
	name    sim.ComponentID
	handler Handler
	bus     transport.Bus

	stop chan struct{}
}

// NewRunner builds a Runner for handler, named name, communicating over bus.
func NewRunner(name sim.ComponentID, handler Handler, bus transport.Bus) *Runner {
	return &Runner{
		name:    name,
		handler: handler,
		bus:     bus,
		stop:    make(chan struct{}),
	}
}

// Start subscribes the Runner to its component's input topic. Messages are
// handled synchronously on the bus's delivery goroutine, matching the
// teacher's convention that hook callbacks and bus handlers never block.
func (r *Runner) Start() error {
	return r.bus.Subscribe([]transport.Topic{transport.InputTopic(r.name)}, r.handle)
}

func (r *Runner) handle(msg sim.Message) {
	select {
	case <-r.stop:
		return
	default:
	}

	switch in := msg.(type) {
	case sim.Input:
		r.onTick(in)
	case sim.StopComponent:
		close(r.stop)
	}
}

func (r *Runner) onTick(in sim.Input) {
	outputs, callAt, err := r.handler.OnTick(in.Time, in.Changes)
	if err != nil {
		_ = r.bus.Publish(transport.OutputTopic(r.name), sim.ComponentException{Source: r.name, Err: err})
		return
	}

	_ = r.bus.Publish(transport.OutputTopic(r.name), sim.Output{
		Source:  r.name,
		Time:    in.Time,
		Changes: outputs,
		CallAt:  callAt,
	})
}

// RaiseInterrupt publishes an Interrupt on behalf of this Runner's
// component, for devices that need to wake the simulation outside of a tick
// (e.g. in response to an external event on another goroutine).
func (r *Runner) RaiseInterrupt(ctx context.Context) error {
	return r.bus.Publish(transport.OutputTopic(r.name), sim.Interrupt{Source: r.name})
}
