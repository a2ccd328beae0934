// Package component defines the runtime contract every simulated component
// implements, and the two closed variants that satisfy it: a device
// simulation wrapping a single user device, and a system simulation
// embedding a nested sub-simulation. The ticker and schedulers never
// type-switch between them; both speak only Handler.
package component

import "github.com/dls-controls/tickit/sim"

// Handler is the single capability interface the kernel drives every
// component through. It replaces dynamic dispatch over a component's
// concrete kind with one narrow interface implemented by every closed
// variant (DeviceSimulation, SystemSimulation).
type Handler interface {
	// OnTick asks the component to process changes at time, returning the
	// changes it produced and, if it wants to be woken again regardless of
	// further input, a requested wakeup time.
	OnTick(time sim.SimTime, changes sim.Changes) (sim.Changes, *sim.SimTime, error)
}
