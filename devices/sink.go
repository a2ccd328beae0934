package devices

import (
	"github.com/dls-controls/tickit/component"
	"github.com/dls-controls/tickit/sim"
)

// Sink records the last value received on each of its input ports and
// never produces an output. It is used by the example wirings to observe
// what a producer delivered without needing to inspect the bus directly.
type Sink struct {
	last sim.Changes
}

// Update merges inputs into the sink's recorded state and reports no
// outputs.
func (s *Sink) Update(_ sim.SimTime, inputs sim.Changes) component.DeviceUpdate {
	if s.last == nil {
		s.last = sim.Changes{}
	}

	s.last = s.last.Merge(inputs)

	return component.DeviceUpdate{Outputs: sim.Changes{}}
}

// Last returns the value most recently received on port, and whether any
// value has been received on it at all.
func (s *Sink) Last(port sim.PortID) (sim.Value, bool) {
	if s.last == nil {
		return nil, false
	}

	v, ok := s.last[port]
	return v, ok
}

// Passthrough copies every input value it receives straight to the
// identically named output port, unchanged.
type Passthrough struct{}

// Update returns inputs verbatim as outputs.
func (Passthrough) Update(_ sim.SimTime, inputs sim.Changes) component.DeviceUpdate {
	return component.DeviceUpdate{Outputs: inputs.Clone()}
}
