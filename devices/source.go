package devices

import (
	"github.com/dls-controls/tickit/component"
	"github.com/dls-controls/tickit/sim"
)

// Source is a device which produces a pre-configured value on its "value"
// output port, grounded on the original implementation's Source device. It
// ignores whatever inputs it is given.
type Source struct {
	Value sim.Value
}

// Update always reports the configured value and never requests a wakeup.
func (s *Source) Update(_ sim.SimTime, _ sim.Changes) component.DeviceUpdate {
	return component.DeviceUpdate{Outputs: sim.Changes{"value": s.Value}}
}

// Set changes the value Source produces from the next Update onward. It is
// safe to call only between ticks; Source does not synchronize access to
// Value itself, matching the teacher convention that device state belongs
// to the component goroutine that owns it.
func (s *Source) Set(value sim.Value) {
	s.Value = value
}

// ScheduledSource is a Source that also requests a wakeup at a configured
// time, used to drive Scenario B's "emits v=1 at time 0, v=2 at time 5"
// behaviour without an external driver.
type ScheduledSource struct {
	Source

	// Changes maps a simulated time to the value Source should hold from
	// that time onward. Update applies the entries in ascending time order.
	Changes map[sim.SimTime]sim.Value

	next int
	keys []sim.SimTime
}

func (s *ScheduledSource) Update(time sim.SimTime, inputs sim.Changes) component.DeviceUpdate {
	if s.keys == nil {
		s.keys = sortedTimes(s.Changes)
	}

	for s.next < len(s.keys) && s.keys[s.next] <= time {
		s.Source.Value = s.Changes[s.keys[s.next]]
		s.next++
	}

	update := s.Source.Update(time, inputs)

	if s.next < len(s.keys) {
		callAt := s.keys[s.next]
		update.CallAt = &callAt
	}

	return update
}

func sortedTimes(m map[sim.SimTime]sim.Value) []sim.SimTime {
	out := make([]sim.SimTime, 0, len(m))
	for t := range m {
		out = append(out, t)
	}

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}

	return out
}
