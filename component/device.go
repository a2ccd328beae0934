package component

import "github.com/dls-controls/tickit/sim"

// Device is the interface a user implements to describe a piece of
// simulated hardware. Update is called at most once per tick: at time zero,
// and in every later tick in which the device or a component upstream of it
// in the wiring is woken, even if none of the device's inputs changed. It
// never blocks and never talks to the kernel directly.
type Device interface {
	Update(time sim.SimTime, inputs sim.Changes) DeviceUpdate
}

// DeviceUpdate is the result of a single Device.Update call: the full set
// of output values the device currently holds (not merely the ones that
// changed — DeviceSimulation computes the diff), and an optional wakeup
// request.
type DeviceUpdate struct {
	Outputs sim.Changes
	CallAt  *sim.SimTime
}

// DeviceSimulation wraps a Device to satisfy Handler. It maintains the
// device's accumulated inputs across ticks and only reports outputs that
// changed since the previous update, exactly as DeviceComponent.on_tick
// does in the original implementation.
type DeviceSimulation struct {
	Name   sim.ComponentID
	Device Device

	inputs      sim.Changes
	lastOutputs sim.Changes
}

// NewDeviceSimulation wraps device as a Handler named name.
func NewDeviceSimulation(name sim.ComponentID, device Device) *DeviceSimulation {
	return &DeviceSimulation{
		Name:        name,
		Device:      device,
		inputs:      sim.Changes{},
		lastOutputs: sim.Changes{},
	}
}

// OnTick merges changes into the device's persistent input state, delegates
// to the wrapped device, and reports only the output ports whose values
// differ from the previous tick's outputs.
func (d *DeviceSimulation) OnTick(time sim.SimTime, changes sim.Changes) (sim.Changes, *sim.SimTime, error) {
	d.inputs = d.inputs.Merge(changes)

	update := d.Device.Update(time, d.inputs)

	out := sim.Changes{}
	for port, value := range update.Outputs {
		previous, seen := d.lastOutputs[port]
		if !seen || !sim.ValueEqual(previous, value) {
			out[port] = value
		}
	}

	d.lastOutputs = update.Outputs.Clone()

	return out, update.CallAt, nil
}
