package main

import (
	"fmt"

	"github.com/dls-controls/tickit/component"
	"github.com/dls-controls/tickit/config"
	"github.com/dls-controls/tickit/devices"
	"github.com/dls-controls/tickit/sim"
)

// buildDevice constructs the illustrative device named by cfg.Kind. Real
// deployments are expected to link their own device library and registry;
// this one covers only the illustrative devices package.
func buildDevice(cfg config.ComponentConfig) (component.Device, error) {
	switch cfg.Kind {
	case "source":
		return &devices.Source{Value: cfg.Initial["value"]}, nil
	case "sink":
		return &devices.Sink{}, nil
	case "timer":
		period, _ := cfg.Initial["period"].(int)
		return &devices.Timer{Period: sim.SimTime(period)}, nil
	case "passthrough":
		return devices.Passthrough{}, nil
	default:
		return nil, fmt.Errorf("unknown device kind %q for component %q", cfg.Kind, cfg.ID)
	}
}

// exposeRenamer wraps a Handler backed by a nested simulation, renaming the
// ports named in rename from the names the nested wiring's ExposeComponent
// uses internally to the names cfg.Expose says this component exposes to
// whatever wiring it is itself wired into. Ports not named in rename pass
// through unchanged.
type exposeRenamer struct {
	handler component.Handler
	rename  map[string]string
}

func (e *exposeRenamer) OnTick(time sim.SimTime, changes sim.Changes) (sim.Changes, *sim.SimTime, error) {
	out, callAt, err := e.handler.OnTick(time, changes)
	if err != nil || len(e.rename) == 0 {
		return out, callAt, err
	}

	renamed := make(sim.Changes, len(out))
	for port, value := range out {
		if to, ok := e.rename[string(port)]; ok {
			renamed[sim.PortID(to)] = value
			continue
		}

		renamed[port] = value
	}

	return renamed, callAt, nil
}

var _ component.Handler = (*exposeRenamer)(nil)
