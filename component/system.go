package component

import (
	"github.com/dls-controls/tickit/scheduler"
	"github.com/dls-controls/tickit/transport"
	"github.com/dls-controls/tickit/wiring"
)

// SystemSimulation is a Handler that wraps an entire nested simulation,
// mirroring SystemComponent/SystemSimulation from the original
// implementation: from the outside it looks like any other device, but
// internally it drives a whole wiring graph of its own components through a
// Slave scheduler.
//
// SystemSimulation satisfies Handler purely by embedding *scheduler.Slave:
// Slave.OnTick already has the exact signature Handler requires, so no
// forwarding method is needed here.
type SystemSimulation struct {
	*scheduler.Slave
}

// NewSystemSimulation builds a SystemSimulation driving the nested
// simulation described by w over bus. w must wire scheduler.ExternalComponent
// as the producer of boundary inputs and scheduler.ExposeComponent as the
// consumer of boundary outputs.
func NewSystemSimulation(w *wiring.Wiring, bus transport.Bus) (*SystemSimulation, error) {
	slave, err := scheduler.NewSlave(w, bus)
	if err != nil {
		return nil, err
	}

	return &SystemSimulation{Slave: slave}, nil
}

var _ Handler = (*SystemSimulation)(nil)
var _ Handler = (*DeviceSimulation)(nil)
