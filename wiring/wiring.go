// Package wiring holds the static producer/consumer graph of a simulation
// and the Router that derives fan-out, dependency, and topological-order
// information from it at construction time.
package wiring

import "github.com/dls-controls/tickit/sim"

// Endpoint names one port of one component.
type Endpoint struct {
	Component sim.ComponentID
	Port      sim.PortID
}

// Wiring is the static, immutable description of which output ports feed
// which input ports. It never changes for the lifetime of a simulation.
type Wiring struct {
	// edges maps a producing Endpoint to the set of consuming Endpoints
	// that receive its value whenever it changes.
	edges map[Endpoint][]Endpoint

	// standalone holds components declared with no wire at all, so a
	// component wired to nothing (e.g. a Timer driven only by its own
	// requested wakeups) still appears in Components and gets ticked.
	standalone map[sim.ComponentID]struct{}
}

// New builds a Wiring from a set of producer->consumers edges, plus any
// components that should be part of the simulation despite having no wire
// at all. Each edges key is a source Endpoint; each value is the list of
// destination Endpoints wired to receive that source's changes.
func New(edges map[Endpoint][]Endpoint, standalone ...sim.ComponentID) *Wiring {
	w := &Wiring{
		edges:      make(map[Endpoint][]Endpoint, len(edges)),
		standalone: make(map[sim.ComponentID]struct{}, len(standalone)),
	}

	for src, dsts := range edges {
		cp := make([]Endpoint, len(dsts))
		copy(cp, dsts)
		w.edges[src] = cp
	}

	for _, c := range standalone {
		w.standalone[c] = struct{}{}
	}

	return w
}

// Consumers returns the Endpoints wired to receive changes from src.
func (w *Wiring) Consumers(src Endpoint) []Endpoint {
	return w.edges[src]
}

// Components returns the set of every component mentioned anywhere in the
// wiring, either as a producer, a consumer, or declared standalone.
func (w *Wiring) Components() map[sim.ComponentID]struct{} {
	out := make(map[sim.ComponentID]struct{})
	for src, dsts := range w.edges {
		out[src.Component] = struct{}{}
		for _, d := range dsts {
			out[d.Component] = struct{}{}
		}
	}

	for c := range w.standalone {
		out[c] = struct{}{}
	}

	return out
}

// Edges returns every (source, destination) pair in the wiring.
func (w *Wiring) Edges() map[Endpoint][]Endpoint {
	return w.edges
}
