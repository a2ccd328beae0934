package wiring

import (
	"fmt"
	"sort"

	"github.com/dls-controls/tickit/sim"
)

// Router derives, once at construction time, the information the ticker
// needs each tick: which components directly consume which producer's
// output (fan-out), the full transitive set of components downstream of a
// given component (dependants), the full transitive set of components
// upstream of a given component (inverse dependants), and a single
// topological order consistent with the wiring graph.
//
// A Router is built once per simulation and never mutated afterwards; the
// wiring it describes is static for the run.
type Router struct {
	wiring *Wiring

	componentPorts map[sim.ComponentID][]sim.PortID

	// fanout maps a producing component to the consuming components wired
	// to at least one of its output ports.
	fanout map[sim.ComponentID][]sim.ComponentID

	// dependants[c] is the set of components reachable from c by following
	// wiring edges forward, including c itself.
	dependants map[sim.ComponentID]map[sim.ComponentID]struct{}

	// inverseDependants[c] is the set of components that c depends on,
	// directly or transitively, including c itself.
	inverseDependants map[sim.ComponentID]map[sim.ComponentID]struct{}

	order []sim.ComponentID
}

// NewRouter builds a Router from w, returning a *sim.ConfigError if the
// wiring graph contains a cycle.
func NewRouter(w *Wiring) (*Router, error) {
	r := &Router{
		wiring:            w,
		componentPorts:    map[sim.ComponentID][]sim.PortID{},
		fanout:            map[sim.ComponentID][]sim.ComponentID{},
		dependants:        map[sim.ComponentID]map[sim.ComponentID]struct{}{},
		inverseDependants: map[sim.ComponentID]map[sim.ComponentID]struct{}{},
	}

	componentEdges := map[sim.ComponentID]map[sim.ComponentID]struct{}{}
	reverseEdges := map[sim.ComponentID]map[sim.ComponentID]struct{}{}

	for c := range w.Components() {
		componentEdges[c] = map[sim.ComponentID]struct{}{}
		reverseEdges[c] = map[sim.ComponentID]struct{}{}
	}

	for src, dsts := range w.Edges() {
		r.componentPorts[src.Component] = appendUnique(r.componentPorts[src.Component], src.Port)

		fanoutSet := map[sim.ComponentID]struct{}{}
		for _, existing := range r.fanout[src.Component] {
			fanoutSet[existing] = struct{}{}
		}

		for _, dst := range dsts {
			componentEdges[src.Component][dst.Component] = struct{}{}
			reverseEdges[dst.Component][src.Component] = struct{}{}
			fanoutSet[dst.Component] = struct{}{}
		}

		r.fanout[src.Component] = setToSortedSlice(fanoutSet)
	}

	order, err := topologicalOrder(componentEdges)
	if err != nil {
		return nil, err
	}

	r.order = order

	for c := range componentEdges {
		r.dependants[c] = reachable(c, componentEdges)
		r.inverseDependants[c] = reachable(c, reverseEdges)
	}

	return r, nil
}

// Components returns every component named in the wiring.
func (r *Router) Components() map[sim.ComponentID]struct{} {
	return r.wiring.Components()
}

// Order returns the components in an order consistent with the wiring
// graph: if A produces a value consumed by B, A precedes B.
func (r *Router) Order() []sim.ComponentID {
	return r.order
}

// Fanout returns the components directly wired to consume any output of c.
func (r *Router) Fanout(c sim.ComponentID) []sim.ComponentID {
	return r.fanout[c]
}

// Dependants returns every component reachable from c by following the
// wiring graph forward, including c itself.
func (r *Router) Dependants(c sim.ComponentID) map[sim.ComponentID]struct{} {
	return r.dependants[c]
}

// InverseDependants returns every component c depends on, directly or
// transitively, including c itself.
func (r *Router) InverseDependants(c sim.ComponentID) map[sim.ComponentID]struct{} {
	return r.inverseDependants[c]
}

// Route maps an Output into the set of Inputs it produces at downstream
// components, following the wiring graph port by port.
func (r *Router) Route(out sim.Output) []sim.Input {
	byTarget := map[sim.ComponentID]sim.Changes{}

	for port, value := range out.Changes {
		for _, dst := range r.wiring.Consumers(Endpoint{Component: out.Source, Port: port}) {
			changes, ok := byTarget[dst.Component]
			if !ok {
				changes = sim.Changes{}
				byTarget[dst.Component] = changes
			}

			changes[dst.Port] = value
		}
	}

	inputs := make([]sim.Input, 0, len(byTarget))
	for target, changes := range byTarget {
		inputs = append(inputs, sim.Input{Target: target, Time: out.Time, Changes: changes})
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Target < inputs[j].Target })

	return inputs
}

func appendUnique(ports []sim.PortID, p sim.PortID) []sim.PortID {
	for _, existing := range ports {
		if existing == p {
			return ports
		}
	}

	return append(ports, p)
}

func setToSortedSlice(set map[sim.ComponentID]struct{}) []sim.ComponentID {
	out := make([]sim.ComponentID, 0, len(set))
	for c := range set {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// reachable performs a breadth-first search over edges starting at root,
// returning every node reached including root itself.
func reachable(root sim.ComponentID, edges map[sim.ComponentID]map[sim.ComponentID]struct{}) map[sim.ComponentID]struct{} {
	visited := map[sim.ComponentID]struct{}{root: {}}
	queue := []sim.ComponentID{root}

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		for next := range edges[c] {
			if _, seen := visited[next]; seen {
				continue
			}

			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	return visited
}

// topologicalOrder performs Kahn's algorithm over edges, returning
// *sim.ConfigError if the graph is not a DAG.
func topologicalOrder(edges map[sim.ComponentID]map[sim.ComponentID]struct{}) ([]sim.ComponentID, error) {
	inDegree := map[sim.ComponentID]int{}
	for c := range edges {
		inDegree[c] = 0
	}

	for _, dsts := range edges {
		for dst := range dsts {
			inDegree[dst]++
		}
	}

	var ready []sim.ComponentID
	for c, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, c)
		}
	}

	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	order := make([]sim.ComponentID, 0, len(edges))

	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

		c := ready[0]
		ready = ready[1:]
		order = append(order, c)

		next := setToSortedSlice(edges[c])
		for _, dst := range next {
			inDegree[dst]--
			if inDegree[dst] == 0 {
				ready = append(ready, dst)
			}
		}
	}

	if len(order) != len(edges) {
		remaining := make([]sim.ComponentID, 0)
		for c, degree := range inDegree {
			if degree > 0 {
				remaining = append(remaining, c)
			}
		}

		sort.Slice(remaining, func(i, j int) bool { return remaining[i] < remaining[j] })

		return nil, sim.NewConfigError(fmt.Errorf("wiring contains a cycle involving components %v", remaining))
	}

	return order, nil
}
