// Package config loads the YAML document describing a simulation's
// components, wiring, and transport selection into the types the scheduler
// and component packages consume, per the configuration surface named in
// the kernel specification.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dls-controls/tickit/scheduler"
	"github.com/dls-controls/tickit/sim"
	"github.com/dls-controls/tickit/wiring"
)

// ComponentConfig declares one component: its kind (a key into the caller's
// device registry), its initial input values, and, for a component backed
// by a nested simulation ("kind: system"), the sub-graph it wraps and the
// expose-map naming which of its internal ExposeComponent ports become the
// component's own output ports, as seen by whatever wiring this component is
// itself wired into.
type ComponentConfig struct {
	ID      string            `yaml:"id"`
	Kind    string            `yaml:"kind"`
	Initial map[string]any    `yaml:"initial,omitempty"`
	Expose  map[string]string `yaml:"expose,omitempty"`
	Nested  *NestedConfig     `yaml:"nested,omitempty"`
}

// NestedConfig describes the sub-simulation backing a "system" component:
// its own components and wiring, built and validated exactly like the
// top-level Config. Its wiring list is expected to wire
// scheduler.ExternalComponent as the producer of boundary inputs and
// scheduler.ExposeComponent as the consumer of boundary outputs, mirroring
// component.NewSystemSimulation's contract.
type NestedConfig struct {
	Components []ComponentConfig `yaml:"components"`
	Wires      []WireConfig      `yaml:"wiring"`
}

// WireConfig declares one edge of the wiring graph.
type WireConfig struct {
	Producer   string `yaml:"producer"`
	OutputPort string `yaml:"output_port"`
	Consumer   string `yaml:"consumer"`
	InputPort  string `yaml:"input_port"`
}

// TransportConfig selects and configures the State Interface implementation
// the scheduler runs over.
type TransportConfig struct {
	// Type is either "internal" (transport.InProcessBus) or "external"
	// (transport.ExternalBus).
	Type string `yaml:"type"`

	// Address is the listen address used when Type is "external".
	Address string `yaml:"address,omitempty"`
}

// Config is the complete configuration surface: component declarations, a
// wiring list, a transport selector, and the ticker's per-tick reply
// deadline, per spec.md §6.
type Config struct {
	Components []ComponentConfig `yaml:"components"`
	Wires      []WireConfig      `yaml:"wiring"`
	Transport  TransportConfig   `yaml:"transport"`

	// TickTimeoutMillis bounds how long any one component is given to
	// reply to an Input before the ticker raises sim.ComponentTimeout. Zero
	// or unset disables the deadline.
	TickTimeoutMillis int `yaml:"tick_timeout_ms,omitempty"`
}

// TickTimeout returns the configured per-tick reply deadline as a
// time.Duration, for scheduler.Master.SetTimeout/scheduler.Slave.SetTimeout.
func (c *Config) TickTimeout() time.Duration {
	return time.Duration(c.TickTimeoutMillis) * time.Millisecond
}

// Load reads and validates the YAML configuration document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sim.NewConfigError(fmt.Errorf("reading config %s: %w", path, err))
	}

	return Parse(data)
}

// Parse validates and decodes a YAML configuration document already read
// into memory.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, sim.NewConfigError(fmt.Errorf("parsing config: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that every component id and port named in the config is
// well-formed and that the wiring list references only declared components,
// returning a *sim.ConfigError describing the first problem found. A "system"
// component's nested config is validated recursively by the same rules.
func (c *Config) Validate() error {
	if len(c.Components) == 0 {
		return sim.NewConfigError(fmt.Errorf("config declares no components"))
	}

	if c.TickTimeoutMillis < 0 {
		return sim.NewConfigError(fmt.Errorf(
			"tick_timeout_ms must not be negative, got %d", c.TickTimeoutMillis))
	}

	if err := validateGraph(c.Components, c.Wires, nil); err != nil {
		return err
	}

	switch c.Transport.Type {
	case "internal", "external":
	default:
		return sim.NewConfigError(fmt.Errorf(
			"transport type must be %q or %q, got %q", "internal", "external", c.Transport.Type))
	}

	if c.Transport.Type == "external" && c.Transport.Address == "" {
		return sim.NewConfigError(fmt.Errorf("external transport requires an address"))
	}

	return nil
}

// validateGraph checks one components/wiring pair, whether the top-level
// Config's or a NestedConfig's. extraDeclared names endpoints that are
// always considered declared even though they don't appear in components,
// used to admit scheduler.ExternalComponent/ExposeComponent in nested
// wiring lists.
func validateGraph(components []ComponentConfig, wires []WireConfig, extraDeclared map[string]struct{}) error {
	declared := make(map[string]struct{}, len(components)+len(extraDeclared))
	for c := range extraDeclared {
		declared[c] = struct{}{}
	}

	for _, comp := range components {
		if err := sim.ValidateComponentID(sim.ComponentID(comp.ID)); err != nil {
			return err
		}

		if comp.Kind == "" {
			return sim.NewConfigError(fmt.Errorf("component %q has no kind", comp.ID))
		}

		if _, dup := declared[comp.ID]; dup {
			return sim.NewConfigError(fmt.Errorf("component %q declared more than once", comp.ID))
		}

		declared[comp.ID] = struct{}{}

		if comp.Kind == "system" {
			if comp.Nested == nil {
				return sim.NewConfigError(fmt.Errorf(
					"component %q is kind \"system\" but declares no nested config", comp.ID))
			}

			if len(comp.Nested.Components) == 0 {
				return sim.NewConfigError(fmt.Errorf(
					"component %q's nested config declares no components", comp.ID))
			}

			boundary := map[string]struct{}{
				string(scheduler.ExternalComponent): {},
				string(scheduler.ExposeComponent):   {},
			}

			if err := validateGraph(comp.Nested.Components, comp.Nested.Wires, boundary); err != nil {
				return err
			}
		}
	}

	for _, w := range wires {
		if err := sim.ValidatePortID(sim.PortID(w.OutputPort)); err != nil {
			return err
		}

		if err := sim.ValidatePortID(sim.PortID(w.InputPort)); err != nil {
			return err
		}

		if _, ok := declared[w.Producer]; !ok {
			return sim.NewConfigError(fmt.Errorf("wiring references undeclared component %q", w.Producer))
		}

		if _, ok := declared[w.Consumer]; !ok {
			return sim.NewConfigError(fmt.Errorf("wiring references undeclared component %q", w.Consumer))
		}
	}

	return nil
}

// Wiring builds a *wiring.Wiring from the config's wiring list. Every
// declared component is included even if no wire mentions it, so a
// component driven purely by its own requested wakeups (e.g. a standalone
// Timer) is still ticked by the scheduler.
func (c *Config) Wiring() *wiring.Wiring {
	return buildWiring(c.Components, c.Wires, nil)
}

// Wiring builds the *wiring.Wiring for this nested sub-simulation, always
// including scheduler.ExternalComponent and scheduler.ExposeComponent as
// standalone components even if this particular sub-graph leaves one of
// them unwired.
func (n *NestedConfig) Wiring() *wiring.Wiring {
	return buildWiring(n.Components, n.Wires,
		[]sim.ComponentID{scheduler.ExternalComponent, scheduler.ExposeComponent})
}

func buildWiring(components []ComponentConfig, wires []WireConfig, extra []sim.ComponentID) *wiring.Wiring {
	edges := map[wiring.Endpoint][]wiring.Endpoint{}

	for _, w := range wires {
		src := wiring.Endpoint{Component: sim.ComponentID(w.Producer), Port: sim.PortID(w.OutputPort)}
		dst := wiring.Endpoint{Component: sim.ComponentID(w.Consumer), Port: sim.PortID(w.InputPort)}
		edges[src] = append(edges[src], dst)
	}

	standalone := make([]sim.ComponentID, 0, len(components)+len(extra))
	for _, comp := range components {
		standalone = append(standalone, sim.ComponentID(comp.ID))
	}

	standalone = append(standalone, extra...)

	return wiring.New(edges, standalone...)
}

// InitialInputs returns the configured initial input changes for every
// component, keyed by component id.
func (c *Config) InitialInputs() map[sim.ComponentID]sim.Changes {
	out := make(map[sim.ComponentID]sim.Changes, len(c.Components))

	for _, comp := range c.Components {
		changes := sim.Changes{}
		for port, value := range comp.Initial {
			changes[sim.PortID(port)] = value
		}

		out[sim.ComponentID(comp.ID)] = changes
	}

	return out
}
