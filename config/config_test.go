package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dls-controls/tickit/config"
	"github.com/dls-controls/tickit/sim"
)

const validDoc = `
components:
  - id: source
    kind: source
    initial:
      out: 0
  - id: sink
    kind: sink
wiring:
  - producer: source
    output_port: out
    consumer: sink
    input_port: in
transport:
  type: internal
`

func TestParseValidConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(validDoc))
	require.NoError(t, err)
	require.Len(t, cfg.Components, 2)
	require.Len(t, cfg.Wires, 1)
	require.Equal(t, "internal", cfg.Transport.Type)
}

func TestConfigWiringBuildsRouterCompatibleGraph(t *testing.T) {
	cfg, err := config.Parse([]byte(validDoc))
	require.NoError(t, err)

	w := cfg.Wiring()
	require.ElementsMatch(t,
		[]sim.ComponentID{"source", "sink"},
		keys(w.Components()),
	)
}

func TestConfigInitialInputs(t *testing.T) {
	cfg, err := config.Parse([]byte(validDoc))
	require.NoError(t, err)

	initial := cfg.InitialInputs()
	require.Equal(t, sim.Changes{"out": 0}, initial["source"])
}

func TestConfigWiringRegistersStandaloneComponents(t *testing.T) {
	doc := `
components:
  - id: ticker
    kind: timer
    initial:
      period: 10
transport:
  type: internal
`
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)

	w := cfg.Wiring()
	require.ElementsMatch(t, []sim.ComponentID{"ticker"}, keys(w.Components()))
}

func TestParseRejectsUndeclaredWiringTarget(t *testing.T) {
	doc := `
components:
  - id: source
    kind: source
wiring:
  - producer: source
    output_port: out
    consumer: missing
    input_port: in
transport:
  type: internal
`
	_, err := config.Parse([]byte(doc))
	require.Error(t, err)

	var cfgErr *sim.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseRejectsUnknownTransportType(t *testing.T) {
	doc := `
components:
  - id: source
    kind: source
transport:
  type: carrier-pigeon
`
	_, err := config.Parse([]byte(doc))
	require.Error(t, err)
}

func TestParseRejectsExternalTransportWithoutAddress(t *testing.T) {
	doc := `
components:
  - id: source
    kind: source
transport:
  type: external
`
	_, err := config.Parse([]byte(doc))
	require.Error(t, err)
}

func TestParseRejectsDuplicateComponentID(t *testing.T) {
	doc := `
components:
  - id: source
    kind: source
  - id: source
    kind: sink
transport:
  type: internal
`
	_, err := config.Parse([]byte(doc))
	require.Error(t, err)
}

func TestParseRejectsNegativeTickTimeout(t *testing.T) {
	doc := `
components:
  - id: source
    kind: source
transport:
  type: internal
tick_timeout_ms: -5
`
	_, err := config.Parse([]byte(doc))
	require.Error(t, err)

	var cfgErr *sim.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestConfigTickTimeoutConvertsMillisToDuration(t *testing.T) {
	doc := `
components:
  - id: source
    kind: source
transport:
  type: internal
tick_timeout_ms: 250
`
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, cfg.TickTimeout())
}

func TestParseRejectsSystemComponentWithoutNestedConfig(t *testing.T) {
	doc := `
components:
  - id: sub
    kind: system
transport:
  type: internal
`
	_, err := config.Parse([]byte(doc))
	require.Error(t, err)

	var cfgErr *sim.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseRejectsSystemComponentWithEmptyNestedComponents(t *testing.T) {
	doc := `
components:
  - id: sub
    kind: system
    nested:
      components: []
transport:
  type: internal
`
	_, err := config.Parse([]byte(doc))
	require.Error(t, err)
}

const systemDoc = `
components:
  - id: sub
    kind: system
    expose:
      out: value
    nested:
      components:
        - id: inner
          kind: passthrough
      wiring:
        - producer: external
          output_port: in
          consumer: inner
          input_port: in
        - producer: inner
          output_port: in
          consumer: expose
          input_port: out
  - id: sink
    kind: sink
wiring:
  - producer: sub
    output_port: value
    consumer: sink
    input_port: in
transport:
  type: internal
`

func TestParseAcceptsSystemComponentWithValidNestedConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(systemDoc))
	require.NoError(t, err)
	require.NotNil(t, cfg.Components[0].Nested)

	w := cfg.Components[0].Nested.Wiring()
	require.ElementsMatch(t,
		[]sim.ComponentID{"external", "inner", "expose"},
		keys(w.Components()),
	)
}

func TestConfigWiringIncludesSystemComponentAsStandalone(t *testing.T) {
	cfg, err := config.Parse([]byte(systemDoc))
	require.NoError(t, err)

	w := cfg.Wiring()
	require.ElementsMatch(t, []sim.ComponentID{"sub", "sink"}, keys(w.Components()))
}

func TestParseRejectsNestedWiringReferencingUndeclaredComponent(t *testing.T) {
	doc := `
components:
  - id: sub
    kind: system
    nested:
      components:
        - id: inner
          kind: passthrough
      wiring:
        - producer: missing
          output_port: out
          consumer: inner
          input_port: in
transport:
  type: internal
`
	_, err := config.Parse([]byte(doc))
	require.Error(t, err)
}

func keys(m map[sim.ComponentID]struct{}) []sim.ComponentID {
	out := make([]sim.ComponentID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	return out
}
