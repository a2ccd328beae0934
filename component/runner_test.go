package component_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dls-controls/tickit/component"
	"github.com/dls-controls/tickit/sim"
	"github.com/dls-controls/tickit/transport"
)

type echoDevice struct{}

func (echoDevice) Update(_ sim.SimTime, inputs sim.Changes) component.DeviceUpdate {
	return component.DeviceUpdate{Outputs: inputs.Clone()}
}

func TestRunnerPublishesOutputForInput(t *testing.T) {
	bus := transport.NewInProcessBus()

	handler := component.NewDeviceSimulation("echo", echoDevice{})
	runner := component.NewRunner("echo", handler, bus)
	require.NoError(t, runner.Start())

	var got sim.Output
	require.NoError(t, bus.Subscribe([]transport.Topic{transport.OutputTopic("echo")}, func(msg sim.Message) {
		out, ok := msg.(sim.Output)
		if ok {
			got = out
		}
	}))

	require.NoError(t, bus.Publish(transport.InputTopic("echo"), sim.Input{
		Target: "echo", Time: 5, Changes: sim.Changes{"x": 1},
	}))

	require.Equal(t, sim.ComponentID("echo"), got.Source)
	require.Equal(t, sim.SimTime(5), got.Time)
	require.Equal(t, sim.Changes{"x": 1}, got.Changes)
}

type failingHandler struct{}

func (failingHandler) OnTick(_ sim.SimTime, _ sim.Changes) (sim.Changes, *sim.SimTime, error) {
	return nil, nil, errors.New("device update failed")
}

func TestRunnerPublishesComponentExceptionOnError(t *testing.T) {
	bus := transport.NewInProcessBus()

	runner := component.NewRunner("broken", failingHandler{}, bus)
	require.NoError(t, runner.Start())

	var got sim.ComponentException
	var gotOK bool
	require.NoError(t, bus.Subscribe([]transport.Topic{transport.OutputTopic("broken")}, func(msg sim.Message) {
		if exc, ok := msg.(sim.ComponentException); ok {
			got = exc
			gotOK = true
		}
	}))

	require.NoError(t, bus.Publish(transport.InputTopic("broken"), sim.Input{Target: "broken", Time: 0}))
	require.True(t, gotOK)
	require.Equal(t, sim.ComponentID("broken"), got.Source)
}

func TestRunnerStopsOnStopComponent(t *testing.T) {
	bus := transport.NewInProcessBus()

	handler := component.NewDeviceSimulation("echo", echoDevice{})
	runner := component.NewRunner("echo", handler, bus)
	require.NoError(t, runner.Start())

	require.NoError(t, bus.Publish(transport.InputTopic("echo"), sim.StopComponent{}))

	calls := 0
	require.NoError(t, bus.Subscribe([]transport.Topic{transport.OutputTopic("echo")}, func(sim.Message) {
		calls++
	}))

	require.NoError(t, bus.Publish(transport.InputTopic("echo"), sim.Input{Target: "echo", Time: 1}))
	require.Equal(t, 0, calls)
}
