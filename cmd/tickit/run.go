package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tebeka/atexit"

	"github.com/dls-controls/tickit/component"
	"github.com/dls-controls/tickit/config"
	"github.com/dls-controls/tickit/monitor"
	"github.com/dls-controls/tickit/scheduler"
	"github.com/dls-controls/tickit/sim"
	"github.com/dls-controls/tickit/transport"
)

// exitCode classifies an error from scheduler.Master.Run into the exit
// status spec.md §6 requires: 0 on success, distinct non-zero codes for a
// configuration error, an unrecoverable component failure, or a transport
// failure.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var cfgErr *sim.ConfigError
	if errors.As(err, &cfgErr) {
		return 2
	}

	var orderingErr *sim.OrderingError
	if errors.As(err, &orderingErr) {
		return 2
	}

	var componentErr *sim.ComponentError
	if errors.As(err, &componentErr) {
		return 3
	}

	var timeoutErr *sim.ComponentTimeout
	if errors.As(err, &timeoutErr) {
		return 3
	}

	var transportErr *sim.TransportError
	if errors.As(err, &transportErr) {
		return 4
	}

	return 1
}

func runSimulation(configPath, monitorAddr string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	bus, closeBus, err := buildTransport(cfg.Transport)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	atexit.Register(closeBus)

	timeout := cfg.TickTimeout()

	if err := startComponents(cfg.Components, bus, timeout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	master, err := scheduler.NewMaster(cfg.Wiring(), bus)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	master.SetTimeout(timeout)

	if err := master.Setup(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	if monitorAddr != "" {
		mon := monitor.New(master)
		if err := mon.ListenAndServe(monitorAddr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitCode(err)
		}

		atexit.Register(func() { _ = mon.Close() })
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := master.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	return 0
}

// startComponents builds and starts a component.Runner for every component
// in comps over bus. A "system" component's nested components are started
// first (recursively, since a nested config may itself declare a "system"
// component), then the system component's own SystemSimulation is built
// over its nested wiring and started like any other component.
func startComponents(comps []config.ComponentConfig, bus transport.Bus, timeout time.Duration) error {
	for _, comp := range comps {
		handler, err := buildHandler(comp, bus, timeout)
		if err != nil {
			return err
		}

		runner := component.NewRunner(sim.ComponentID(comp.ID), handler, bus)
		if err := runner.Start(); err != nil {
			return err
		}
	}

	return nil
}

// buildHandler constructs the Handler backing comp: a DeviceSimulation
// wrapping a registry device for an ordinary component, or a
// SystemSimulation driving comp.Nested's sub-graph (with comp.Expose's
// output-port renames applied) for a "system" component.
func buildHandler(comp config.ComponentConfig, bus transport.Bus, timeout time.Duration) (component.Handler, error) {
	if comp.Kind == "system" {
		if err := startComponents(comp.Nested.Components, bus, timeout); err != nil {
			return nil, err
		}

		system, err := component.NewSystemSimulation(comp.Nested.Wiring(), bus)
		if err != nil {
			return nil, err
		}

		system.SetTimeout(timeout)

		return &exposeRenamer{handler: system, rename: comp.Expose}, nil
	}

	device, err := buildDevice(comp)
	if err != nil {
		return nil, sim.NewConfigError(err)
	}

	return component.NewDeviceSimulation(sim.ComponentID(comp.ID), device), nil
}

func buildTransport(cfg config.TransportConfig) (transport.Bus, func(), error) {
	switch cfg.Type {
	case "external":
		bus := transport.NewExternalBus()
		if err := bus.ListenAndServe(cfg.Address); err != nil {
			return nil, nil, err
		}

		return bus, func() { _ = bus.Close() }, nil
	default:
		bus := transport.NewInProcessBus()
		return bus, func() { _ = bus.Close() }, nil
	}
}
