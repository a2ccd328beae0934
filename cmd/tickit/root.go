package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var rootCmd = &cobra.Command{
	Use:   "tickit",
	Short: "tickit runs discrete-event device simulations described by a YAML configuration file.",
	Long: `tickit runs discrete-event device simulations described by a YAML ` +
		`configuration file: the components to instantiate, how their ports ` +
		`are wired together, and which transport the scheduler should drive ` +
		`them over.`,
}

var runExitCode int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation until it reaches a fixed point or is interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}

		monitorAddr, err := cmd.Flags().GetString("monitor")
		if err != nil {
			return err
		}

		runExitCode = runSimulation(configPath, monitorAddr)
		if runExitCode != 0 {
			return fmt.Errorf("simulation exited with status %d", runExitCode)
		}

		return nil
	},
}

func init() {
	runCmd.Flags().String("config", "", "path to the simulation's YAML configuration file")
	_ = runCmd.MarkFlagRequired("config")

	runCmd.Flags().String("monitor", "", "address to serve simulation status on, e.g. :8080 (disabled if empty)")

	rootCmd.AddCommand(runCmd)
}

// Execute runs the command tree and terminates the process with the exit
// code spec.md §6's contract requires, running any atexit.Register'd
// cleanup (closing the transport bus, stopping the monitor server) first.
// It never returns.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if runExitCode != 0 {
			atexit.Exit(runExitCode)
		}

		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
