// Package cmd provides the retrievalctl CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/federated-retrieval/internal/app"
	"github.com/aman-cerp/federated-retrieval/internal/config"
	"github.com/aman-cerp/federated-retrieval/internal/profiling"
	"github.com/aman-cerp/federated-retrieval/pkg/version"
)

var (
	configPath string
	dataDir    string
	debugMode  bool

	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()

	current *app.App
	cleanup func()
)

// NewRootCmd creates the root command for the retrievalctl CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "retrievalctl",
		Short:   "Drive the federated retrieval engine from the command line",
		Version: version.Version,
	}
	cmd.SetVersionTemplate("retrievalctl version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to engine config YAML (defaults embedded if unset)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for the centroid store and lock files (empty runs in-memory)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write a CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write a heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write an execution trace to file")

	cmd.PersistentPreRunE = bootstrap
	cmd.PersistentPostRunE = teardown

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCentroidCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func bootstrap(*cobra.Command, []string) error {
	var err error
	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("starting CPU profile: %w", err)
		}
	}
	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("starting trace: %w", err)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, c, err := app.New(cfg, dataDir, debugMode)
	if err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}
	current = a
	cleanup = c
	return nil
}

func teardown(*cobra.Command, []string) error {
	if cleanup != nil {
		cleanup()
		cleanup = nil
	}
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("writing heap profile: %w", err)
		}
	}
	return nil
}
