// Package cli implements the crewstore command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crewstore/crewstore/internal/config"
	"github.com/crewstore/crewstore/internal/telemetry"
	"github.com/crewstore/crewstore/pkg/crewstore"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "crewstore",
	Short: "Durable persistence for multi-agent task execution",
	Long: `crewstore - agent memory, task output journal, state snapshots,
and a structured event log over a remote or embedded relational store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./crewstore.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig honors the --config flag, falling back to ./crewstore.yaml and
// CREWSTORE_* environment variables.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	return config.Load(".")
}

// openStore loads config and connects the stores; every command goes through
// here so configuration and schema failures have one shape.
func openStore() (*crewstore.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Verbose = true
	}
	logger := telemetry.NewLogger(cfg.Verbose)

	store, err := crewstore.OpenWithLogger(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}
