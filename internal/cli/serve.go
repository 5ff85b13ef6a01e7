package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crewstore/crewstore/internal/server"
	"github.com/crewstore/crewstore/internal/telemetry"
)

var (
	servePort    int
	serveHost    string
	serveLogFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the store HTTP API",
	Long:  `Start an HTTP server exposing memory, results, state, and log operations.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "host to bind to")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "also write logs to this file")
}

func runServe(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	logger := telemetry.NewLogger(cfg.Verbose)
	if serveLogFile != "" {
		if err := logger.WithFile(serveLogFile); err != nil {
			return err
		}
		defer logger.Close()
	}
	srv := server.New(store.Memory, store.Journal, store.Snapshots, store.Logs, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	addr := fmt.Sprintf("%s:%d", serveHost, servePort)
	return srv.Start(ctx, addr)
}
