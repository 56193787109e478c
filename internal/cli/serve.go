package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/unfloned/chronik/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "Serve the API without running reminder jobs")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost        string
	servePort        int
	serveNoScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chronik API server and reminder scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}
	if serveNoScheduler {
		cfg.Scheduler.Enabled = false
	}

	logger := daemon.SetupLogger(cfg.Logging)
	d, err := daemon.NewWithConfig(cfg, logger)
	if err != nil {
		return err
	}
	return d.Serve(context.Background())
}
