package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kidpech/authbridge/internal/app"
	"github.com/kidpech/authbridge/internal/infrastructure/logging"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server", "run"},
	Short:   "Start the HTTP front door",
	Long: `Start the HTTP server that accepts provider credentials, exchanges them
with the backend and keeps the resulting sessions.

Example:
  BACKEND_URL=https://api.example.com authbridge serve --addr :8080`,
	RunE: runServe,
}

var serveFlags struct {
	Addr string
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Addr, "addr", "", "Listen address (overrides PORT)")
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.App.Env)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	addr := serveFlags.Addr
	if addr == "" {
		addr = ":" + cfg.App.Port
	}
	server := &app.Server{Engine: a.Router, Addr: addr, Logger: logger}
	return server.Run(ctx)
}
