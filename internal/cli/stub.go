package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kidpech/authbridge/internal/app"
	"github.com/kidpech/authbridge/internal/backendstub"
	"github.com/kidpech/authbridge/internal/infrastructure/logging"
)

var stubCmd = &cobra.Command{
	Use:   "stub-backend",
	Short: "Run a local backend that accepts any provider token",
	Long: `Serve the backend side of the exchange for local development. Every
non-empty provider token is accepted and answered with signed JWTs.

Example:
  authbridge stub-backend --addr :8000
  BACKEND_URL=http://localhost:8000 authbridge serve`,
	RunE: runStub,
}

var stubFlags struct {
	Addr      string
	Secret    string
	AccessTTL time.Duration
}

func init() {
	stubCmd.Flags().StringVar(&stubFlags.Addr, "addr", ":8000", "Listen address")
	stubCmd.Flags().StringVar(&stubFlags.Secret, "secret", "", "HMAC secret for issued tokens")
	stubCmd.Flags().DurationVar(&stubFlags.AccessTTL, "access-ttl", 15*time.Minute, "Lifetime of issued access tokens")
	RootCmd.AddCommand(stubCmd)
}

func runStub(cmd *cobra.Command, args []string) error {
	logger, err := logging.New("development")
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stub := backendstub.New(backendstub.Options{
		Secret:    stubFlags.Secret,
		AccessTTL: stubFlags.AccessTTL,
		Logger:    logger.Named("stub"),
	})
	server := &app.Server{Engine: stub.Engine(), Addr: stubFlags.Addr, Logger: logger}
	return server.Run(ctx)
}
