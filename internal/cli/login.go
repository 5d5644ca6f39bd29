package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kidpech/authbridge/internal/app"
	"github.com/kidpech/authbridge/internal/domain/login"
	"github.com/kidpech/authbridge/internal/infrastructure/logging"
	"github.com/kidpech/authbridge/internal/infrastructure/provider/google"
)

const cliTrigger = "cli"

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with Google in the browser and publish the session",
	Long: `Run the Google authorization-code flow on a loopback address, exchange
the resulting access token with the backend and publish the session
under the given key. With REDIS_ADDR set the session is visible to a
running "authbridge serve".

Example:
  GOOGLE_CLIENT_ID=... GOOGLE_CLIENT_SECRET=... authbridge login --locale en`,
	RunE: runLogin,
}

var loginFlags struct {
	Locale     string
	SessionKey string
}

func init() {
	loginCmd.Flags().StringVar(&loginFlags.Locale, "locale", "", "Locale for the backend route (defaults to DEFAULT_LOCALE)")
	loginCmd.Flags().StringVar(&loginFlags.SessionKey, "session-key", "", "Publish the session under this key (random when empty)")
	RootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.App.Env)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	flow, err := google.New(ctx, google.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		Issuer:       cfg.Google.Issuer,
		CallbackAddr: cfg.Google.CallbackAddr,
		OpenBrowser: func(authURL string) error {
			_, err := fmt.Fprintf(cmd.ErrOrStderr(), "Open this URL in your browser to sign in:\n\n  %s\n\n", authURL)
			return err
		},
	}, logger.Named("google"))
	if err != nil {
		return err
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	res, err := a.Logins.Login(ctx, login.Request{
		TriggerID:  cliTrigger,
		Provider:   "google",
		Locale:     loginFlags.Locale,
		SessionKey: loginFlags.SessionKey,
		Dismiss: func() {
			fmt.Fprintln(cmd.ErrOrStderr(), "Signed in. You can close the browser tab.")
		},
	}, flow)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"session_key": res.SessionKey,
		"session":     res.Session,
	})
}
