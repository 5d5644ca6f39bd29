package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kidpech/authbridge/internal/app"
	"github.com/kidpech/authbridge/internal/domain/authbridge"
	"github.com/kidpech/authbridge/internal/infrastructure/logging"
)

var exchangeCmd = &cobra.Command{
	Use:   "exchange",
	Short: "Exchange a provider token for a backend session",
	Long: `Send a single provider credential to the backend and print the session
it returns as JSON. Failures exit non-zero with the failure kind.

Example:
  authbridge exchange --provider google --token ya29.a0... --locale fr`,
	RunE: runExchange,
}

var exchangeFlags struct {
	Provider string
	Token    string
	Locale   string
}

func init() {
	exchangeCmd.Flags().StringVar(&exchangeFlags.Provider, "provider", "google", "Identity provider name")
	exchangeCmd.Flags().StringVar(&exchangeFlags.Token, "token", "", "Provider access token (use - to read stdin)")
	exchangeCmd.Flags().StringVar(&exchangeFlags.Locale, "locale", "", "Locale for the backend route (defaults to DEFAULT_LOCALE)")
	RootCmd.AddCommand(exchangeCmd)
}

func runExchange(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.App.Env)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	token := exchangeFlags.Token
	if token == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}

	bridge, err := app.NewBridge(cfg, logger)
	if err != nil {
		return err
	}
	logger.Debug("exchanging credential",
		zap.String("provider", exchangeFlags.Provider),
		logging.Token("token", token),
	)
	sess, err := bridge.Exchange(cmd.Context(), exchangeFlags.Provider, authbridge.Credential{AccessToken: token}, exchangeFlags.Locale)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), sess)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
