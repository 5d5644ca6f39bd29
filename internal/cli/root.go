package cli

import (
	"fmt"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kidpech/authbridge/internal/config"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "0.1.0"

// RootCmd is the base command.
var RootCmd = &cobra.Command{
	Use:   "authbridge",
	Short: "Exchange identity provider credentials for backend sessions",
	Long: `AuthBridge turns a credential obtained from a social identity provider
into an application session issued by the backend.

It can run as an HTTP front door (serve), perform a single exchange
(exchange), drive a browser sign-in (login) or emulate the backend
locally (stub-backend).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var globalFlags struct {
	EnvFile string
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := GetVersionInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "AuthBridge Version: %s\n", info.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Go Version: %s\n", info.GoVersion)
		fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", info.OS, info.Arch)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&globalFlags.EnvFile, "env-file", "", "Load environment variables from this file before reading config")
	RootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string
	GoVersion string
	OS        string
	Arch      string
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

func loadConfig() (*config.Config, error) {
	if globalFlags.EnvFile != "" {
		if err := godotenv.Load(globalFlags.EnvFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
