package cli

import (
	"github.com/spf13/cobra"

	"github.com/kidpech/authbridge/internal/domain/avatar"
)

var avatarCmd = &cobra.Command{
	Use:   "avatar",
	Short: "Resolve avatar display attributes",
	RunE:  runAvatar,
}

var avatarFlags avatar.Options

func init() {
	avatarCmd.Flags().StringVar(&avatarFlags.Src, "src", "", "Image URL (defaults to the backend's default avatar)")
	avatarCmd.Flags().IntVar(&avatarFlags.Size, "size", 0, "Square size in pixels")
	avatarCmd.Flags().StringVar(&avatarFlags.Alt, "alt", "", "Alternative text")
	avatarCmd.Flags().StringVar(&avatarFlags.ClassName, "class", "", "Extra presentation class")
	RootCmd.AddCommand(avatarCmd)
}

func runAvatar(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	resolver := avatar.NewResolver(cfg.Backend.BaseURL, cfg.Backend.DefaultAvatarPath)
	return printJSON(cmd.OutOrStdout(), resolver.Resolve(avatarFlags))
}
