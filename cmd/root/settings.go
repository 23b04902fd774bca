package root

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/murmur-app/murmur/pkg/dictation"
	"github.com/murmur-app/murmur/pkg/settings"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and update user preferences",
	}

	cmd.AddCommand(newSettingsGetCmd())
	cmd.AddCommand(newSettingsSetCmd())

	return cmd
}

func newSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the current preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(func(service *dictation.Service) error {
				s := service.Settings()
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", settings.KeyTheme, s.Theme)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %t\n", settings.KeySoundEnabled, s.SoundEnabled)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", settings.KeyHotkey, s.Hotkey)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %t\n", settings.KeyFirstLaunchComplete, s.FirstLaunchComplete)
				return nil
			})
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Update one preference",
		Example: `  murmur settings set theme dark
  murmur settings set soundEnabled false
  murmur settings set hotkey "Super+J"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			// Boolean keys take true/false; everything else is a string.
			var value any = args[1]
			if key == settings.KeySoundEnabled || key == settings.KeyFirstLaunchComplete {
				b, err := strconv.ParseBool(args[1])
				if err != nil {
					return fmt.Errorf("%s expects true or false, got %q", key, args[1])
				}
				value = b
			}

			return withService(func(service *dictation.Service) error {
				if err := service.SetSetting(key, value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
				return nil
			})
		},
	}
}
