package root

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/murmur-app/murmur/pkg/dictation"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the transcription API key",
	}

	cmd.AddCommand(newKeySetCmd())
	cmd.AddCommand(newKeyTestCmd())
	cmd.AddCommand(newKeyClearCmd())

	return cmd
}

func newKeySetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [key]",
		Short: "Store the API key in the system credential vault",
		Long:  "Store the API key in the system credential vault. Reads from stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading key from stdin: %w", err)
				}
				key = strings.TrimSpace(line)
			}
			if key == "" {
				return errors.New("key must not be empty")
			}

			return withService(func(service *dictation.Service) error {
				if err := service.SetAPIKey(key); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key stored")
				return nil
			})
		},
	}
}

func newKeyTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test [key]",
		Short: "Validate an API key against the remote API",
		Long:  "Validate an API key against the remote API. Tests the stored key when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			}

			return withService(func(service *dictation.Service) error {
				result := service.TestAPIKey(cmd.Context(), key)
				if !result.Success {
					return errors.New(result.Error)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key is valid")
				return nil
			})
		},
	}
}

func newKeyClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the API key from the system credential vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(func(service *dictation.Service) error {
				if err := service.ClearAPIKey(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key removed")
				return nil
			})
		},
	}
}
