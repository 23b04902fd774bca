package root

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/murmur-app/murmur/pkg/api"
	"github.com/murmur-app/murmur/pkg/archive"
	"github.com/murmur-app/murmur/pkg/dictation"
)

type historyFlags struct {
	page  int
	limit int
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the transcription history",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistorySearchCmd())
	cmd.AddCommand(newHistoryDeleteCmd())
	cmd.AddCommand(newHistoryClearCmd())
	cmd.AddCommand(newHistoryFavoriteCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var flags historyFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved transcriptions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(func(service *dictation.Service) error {
				page, limit := api.NormalizePage(flags.page, flags.limit)
				history, err := service.History(cmd.Context(), page, limit)
				if err != nil {
					return err
				}
				printHistory(cmd.OutOrStdout(), history, page, limit)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newHistorySearchCmd() *cobra.Command {
	var flags historyFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search saved transcriptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(service *dictation.Service) error {
				page, limit := api.NormalizePage(flags.page, flags.limit)
				history, err := service.SearchHistory(cmd.Context(), args[0], page, limit)
				if err != nil {
					return err
				}
				printHistory(cmd.OutOrStdout(), history, page, limit)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}

			return withService(func(service *dictation.Service) error {
				deleted, err := service.DeleteTranscription(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("no transcription with id %d", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d\n", id)
				return nil
			})
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all transcriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(func(service *dictation.Service) error {
				if err := service.ClearHistory(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return nil
			})
		},
	}
}

func newHistoryFavoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Toggle the favorite flag on a transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}

			return withService(func(service *dictation.Service) error {
				state, err := service.ToggleFavorite(cmd.Context(), id)
				if err != nil {
					return err
				}
				if state {
					fmt.Fprintf(cmd.OutOrStdout(), "%d is now a favorite\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%d is no longer a favorite\n", id)
				}
				return nil
			})
		},
	}
}

func (f *historyFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&f.limit, "limit", api.DefaultLimit, "Results per page")
}

func withService(fn func(*dictation.Service) error) error {
	service, err := dictation.OpenDefault()
	if err != nil {
		return err
	}
	defer service.Close()

	return fn(service)
}

func printHistory(out io.Writer, history *archive.HistoryPage, page, limit int) {
	if history.Total == 0 {
		fmt.Fprintln(out, "No transcriptions")
		return
	}

	for _, item := range history.Items {
		marker := " "
		if item.IsFavorite {
			marker = "*"
		}
		text := strings.ReplaceAll(item.Text, "\n", " ")
		fmt.Fprintf(out, "%s %4d  %s  %s\n", marker, item.ID, item.CreatedAt.Local().Format("2006-01-02 15:04"), text)
	}

	pages := (history.Total + int64(limit) - 1) / int64(limit)
	fmt.Fprintf(out, "\nPage %d of %d (%d total)\n", page, pages, history.Total)
}
