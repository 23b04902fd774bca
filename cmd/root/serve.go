package root

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/murmur-app/murmur/pkg/dictation"
	"github.com/murmur-app/murmur/pkg/server"
)

type serveFlags struct {
	listenAddr string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local HTTP API server",
		Long:  "Start the HTTP API that the desktop shell talks to",
		Args:  cobra.NoArgs,
		RunE:  flags.runServeCommand,
	}

	cmd.Flags().StringVarP(&flags.listenAddr, "listen", "l", "127.0.0.1:8090", "Address to listen on")

	return cmd
}

func (f *serveFlags) runServeCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	service, err := dictation.OpenDefault()
	if err != nil {
		return err
	}
	defer func() {
		if err := service.Close(); err != nil {
			slog.Error("Failed to close dictation service", "error", err)
		}
	}()

	ln, err := server.Listen(ctx, f.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.listenAddr, err)
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "Listening on "+ln.Addr().String())

	slog.Debug("Starting server", "addr", ln.Addr().String())

	return server.New(service).Serve(ctx, ln)
}
