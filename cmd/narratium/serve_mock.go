package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/narratium-client/internal/mockserver"
)

func newServeMockCmd(a *app) *cobra.Command {
	var opts struct {
		Port      int
		WithToken bool
	}

	cmd := &cobra.Command{
		Use:   "serve-mock",
		Short: "Run a scripted backend for local play",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

			port := a.cfg.Mock.Port
			if cmd.Flags().Changed("port") {
				port = opts.Port
			}
			var token string
			if opts.WithToken {
				token = a.cfg.API.Token
			}

			srv := mockserver.New(mockserver.Options{
				Port:       port,
				Token:      token,
				ChunkSize:  a.cfg.Mock.ChunkSize,
				ChunkDelay: a.cfg.Mock.ChunkDelay,
			}, logger)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 8000, "listen port (overrides mock.port)")
	cmd.Flags().BoolVar(&opts.WithToken, "require-token", false, "require api.token as a bearer token")
	return cmd
}
