package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tjfontaine/narratium-client/internal/cli"
	"github.com/tjfontaine/narratium-client/internal/game"
	"github.com/tjfontaine/narratium-client/internal/telemetry"
	"github.com/tjfontaine/narratium-client/internal/transcript"
)

func newPlayCmd(a *app) *cobra.Command {
	var opts struct {
		StoryID      string
		Framework    string
		Name         string
		Description  string
		NoStream     bool
		ShowProgress bool
	}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Start a new adventure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := telemetry.InitTracer(telemetry.Options{
				ServiceName: a.cfg.Telemetry.ServiceName,
				Enabled:     a.cfg.Telemetry.Enabled,
			}, a.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					a.logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
				}
			}()

			controller := game.NewController(a.client(), game.Settings{
				Model:     a.cfg.Game.Model,
				Language:  a.cfg.Game.Language,
				Type:      a.cfg.Game.Type,
				Framework: a.cfg.Game.Framework,
				Streaming: a.cfg.Game.Streaming && !opts.NoStream,
			}, game.WithLogger(a.logger))

			store, err := a.openStore()
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
				controller.Subscribe(transcript.NewRecorder(store, a.logger).Observe)
			}

			renderer := cli.NewRenderer(color.Output, opts.ShowProgress)
			controller.Subscribe(renderer.Observe)

			req := game.AdventureRequest{StoryID: opts.StoryID, Framework: opts.Framework}
			if opts.Name != "" {
				req.Character = &game.Character{Name: opts.Name, Description: opts.Description}
			}

			return cli.Play(ctx, controller, req, cli.NewTerminalInput(), color.Output)
		},
	}

	cmd.Flags().StringVar(&opts.StoryID, "story-id", "", "play a catalogued story")
	cmd.Flags().StringVar(&opts.Framework, "framework", "", "custom story framework")
	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "character name (skips the character prompt)")
	cmd.Flags().StringVarP(&opts.Description, "description", "d", "", "character description")
	cmd.Flags().BoolVar(&opts.NoStream, "no-stream", false, "use the single-shot endpoints")
	cmd.Flags().BoolVarP(&opts.ShowProgress, "show-progress", "p", false, "show generation progress steps")
	return cmd
}
