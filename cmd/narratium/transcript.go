package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/narratium-client/internal/cli"
	"github.com/tjfontaine/narratium-client/internal/transcript"
)

func newTranscriptCmd(a *app) *cobra.Command {
	var opts struct {
		PageSize int
	}

	cmd := &cobra.Command{
		Use:   "transcript [game-id]",
		Short: "List recorded games or print one transcript",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Transcript.Driver != "sqlite" {
				return errors.New("transcripts are only kept across runs with transcript.driver=sqlite")
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if len(args) == 0 {
				games, err := store.ListGames(ctx, transcript.ListOptions{Limit: opts.PageSize})
				if err != nil {
					return err
				}
				cli.Title(out, "NARRATIUM GAMES")
				for _, g := range games {
					cli.Info(out, "%s  %s  %s\n", g.ID, g.UpdatedAt.Format("2006-01-02 15:04"), g.Character)
				}
				return nil
			}

			g, err := store.GetGame(ctx, args[0])
			if err != nil {
				return err
			}
			cli.Title(out, "GAME %s", g.ID)
			if g.Character != "" {
				cli.Info(out, "%s: %s\n", g.Character, g.Description)
				cli.Separator(out)
			}
			for _, e := range g.Entries {
				if e.IsUserChoice {
					fmt.Fprintf(out, "> %s\n\n", e.Text)
				} else {
					fmt.Fprintf(out, "%s\n\n", e.Text)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.PageSize, "page-size", "p", 50, "Page size")
	return cmd
}
