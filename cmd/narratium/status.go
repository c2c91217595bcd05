package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/narratium-client/internal/cli"
)

func newStatusCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <game-id>",
		Short: "Show the latest scene of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			out := cmd.OutOrStdout()
			cli.Title(out, "GAME %s", resp.GameID)
			cli.Info(out, "%s\n\n", resp.Narrative)
			for i, p := range resp.NextPrompts {
				cli.Info(out, "  %d. %s\n", i+1, p)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response")
	return cmd
}
