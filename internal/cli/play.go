// Package cli is the terminal front end: it renders a game session and
// collects the player's choices.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tjfontaine/narratium-client/internal/game"
)

// Play runs an adventure until the player quits or ctx is cancelled. The
// game is ended on the backend before Play returns.
func Play(ctx context.Context, c *game.Controller, req game.AdventureRequest, in Input, out io.Writer) error {
	Title(out, "Narratium")

	err := c.StartAdventure(ctx, req)
	defer func() {
		endCtx := context.WithoutCancel(ctx)
		if err := c.EndGame(endCtx); err != nil {
			Info(out, "Could not delete the game on the server: %v\n", err)
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		st := c.State()
		switch {
		case st.Phase == game.PhaseCharacterPending || (st.Phase == game.PhaseError && !st.Established):
			if st.Phase == game.PhaseError && !in.Confirm("Setting up the story failed. Try again?") {
				return nil
			}
			ch := game.Character{}
			if st.Character != nil && st.Phase == game.PhaseError {
				ch = *st.Character
			} else {
				if ch, err = in.Character(); err != nil {
					return quitOrErr(err)
				}
			}
			if err = c.SubmitCharacter(ctx, ch.Name, ch.Description); err != nil && errors.Is(err, game.ErrCharacterRequired) {
				Info(out, "%v\n", err)
			}

		case st.Established:
			var options []string
			if st.CurrentStory != nil {
				options = st.CurrentStory.Options
			}
			choice, err := in.Choose(options)
			if err != nil {
				return quitOrErr(err)
			}
			if choice.Quit {
				Separator(out)
				return nil
			}
			// Failures are rendered from state; the player may try again.
			_ = c.SubmitAction(ctx, choice.Text)

		default:
			if err != nil {
				return fmt.Errorf("start adventure: %w", err)
			}
			return fmt.Errorf("unexpected session phase %q", st.Phase)
		}
	}
}

func quitOrErr(err error) error {
	if errors.Is(err, ErrQuit) {
		return nil
	}
	return err
}
