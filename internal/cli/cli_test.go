package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/tjfontaine/narratium-client/internal/api/narratium"
	"github.com/tjfontaine/narratium-client/internal/game"
	"github.com/tjfontaine/narratium-client/internal/mockserver"
)

func init() {
	color.NoColor = true
}

func TestRenderer_Streaming(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true)

	s := game.SessionState{Phase: game.PhaseIdle}
	for _, tr := range []game.Transition{
		game.InitializeStarted{Character: game.Character{Name: "Ada"}},
		game.ProgressReported{Step: "character_created"},
		game.ChunkReceived{Text: "Hello "},
		game.ChunkReceived{Text: "world"},
		game.StreamCompleted{Options: []string{"look", "go north"}},
		game.ActionSubmitted{Text: "look"},
		game.ChunkReceived{Text: "Dark"},
		game.ExchangeFailed{Message: "stream ended unexpectedly"},
	} {
		s = game.Apply(s, tr)
		r.Observe(s)
	}

	want := "[character_created]\n" +
		"Hello world\n\n" +
		"  1. look\n" +
		"  2. go north\n" +
		"> look\n\n" +
		"Dark\n" +
		"Error: stream ended unexpectedly\n"
	if got := buf.String(); got != want {
		t.Errorf("output =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderer_SingleShot(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)

	s := game.SessionState{Phase: game.PhaseIdle}
	for _, tr := range []game.Transition{
		game.InitializeStarted{Character: game.Character{Name: "Ada"}},
		game.ProgressReported{Step: "hidden"},
		game.NarrativeCommitted{Text: "Dawn.", Options: []string{"rise"}},
	} {
		s = game.Apply(s, tr)
		r.Observe(s)
	}

	if got, want := buf.String(), "Dawn.\n\n  1. rise\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

type scriptedInput struct {
	character game.Character
	choices   []Choice
	confirms  int
}

func (s *scriptedInput) Character() (game.Character, error) { return s.character, nil }

func (s *scriptedInput) Choose(options []string) (Choice, error) {
	if len(s.choices) == 0 {
		return Choice{Quit: true}, nil
	}
	c := s.choices[0]
	s.choices = s.choices[1:]
	if c.Text == "" && !c.Quit && len(options) > 0 {
		c.Text = options[0]
	}
	return c, nil
}

func (s *scriptedInput) Confirm(string) bool {
	s.confirms++
	return false
}

func TestPlay(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mock := mockserver.New(mockserver.Options{ChunkSize: 8}, logger)
	srv := httptest.NewServer(mock)
	defer srv.Close()

	client := narratium.NewClient(srv.URL, narratium.WithHTTPClient(srv.Client()), narratium.WithLogger(logger))
	c := game.NewController(client, game.Settings{Language: "en", Type: "openai", Streaming: true}, game.WithLogger(logger))

	var out bytes.Buffer
	r := NewRenderer(&out, false)
	c.Subscribe(r.Observe)

	in := &scriptedInput{
		character: game.Character{Name: "Ada", Description: "A cartographer"},
		choices:   []Choice{{}, {Text: "climb the tower"}, {Quit: true}},
	}

	if err := Play(context.Background(), c, game.AdventureRequest{}, in, &out); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	text := out.String()
	for _, want := range []string{"Ada stands on the stone bridge", "> Walk to the bell tower", "> climb the tower", "You climb the tower"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if st := c.State(); st.Phase != game.PhaseIdle || st.SessionID != "" {
		t.Errorf("Play() should end the game, state = %+v", st)
	}
}
