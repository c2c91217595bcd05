package transcript_test

import (
	"context"
	"testing"

	"github.com/tjfontaine/narratium-client/internal/game"
	"github.com/tjfontaine/narratium-client/internal/transcript"
	"github.com/tjfontaine/narratium-client/internal/transcript/memory"
)

func TestRecorder_Observe(t *testing.T) {
	store := memory.New()
	rec := transcript.NewRecorder(store, nil)

	s := game.SessionState{Phase: game.PhaseIdle}
	steps := []game.Transition{
		game.InitializeStarted{Character: game.Character{Name: "Ada", Description: "A cartographer"}},
		game.SessionAssigned{ID: "g1"},
		game.ChunkReceived{Text: "Hello "},
		game.ChunkReceived{Text: "world"},
		game.StreamCompleted{Options: []string{"look"}},
		game.ActionSubmitted{Text: "look"},
		game.ChunkReceived{Text: "partial"},
		game.ExchangeFailed{Message: "stream ended unexpectedly"},
	}
	for _, tr := range steps {
		s = game.Apply(s, tr)
		rec.Observe(s)
	}

	g, err := store.GetGame(context.Background(), "g1")
	if err != nil {
		t.Fatalf("GetGame() error = %v", err)
	}
	if g.Character != "Ada" || g.Description != "A cartographer" {
		t.Errorf("game = %+v", g)
	}
	want := []transcript.Entry{
		{Seq: 0, Text: "Hello world"},
		{Seq: 1, Text: "look", IsUserChoice: true},
	}
	if len(g.Entries) != len(want) {
		t.Fatalf("Entries = %+v, want %d entries", g.Entries, len(want))
	}
	for i, e := range g.Entries {
		if e.Seq != want[i].Seq || e.Text != want[i].Text || e.IsUserChoice != want[i].IsUserChoice {
			t.Errorf("Entries[%d] = %+v, want %+v", i, e, want[i])
		}
		if e.ID == "" {
			t.Errorf("Entries[%d] has no id", i)
		}
	}

	// A reset followed by a new game starts a new transcript.
	s = game.Apply(s, game.Reset{})
	rec.Observe(s)
	s = game.Apply(s, game.SessionAssigned{ID: "g2"})
	s = game.Apply(s, game.NarrativeCommitted{Text: "Again"})
	rec.Observe(s)

	g2, err := store.GetGame(context.Background(), "g2")
	if err != nil {
		t.Fatalf("GetGame() error = %v", err)
	}
	if len(g2.Entries) != 1 || g2.Entries[0].Seq != 0 {
		t.Errorf("g2 entries = %+v", g2.Entries)
	}
}
