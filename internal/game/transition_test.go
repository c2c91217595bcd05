package game

import (
	"reflect"
	"testing"
)

func TestApply_DoesNotMutateInput(t *testing.T) {
	s := SessionState{
		Phase:        PhaseAwaitingInput,
		SessionID:    "g1",
		History:      []HistoryEntry{{Text: "Hello"}},
		CurrentStory: &Story{Text: "Hello", Options: []string{"a"}},
		Established:  true,
	}
	before := s.Clone()

	next := Apply(s, ActionSubmitted{Text: "a"})
	next = Apply(next, ChunkReceived{Text: "b"})
	next = Apply(next, StreamCompleted{Options: []string{"c"}})

	if !reflect.DeepEqual(s, before) {
		t.Errorf("Apply() mutated its input: %+v", s)
	}
	if len(next.History) != 3 {
		t.Errorf("History = %+v", next.History)
	}
}

func TestApply_Sequences(t *testing.T) {
	tests := []struct {
		name        string
		transitions []Transition
		check       func(t *testing.T, s SessionState)
	}{
		{
			name:        "adventure without character waits",
			transitions: []Transition{AdventureRequested{}},
			check: func(t *testing.T, s SessionState) {
				if s.Phase != PhaseCharacterPending {
					t.Errorf("Phase = %q", s.Phase)
				}
			},
		},
		{
			name: "session id assigned once",
			transitions: []Transition{
				SessionAssigned{ID: "g1"},
				SessionAssigned{ID: "g2"},
				SessionAssigned{ID: ""},
			},
			check: func(t *testing.T, s SessionState) {
				if s.SessionID != "g1" {
					t.Errorf("SessionID = %q, want g1", s.SessionID)
				}
			},
		},
		{
			name: "buffer only while streaming",
			transitions: []Transition{
				InitializeStarted{Character: Character{Name: "Ada"}},
				ChunkReceived{Text: "Hello "},
				ProgressReported{Step: "character_created"},
				ChunkReceived{Text: "world"},
			},
			check: func(t *testing.T, s SessionState) {
				if !s.IsStreaming || s.StreamingBuffer != "Hello world" || s.Phase != PhaseStreaming {
					t.Errorf("state = %+v", s)
				}
				if !reflect.DeepEqual(s.Progress, []string{"character_created"}) {
					t.Errorf("Progress = %v", s.Progress)
				}
			},
		},
		{
			name: "completion commits buffer",
			transitions: []Transition{
				InitializeStarted{Character: Character{Name: "Ada"}},
				ChunkReceived{Text: "Hello world"},
				StreamCompleted{},
			},
			check: func(t *testing.T, s SessionState) {
				if s.IsStreaming || s.StreamingBuffer != "" || s.IsLoading {
					t.Errorf("exchange not settled: %+v", s)
				}
				if !reflect.DeepEqual(s.CurrentStory, &Story{Text: "Hello world", Options: []string{}}) {
					t.Errorf("CurrentStory = %+v", s.CurrentStory)
				}
				if !s.Established || s.Phase != PhaseAwaitingInput {
					t.Errorf("Phase = %q, Established = %v", s.Phase, s.Established)
				}
			},
		},
		{
			name: "failure discards buffer and keeps history",
			transitions: []Transition{
				NarrativeCommitted{Text: "Intro", Options: []string{"go"}},
				ActionSubmitted{Text: "go"},
				ChunkReceived{Text: "half"},
				ExchangeFailed{Message: "stream ended unexpectedly"},
			},
			check: func(t *testing.T, s SessionState) {
				want := []HistoryEntry{{Text: "Intro"}, {Text: "go", IsUserChoice: true}}
				if !reflect.DeepEqual(s.History, want) {
					t.Errorf("History = %+v", s.History)
				}
				if s.StreamingBuffer != "" || s.IsStreaming || s.IsLoading || s.Phase != PhaseError {
					t.Errorf("state = %+v", s)
				}
				if s.CurrentStory.Text != "Intro" {
					t.Errorf("CurrentStory = %+v", s.CurrentStory)
				}
			},
		},
		{
			name: "completion without chunks still commits an entry",
			transitions: []Transition{
				NarrativeCommitted{Text: "Intro", Options: []string{"go"}},
				ActionSubmitted{Text: "wait"},
				StreamCompleted{Options: []string{"a"}},
			},
			check: func(t *testing.T, s SessionState) {
				want := []HistoryEntry{{Text: "Intro"}, {Text: "wait", IsUserChoice: true}, {Text: ""}}
				if !reflect.DeepEqual(s.History, want) {
					t.Errorf("History = %+v, want %+v", s.History, want)
				}
				if s.CurrentStory == nil || s.CurrentStory.Text != "" || !reflect.DeepEqual(s.CurrentStory.Options, []string{"a"}) {
					t.Errorf("CurrentStory = %+v", s.CurrentStory)
				}
			},
		},
		{
			name: "fallback clears partial stream",
			transitions: []Transition{
				ActionSubmitted{Text: "go"},
				ChunkReceived{Text: "par"},
				FallbackStarted{},
			},
			check: func(t *testing.T, s SessionState) {
				if s.StreamingBuffer != "" || s.IsStreaming || !s.IsLoading || s.Phase != PhaseSubmitting {
					t.Errorf("state = %+v", s)
				}
			},
		},
		{
			name: "reset",
			transitions: []Transition{
				SessionAssigned{ID: "g1"},
				NarrativeCommitted{Text: "Intro"},
				Reset{},
			},
			check: func(t *testing.T, s SessionState) {
				if !reflect.DeepEqual(s, SessionState{Phase: PhaseIdle}) {
					t.Errorf("state = %+v", s)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SessionState{Phase: PhaseIdle}
			for _, tr := range tt.transitions {
				s = Apply(s, tr)
			}
			tt.check(t, s)
		})
	}
}

func TestSessionState_Clone(t *testing.T) {
	s := SessionState{
		Character:    &Character{Name: "Ada"},
		CurrentStory: &Story{Text: "x", Options: []string{"a"}},
		History:      []HistoryEntry{{Text: "x"}},
	}
	c := s.Clone()
	c.Character.Name = "Bob"
	c.CurrentStory.Options[0] = "b"
	c.History[0].Text = "y"

	if s.Character.Name != "Ada" || s.CurrentStory.Options[0] != "a" || s.History[0].Text != "x" {
		t.Errorf("Clone() shares memory with the original: %+v", s)
	}
}
