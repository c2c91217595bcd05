package game

import "slices"

// Phase is the controller's position in the session lifecycle.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseCharacterPending Phase = "character_pending"
	PhaseInitializing     Phase = "initializing"
	PhaseStreaming        Phase = "streaming"
	PhaseAwaitingInput    Phase = "awaiting_input"
	PhaseSubmitting       Phase = "submitting"
	PhaseError            Phase = "error"
)

// HistoryEntry is one committed piece of the transcript.
type HistoryEntry struct {
	Text         string `json:"text"`
	IsUserChoice bool   `json:"is_user_choice"`
}

// Character is the player character sent to setup.
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Story is the latest narrative segment and the options offered after it.
type Story struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// SessionState is the observable state of one game session.
type SessionState struct {
	Phase Phase `json:"phase"`

	SessionID    string         `json:"session_id,omitempty"`
	Character    *Character     `json:"character,omitempty"`
	CurrentStory *Story         `json:"current_story,omitempty"`
	History      []HistoryEntry `json:"history"`

	IsLoading bool   `json:"is_loading"`
	Error     string `json:"error,omitempty"`

	// StreamingBuffer holds chunk text of the open exchange. It is only
	// non-empty while IsStreaming is set.
	StreamingBuffer string `json:"streaming_buffer,omitempty"`
	IsStreaming     bool   `json:"is_streaming"`

	// Progress lists the steps reported by the open (or last) exchange.
	Progress []string `json:"progress,omitempty"`

	// Established is set once setup has completed for SessionID.
	Established bool `json:"established"`
}

// Clone returns a deep copy of s.
func (s SessionState) Clone() SessionState {
	out := s
	if s.Character != nil {
		ch := *s.Character
		out.Character = &ch
	}
	if s.CurrentStory != nil {
		out.CurrentStory = &Story{
			Text:    s.CurrentStory.Text,
			Options: slices.Clone(s.CurrentStory.Options),
		}
	}
	out.History = slices.Clone(s.History)
	out.Progress = slices.Clone(s.Progress)
	return out
}

// CanSubmitAction reports whether an action may be submitted in this state.
func (s SessionState) CanSubmitAction() bool {
	if s.IsLoading || s.SessionID == "" || !s.Established {
		return false
	}
	return s.Phase == PhaseAwaitingInput || s.Phase == PhaseError
}
