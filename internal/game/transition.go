package game

import "slices"

// Transition is one state change. Apply is the only place transitions take effect.
type Transition interface {
	apply(s *SessionState)
}

// Apply returns the state that results from t. s is not modified.
func Apply(s SessionState, t Transition) SessionState {
	next := s.Clone()
	t.apply(&next)
	return next
}

// AdventureRequested starts a new adventure. Without a character the session
// waits for one.
type AdventureRequested struct{}

func (AdventureRequested) apply(s *SessionState) {
	s.Error = ""
	if s.Character == nil {
		s.Phase = PhaseCharacterPending
	}
}

// InitializeStarted begins the initialize/setup exchange for a character.
type InitializeStarted struct {
	Character Character
}

func (t InitializeStarted) apply(s *SessionState) {
	ch := t.Character
	s.Character = &ch
	s.Phase = PhaseInitializing
	s.IsLoading = true
	s.Error = ""
	s.Progress = nil
	s.StreamingBuffer = ""
	s.IsStreaming = false
}

// SessionAssigned records the backend's game id. The id is assigned once.
type SessionAssigned struct {
	ID string
}

func (t SessionAssigned) apply(s *SessionState) {
	if s.SessionID == "" && t.ID != "" {
		s.SessionID = t.ID
	}
}

// ChunkReceived appends streamed narrative text.
type ChunkReceived struct {
	Text string
}

func (t ChunkReceived) apply(s *SessionState) {
	s.StreamingBuffer += t.Text
	s.IsStreaming = true
	s.Phase = PhaseStreaming
}

// ProgressReported records a progress step.
type ProgressReported struct {
	Step string
}

func (t ProgressReported) apply(s *SessionState) {
	s.Progress = append(s.Progress, t.Step)
}

// StreamCompleted commits the streaming buffer with the offered options.
type StreamCompleted struct {
	Options []string
}

func (t StreamCompleted) apply(s *SessionState) {
	commit(s, s.StreamingBuffer, t.Options)
}

// NarrativeCommitted commits a narrative received in a single response.
type NarrativeCommitted struct {
	Text    string
	Options []string
}

func (t NarrativeCommitted) apply(s *SessionState) {
	commit(s, t.Text, t.Options)
}

func commit(s *SessionState, text string, options []string) {
	s.History = append(s.History, HistoryEntry{Text: text})
	opts := slices.Clone(options)
	if opts == nil {
		opts = []string{}
	}
	s.CurrentStory = &Story{Text: text, Options: opts}
	s.StreamingBuffer = ""
	s.IsStreaming = false
	s.IsLoading = false
	s.Error = ""
	s.Established = true
	s.Phase = PhaseAwaitingInput
}

// ActionSubmitted appends the player's input before the exchange opens.
type ActionSubmitted struct {
	Text string
}

func (t ActionSubmitted) apply(s *SessionState) {
	s.History = append(s.History, HistoryEntry{Text: t.Text, IsUserChoice: true})
	s.Phase = PhaseSubmitting
	s.IsLoading = true
	s.Error = ""
	s.Progress = nil
	s.StreamingBuffer = ""
	s.IsStreaming = false
}

// FallbackStarted discards any partial stream before the single-shot retry.
type FallbackStarted struct{}

func (FallbackStarted) apply(s *SessionState) {
	s.StreamingBuffer = ""
	s.IsStreaming = false
	s.Phase = PhaseSubmitting
}

// ExchangeFailed ends the open exchange with an error. Committed history is kept.
type ExchangeFailed struct {
	Message string
}

func (t ExchangeFailed) apply(s *SessionState) {
	s.Error = t.Message
	s.StreamingBuffer = ""
	s.IsStreaming = false
	s.IsLoading = false
	s.Phase = PhaseError
}

// Reset returns to an empty idle session.
type Reset struct{}

func (Reset) apply(s *SessionState) {
	*s = SessionState{Phase: PhaseIdle}
}
