package cli

import (
	"io"
	"sync"

	"github.com/tjfontaine/narratium-client/internal/game"
)

// Renderer prints a session to a terminal as its state changes. Its Observe
// method is a game.Observer: streamed text appears as it arrives, and the
// options are listed once the exchange settles.
type Renderer struct {
	w io.Writer

	mu           sync.Mutex
	printed      int // bytes of the streaming buffer already printed
	progress     int
	history      int
	lastPhase    game.Phase
	lastError    string
	showProgress bool
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer, showProgress bool) *Renderer {
	return &Renderer{w: w, lastPhase: game.PhaseIdle, showProgress: showProgress}
}

func (r *Renderer) Observe(st game.SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st.Phase == game.PhaseIdle {
		r.printed, r.progress, r.history, r.lastError = 0, 0, 0, ""
		r.lastPhase = st.Phase
		return
	}

	if r.showProgress {
		for ; r.progress < len(st.Progress); r.progress++ {
			progressColor.Fprintf(r.w, "[%s]\n", st.Progress[r.progress])
		}
	}
	if len(st.Progress) < r.progress {
		r.progress = len(st.Progress)
	}

	if st.IsStreaming && len(st.StreamingBuffer) > r.printed {
		narrativeColor.Fprint(r.w, st.StreamingBuffer[r.printed:])
		r.printed = len(st.StreamingBuffer)
	}

	switch {
	case st.Phase == game.PhaseAwaitingInput && r.lastPhase != game.PhaseAwaitingInput:
		r.settled(st)
	case st.Phase == game.PhaseError && st.Error != r.lastError:
		if r.printed > 0 {
			io.WriteString(r.w, "\n")
		}
		errorColor.Fprintf(r.w, "Error: %s\n", st.Error)
		r.lastError = st.Error
		r.printed = 0
		r.history = len(st.History)
	case st.Phase == game.PhaseSubmitting && r.lastPhase != game.PhaseSubmitting:
		r.lastError = ""
		r.printed = 0
		r.echoChoices(st)
	}

	r.lastPhase = st.Phase
}

// settled finishes an exchange: text that was not streamed is printed whole.
func (r *Renderer) settled(st game.SessionState) {
	if st.CurrentStory != nil {
		if r.printed == 0 {
			narrativeColor.Fprint(r.w, st.CurrentStory.Text)
		}
		io.WriteString(r.w, "\n\n")
		for i, opt := range st.CurrentStory.Options {
			optionColor.Fprintf(r.w, "  %d. %s\n", i+1, opt)
		}
	}
	r.printed = 0
	r.lastError = ""
	r.history = len(st.History)
}

func (r *Renderer) echoChoices(st game.SessionState) {
	for ; r.history < len(st.History); r.history++ {
		if e := st.History[r.history]; e.IsUserChoice {
			choiceColor.Fprintf(r.w, "> %s\n\n", e.Text)
		}
	}
}
