package transcript

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/narratium-client/internal/game"
)

const persistTimeout = 5 * time.Second

// Recorder copies newly committed history entries into a Store. Its Observe
// method is a game.Observer. Persistence is best-effort: failures are logged
// and never reach the game.
type Recorder struct {
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	gameID   string
	recorded int
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Observe records the entries of st that have not been recorded yet.
func (r *Recorder) Observe(st game.SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st.SessionID == "" {
		r.gameID = ""
		r.recorded = 0
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	logger := r.logger.With(slog.String("game_id", st.SessionID))

	if st.SessionID != r.gameID {
		g := &Game{ID: st.SessionID}
		if st.Character != nil {
			g.Character = st.Character.Name
			g.Description = st.Character.Description
		}
		if err := r.store.CreateGame(ctx, g); err != nil {
			logger.Error("failed to create transcript", slog.String("error", err.Error()))
			return
		}
		r.gameID = st.SessionID
		r.recorded = 0
	}

	for r.recorded < len(st.History) {
		h := st.History[r.recorded]
		entry := &Entry{
			ID:           "entry_" + uuid.New().String(),
			Seq:          r.recorded,
			Text:         h.Text,
			IsUserChoice: h.IsUserChoice,
		}
		if err := r.store.Append(ctx, r.gameID, entry); err != nil {
			logger.Error("failed to append transcript entry",
				slog.Int("seq", entry.Seq),
				slog.String("error", err.Error()),
			)
			return
		}
		r.recorded++
	}
}
