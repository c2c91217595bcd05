// Package game implements the session state machine that drives a Narratium
// adventure: initialize and setup, action submission with a single-shot
// fallback, and teardown.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/narratium-client/internal/api/narratium"
	"github.com/tjfontaine/narratium-client/internal/stream"
)

// DefaultFramework is the story framework used when none is configured.
const DefaultFramework = "This is an open-world fantasy adventure. The player explores freely and the world reacts to their choices."

// abandonTimeout bounds the cleanup of a game created after EndGame.
const abandonTimeout = 10 * time.Second

// Backend is the subset of the game API the controller drives.
type Backend interface {
	Initialize(ctx context.Context, req *narratium.InitializeRequest) (*narratium.GameResponse, error)
	Setup(ctx context.Context, req *narratium.SetupRequest) (*narratium.GameResponse, error)
	Action(ctx context.Context, req *narratium.ActionRequest) (*narratium.GameResponse, error)
	StreamSetup(ctx context.Context, req *narratium.SetupRequest, h stream.Handlers) (*stream.Result, error)
	StreamAction(ctx context.Context, req *narratium.ActionRequest, h stream.Handlers) (*stream.Result, error)
	DeleteGame(ctx context.Context, gameID string) (*narratium.DeleteResponse, error)
}

// Settings are the game parameters sent to the backend.
type Settings struct {
	Model     string
	Language  string
	Type      string
	Framework string

	// Streaming selects the streaming endpoints. When false setup and
	// actions use the single-shot endpoints.
	Streaming bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// AdventureRequest starts a new adventure.
type AdventureRequest struct {
	// Framework overrides the story framework.
	Framework string

	// StoryID selects a catalogued story when Framework is empty.
	StoryID string

	// Character skips the character step when set.
	Character *Character
}

// Observer receives a snapshot of the state after every transition.
// Observers run synchronously and must not call controller operations.
type Observer func(SessionState)

// Controller owns one game session. Operations block until their exchange
// settles; at most one exchange is in flight at a time.
type Controller struct {
	backend  Backend
	settings Settings
	logger   *slog.Logger

	mu        sync.Mutex
	state     SessionState
	epoch     uint64
	framework string
	observers map[int]Observer
	nextObs   int

	// notifyMu keeps observer deliveries in transition order.
	notifyMu sync.Mutex
}

// NewController creates a controller in the idle phase.
func NewController(backend Backend, settings Settings, opts ...Option) *Controller {
	if settings.Framework == "" {
		settings.Framework = DefaultFramework
	}

	c := &Controller{
		backend:   backend,
		settings:  settings,
		logger:    slog.Default(),
		state:     SessionState{Phase: PhaseIdle},
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Subscribe registers an observer and returns a function that removes it.
func (c *Controller) Subscribe(fn Observer) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// StartAdventure begins a new adventure. Without a character the session moves
// to the character phase and returns; otherwise it initializes immediately and
// blocks until the opening scene settles.
func (c *Controller) StartAdventure(ctx context.Context, req AdventureRequest) error {
	framework := req.Framework
	if framework == "" && req.StoryID != "" {
		framework = fmt.Sprintf("This is an adventure based on story ID %s", req.StoryID)
	}
	if framework == "" {
		framework = c.settings.Framework
	}

	if req.Character != nil && strings.TrimSpace(req.Character.Name) == "" {
		return ErrCharacterRequired
	}

	c.mu.Lock()
	if c.state.IsLoading {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state.Established {
		c.mu.Unlock()
		return ErrSessionActive
	}

	c.framework = framework
	if req.Character != nil {
		c.state.Character = &Character{
			Name:        strings.TrimSpace(req.Character.Name),
			Description: strings.TrimSpace(req.Character.Description),
		}
	}
	epoch, snapshot := c.transitionLocked(AdventureRequested{})
	ch := c.state.Character

	if ch == nil {
		c.deliverLocked(snapshot)
		return nil
	}

	character := *ch
	gameID := c.state.SessionID
	_, snapshot = c.transitionLocked(InitializeStarted{Character: character})
	c.deliverLocked(snapshot)

	return c.initialize(ctx, epoch, gameID, framework, character)
}

// SubmitCharacter supplies the character and runs initialize and setup.
// It is also the retry path after a failed setup.
func (c *Controller) SubmitCharacter(ctx context.Context, name, description string) error {
	ch := Character{Name: strings.TrimSpace(name), Description: strings.TrimSpace(description)}
	if ch.Name == "" {
		return ErrCharacterRequired
	}

	c.mu.Lock()
	if c.state.IsLoading {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state.Established {
		c.mu.Unlock()
		return ErrSessionActive
	}
	if c.state.Phase != PhaseCharacterPending && c.state.Phase != PhaseError {
		c.mu.Unlock()
		return ErrNotReady
	}
	if c.framework == "" {
		c.framework = c.settings.Framework
	}
	framework := c.framework
	gameID := c.state.SessionID

	epoch, snapshot := c.transitionLocked(InitializeStarted{Character: ch})
	c.deliverLocked(snapshot)

	return c.initialize(ctx, epoch, gameID, framework, ch)
}

// initialize obtains a game id (unless a previous attempt already did) and
// runs the setup exchange.
func (c *Controller) initialize(ctx context.Context, epoch uint64, gameID, framework string, ch Character) error {
	if gameID == "" {
		resp, err := c.backend.Initialize(ctx, &narratium.InitializeRequest{
			Model:    c.settings.Model,
			Language: c.settings.Language,
			Type:     c.settings.Type,
		})
		if err != nil {
			c.fail(epoch, "initialize", err)
			return err
		}
		if resp.GameID == "" {
			err := &narratium.ApplicationError{Op: narratium.PathInitialize, Message: "no game id in response"}
			c.fail(epoch, "initialize", err)
			return err
		}
		gameID = resp.GameID
		if !c.assign(epoch, gameID) {
			c.abandon(ctx, gameID)
			return ErrSessionEnded
		}
	}
	if !c.current(epoch) {
		return ErrSessionEnded
	}

	req := &narratium.SetupRequest{
		GameID:         gameID,
		StoryFramework: framework,
		CharacterInfo:  CharacterInfo(ch),
	}

	logger := c.logger.With(slog.String("game_id", gameID))
	logger.Info("setting up game", slog.Bool("streaming", c.settings.Streaming))

	if !c.settings.Streaming {
		resp, err := c.backend.Setup(ctx, req)
		if err != nil {
			c.fail(epoch, "setup", err)
			return err
		}
		c.transition(epoch, NarrativeCommitted{Text: resp.Narrative, Options: resp.NextPrompts})
		return nil
	}

	_, err := c.backend.StreamSetup(ctx, req, c.streamHandlers(epoch, false))
	return err
}

// SubmitAction sends the player's input. The input is committed to history
// before any request is made. A streaming call that fails with a transport
// error is retried once against the single-shot endpoint, unless EndGame ran
// in the meantime.
func (c *Controller) SubmitAction(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyAction
	}

	c.mu.Lock()
	if c.state.IsLoading {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state.SessionID == "" {
		c.mu.Unlock()
		return ErrNoSession
	}
	if !c.state.CanSubmitAction() {
		c.mu.Unlock()
		return ErrNotReady
	}
	gameID := c.state.SessionID
	epoch, snapshot := c.transitionLocked(ActionSubmitted{Text: text})
	c.deliverLocked(snapshot)

	req := &narratium.ActionRequest{GameID: gameID, UserInput: text}
	logger := c.logger.With(slog.String("game_id", gameID))

	if !c.settings.Streaming {
		return c.singleShotAction(ctx, epoch, req)
	}

	_, err := c.backend.StreamAction(ctx, req, c.streamHandlers(epoch, true))
	var te *narratium.TransportError
	if !errors.As(err, &te) {
		return err
	}

	logger.Warn("streaming action failed, falling back to single-shot request",
		slog.String("error", err.Error()),
	)
	if !c.transition(epoch, FallbackStarted{}) {
		return ErrSessionEnded
	}

	return c.singleShotAction(ctx, epoch, req)
}

func (c *Controller) singleShotAction(ctx context.Context, epoch uint64, req *narratium.ActionRequest) error {
	resp, err := c.backend.Action(ctx, req)
	if err != nil {
		c.fail(epoch, "action", err)
		return err
	}
	c.transition(epoch, NarrativeCommitted{Text: resp.Narrative, Options: resp.NextPrompts})
	return nil
}

// EndGame resets local state and deletes the game on the backend. Any
// exchange still in flight no longer affects state. A deletion failure is
// returned after the reset has happened.
func (c *Controller) EndGame(ctx context.Context) error {
	c.mu.Lock()
	gameID := c.state.SessionID
	c.epoch++
	c.framework = ""
	_, snapshot := c.transitionLocked(Reset{})
	c.deliverLocked(snapshot)

	if gameID == "" {
		return nil
	}

	logger := c.logger.With(slog.String("game_id", gameID))
	if _, err := c.backend.DeleteGame(ctx, gameID); err != nil {
		logger.Warn("failed to delete game", slog.String("error", err.Error()))
		return fmt.Errorf("delete game %s: %w", gameID, err)
	}
	logger.Info("game ended")
	return nil
}

// streamHandlers routes an exchange's records into transitions. When
// fallback is set, transport failures are left to the caller's retry.
func (c *Controller) streamHandlers(epoch uint64, fallback bool) stream.Handlers {
	return stream.Handlers{
		OnStart: func(gameID string) {
			c.assign(epoch, gameID)
		},
		OnChunk: func(content string) {
			c.transition(epoch, ChunkReceived{Text: content})
		},
		OnProgress: func(step string) {
			c.transition(epoch, ProgressReported{Step: step})
		},
		OnComplete: func(nextPrompts []string) {
			c.transition(epoch, StreamCompleted{Options: nextPrompts})
		},
		OnError: func(err error) {
			var te *narratium.TransportError
			if fallback && errors.As(err, &te) {
				return
			}
			c.fail(epoch, "stream", err)
		},
	}
}

// assign records the game id. It reports false when epoch is stale.
func (c *Controller) assign(epoch uint64, gameID string) bool {
	st := c.State()
	if st.SessionID != "" && gameID != "" && st.SessionID != gameID {
		c.logger.Warn("ignoring game id change",
			slog.String("game_id", st.SessionID),
			slog.String("received_game_id", gameID),
		)
		return c.current(epoch)
	}
	return c.transition(epoch, SessionAssigned{ID: gameID})
}

// abandon deletes a game created after EndGame already reset the session.
func (c *Controller) abandon(ctx context.Context, gameID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abandonTimeout)
	defer cancel()

	logger := c.logger.With(slog.String("game_id", gameID))
	if _, err := c.backend.DeleteGame(ctx, gameID); err != nil {
		logger.Warn("failed to delete abandoned game", slog.String("error", err.Error()))
		return
	}
	logger.Info("deleted game created after session ended")
}

// current reports whether epoch still belongs to the active session.
func (c *Controller) current(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return epoch == c.epoch
}

func (c *Controller) fail(epoch uint64, op string, err error) {
	c.logger.Error("exchange failed", slog.String("op", op), slog.String("error", err.Error()))
	c.transition(epoch, ExchangeFailed{Message: ErrorMessage(err)})
}

// transition applies t if epoch is still current and notifies observers.
func (c *Controller) transition(epoch uint64, t Transition) bool {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Debug("discarding stale transition", slog.String("transition", fmt.Sprintf("%T", t)))
		return false
	}
	_, snapshot := c.transitionLocked(t)
	c.deliverLocked(snapshot)
	return true
}

// transitionLocked applies t. c.mu must be held.
func (c *Controller) transitionLocked(t Transition) (uint64, SessionState) {
	c.state = Apply(c.state, t)
	return c.epoch, c.state.Clone()
}

// deliverLocked hands snapshot to the observers and releases c.mu. Taking
// notifyMu before releasing c.mu keeps deliveries in transition order.
func (c *Controller) deliverLocked(snapshot SessionState) {
	observers := make([]Observer, 0, len(c.observers))
	for id := 0; id < c.nextObs; id++ {
		if fn, ok := c.observers[id]; ok {
			observers = append(observers, fn)
		}
	}
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

// CharacterInfo renders a character the way setup expects it.
func CharacterInfo(ch Character) string {
	return fmt.Sprintf("Character name: %s\nCharacter description: %s", ch.Name, ch.Description)
}

// ErrorMessage is the user-facing text for an exchange failure.
func ErrorMessage(err error) string {
	var (
		te *narratium.TransportError
		se *narratium.StreamError
		ae *narratium.ApplicationError
		he *narratium.HandlerError
	)
	switch {
	case errors.As(err, &se):
		return se.Message
	case errors.As(err, &ae):
		return ae.Message
	case errors.As(err, &te):
		if te.Detail != "" {
			return te.Detail
		}
		return te.Error()
	case errors.As(err, &he):
		return he.Error()
	default:
		return err.Error()
	}
}
