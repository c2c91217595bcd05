// Package mockserver is a scripted Narratium backend. It speaks the same
// endpoints and record stream as the real service and is used for local play
// and end-to-end tests.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/narratium-client/internal/api/narratium"
	"github.com/tjfontaine/narratium-client/internal/stream"
)

// Options configures the server.
type Options struct {
	Port       int
	Token      string // When set, requests must carry it as a bearer token
	ChunkSize  int    // Runes per chunk record
	ChunkDelay time.Duration
	Narrator   Narrator
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger

	narrator   Narrator
	chunkSize  int
	chunkDelay time.Duration

	mu    sync.Mutex
	games map[string]*gameState
}

type gameState struct {
	language    string
	initialized bool
	turn        int
	last        Scene
}

// New creates the server and its routes.
func New(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 10
	}
	if opts.Narrator == nil {
		opts.Narrator = ScriptedNarrator{}
	}

	s := &Server{
		Port:       opts.Port,
		logger:     logger,
		narrator:   opts.Narrator,
		chunkSize:  opts.ChunkSize,
		chunkDelay: opts.ChunkDelay,
		games:      make(map[string]*gameState),
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	if opts.Token != "" {
		r.Use(AuthMiddleware(opts.Token))
	}
	r.Use(TimeoutMiddleware(5 * time.Minute))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "narratium-mock")
	})

	r.Get("/", s.handleRoot)
	r.Post(narratium.PathInitialize, s.handleInitialize)
	r.Post(narratium.PathSetup, s.handleSetup)
	r.Post(narratium.PathSetupStream, s.handleSetupStream)
	r.Post(narratium.PathAction, s.handleAction)
	r.Post(narratium.PathActionStream, s.handleActionStream)
	r.Delete(narratium.PathGame+"{id}", s.handleDelete)
	r.Get(narratium.PathStatus+"{id}", s.handleStatus)

	s.Router = r
	return s
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting mock server", slog.Int("port", s.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to Narratium API",
		"version": "1.0.0",
	})
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req narratium.InitializeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}

	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	s.mu.Lock()
	s.games[id] = &gameState{language: req.Language}
	s.mu.Unlock()

	AddLogField(r.Context(), "game_id", id)
	writeJSON(w, http.StatusOK, narratium.GameResponse{
		GameID:      id,
		Narrative:   "Game initialized successfully. Ready to setup a new game or load an existing one.",
		NextPrompts: []string{"Setup a new game", "Load existing game"},
		Success:     true,
	})
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req narratium.SetupRequest
	if !decode(w, r, &req) {
		return
	}
	info, ok := s.lookup(w, r, req.GameID)
	if !ok {
		return
	}

	scene, err := s.narrator.Setup(r.Context(), info, req.StoryFramework, req.CharacterInfo)
	if err != nil {
		writeJSON(w, http.StatusOK, narratium.GameResponse{
			GameID:      req.GameID,
			Narrative:   "Error setting up game: " + err.Error(),
			NextPrompts: []string{"Try again"},
			Message:     err.Error(),
		})
		return
	}

	s.commit(req.GameID, scene, true)
	writeJSON(w, http.StatusOK, sceneResponse(req.GameID, scene))
}

func (s *Server) handleSetupStream(w http.ResponseWriter, r *http.Request) {
	var req narratium.SetupRequest
	if !decode(w, r, &req) {
		return
	}
	info, ok := s.lookup(w, r, req.GameID)
	if !ok {
		return
	}

	sw := newRecordWriter(w)
	sw.write(&stream.StartRecord{GameID: req.GameID})
	sw.write(&stream.ProgressRecord{Step: "story_framework_added"})
	sw.write(&stream.ProgressRecord{Step: "character_created"})

	scene, err := s.narrator.Setup(r.Context(), info, req.StoryFramework, req.CharacterInfo)
	if err != nil {
		sw.write(&stream.ErrorRecord{Message: err.Error()})
		return
	}
	if !s.streamScene(r.Context(), sw, scene) {
		return
	}
	s.commit(req.GameID, scene, true)
	sw.write(&stream.CompleteRecord{NextPrompts: scene.NextPrompts})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req narratium.ActionRequest
	if !decode(w, r, &req) {
		return
	}
	info, ok := s.lookup(w, r, req.GameID)
	if !ok {
		return
	}
	if !s.initialized(req.GameID) {
		writeJSON(w, http.StatusOK, narratium.GameResponse{
			GameID:      req.GameID,
			Narrative:   "Game not initialized. Please setup a new game first.",
			NextPrompts: []string{"Setup a new game"},
			Message:     "Game not initialized",
		})
		return
	}

	info.Turn++
	scene, err := s.narrator.Act(r.Context(), info, req.UserInput)
	if err != nil {
		writeJSON(w, http.StatusOK, narratium.GameResponse{
			GameID:      req.GameID,
			Narrative:   "Error processing action: " + err.Error(),
			NextPrompts: []string{"Try a different action", "Restart the game"},
			Message:     err.Error(),
		})
		return
	}

	s.commit(req.GameID, scene, false)
	writeJSON(w, http.StatusOK, sceneResponse(req.GameID, scene))
}

func (s *Server) handleActionStream(w http.ResponseWriter, r *http.Request) {
	var req narratium.ActionRequest
	if !decode(w, r, &req) {
		return
	}
	info, ok := s.lookup(w, r, req.GameID)
	if !ok {
		return
	}
	if !s.initialized(req.GameID) {
		writeDetail(w, http.StatusBadRequest, "Game not initialized")
		return
	}

	sw := newRecordWriter(w)
	sw.write(&stream.StartRecord{GameID: req.GameID})

	info.Turn++
	scene, err := s.narrator.Act(r.Context(), info, req.UserInput)
	if err != nil {
		sw.write(&stream.ErrorRecord{Message: err.Error()})
		return
	}
	if !s.streamScene(r.Context(), sw, scene) {
		return
	}
	s.commit(req.GameID, scene, false)
	sw.write(&stream.CompleteRecord{NextPrompts: scene.NextPrompts})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	AddLogField(r.Context(), "game_id", id)

	s.mu.Lock()
	_, ok := s.games[id]
	delete(s.games, id)
	s.mu.Unlock()

	if !ok {
		writeDetail(w, http.StatusNotFound, "Game instance not found")
		return
	}
	writeJSON(w, http.StatusOK, narratium.DeleteResponse{Message: fmt.Sprintf("Game %s deleted", id)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	AddLogField(r.Context(), "game_id", id)

	s.mu.Lock()
	g, ok := s.games[id]
	var scene Scene
	var initialized bool
	if ok {
		scene, initialized = g.last, g.initialized
	}
	s.mu.Unlock()

	if !ok {
		writeDetail(w, http.StatusNotFound, "Game instance not found")
		return
	}
	resp := sceneResponse(id, scene)
	if !initialized {
		resp.Message = "Game not initialized"
	}
	writeJSON(w, http.StatusOK, resp)
}

// lookup returns the game's info or writes a 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request, id string) (GameInfo, bool) {
	AddLogField(r.Context(), "game_id", id)

	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Game instance not found")
		return GameInfo{}, false
	}
	return GameInfo{ID: id, Language: g.language, Turn: g.turn}, true
}

func (s *Server) initialized(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	return ok && g.initialized
}

func (s *Server) commit(id string, scene Scene, setup bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return
	}
	if setup {
		g.initialized = true
	} else {
		g.turn++
	}
	g.last = scene
}

// streamScene writes the narrative as chunk records. It returns false if the
// request was cancelled part way.
func (s *Server) streamScene(ctx context.Context, sw *recordWriter, scene Scene) bool {
	for _, chunk := range chunkRunes(scene.Narrative, s.chunkSize) {
		sw.write(&stream.ChunkRecord{Content: chunk})
		if s.chunkDelay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.chunkDelay):
		}
	}
	return ctx.Err() == nil
}

func sceneResponse(id string, scene Scene) narratium.GameResponse {
	prompts := scene.NextPrompts
	if prompts == nil {
		prompts = []string{}
	}
	return narratium.GameResponse{
		GameID:      id,
		Narrative:   scene.Narrative,
		NextPrompts: prompts,
		Success:     true,
	}
}

// recordWriter writes flushed NDJSON records.
type recordWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newRecordWriter(w http.ResponseWriter) *recordWriter {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	f, _ := w.(http.Flusher)
	return &recordWriter{w: w, flusher: f}
}

func (rw *recordWriter) write(rec stream.Record) {
	line, err := stream.MarshalRecord(rec)
	if err != nil {
		return
	}
	_, _ = rw.w.Write(line)
	if rw.flusher != nil {
		rw.flusher.Flush()
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
