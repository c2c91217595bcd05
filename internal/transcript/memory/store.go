package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/tjfontaine/narratium-client/internal/transcript"
)

// Store is an in-memory transcript store.
type Store struct {
	mu    sync.RWMutex
	games map[string]*transcript.Game
}

var _ transcript.Store = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		games: make(map[string]*transcript.Game),
	}
}

func (s *Store) CreateGame(ctx context.Context, g *transcript.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[g.ID]; exists {
		return fmt.Errorf("game %s already exists", g.ID)
	}

	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt
	stored := *g
	stored.Entries = []transcript.Entry{}
	s.games[g.ID] = &stored
	return nil
}

func (s *Store) Append(ctx context.Context, gameID string, entry *transcript.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.games[gameID]
	if !exists {
		return fmt.Errorf("game %s: %w", gameID, transcript.ErrNotFound)
	}

	entry.CreatedAt = time.Now()
	g.Entries = append(g.Entries, *entry)
	g.UpdatedAt = entry.CreatedAt
	return nil
}

func (s *Store) GetGame(ctx context.Context, gameID string) (*transcript.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, exists := s.games[gameID]
	if !exists {
		return nil, fmt.Errorf("game %s: %w", gameID, transcript.ErrNotFound)
	}

	out := *g
	out.Entries = slices.Clone(g.Entries)
	return &out, nil
}

func (s *Store) ListGames(ctx context.Context, opts transcript.ListOptions) ([]*transcript.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*transcript.Game, 0, len(s.games))
	for _, g := range s.games {
		out := *g
		out.Entries = nil
		result = append(result, &out)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	if opts.Offset >= len(result) {
		return []*transcript.Game{}, nil
	}
	result = result[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[gameID]; !exists {
		return fmt.Errorf("game %s: %w", gameID, transcript.ErrNotFound)
	}
	delete(s.games, gameID)
	return nil
}

func (s *Store) Close() error {
	return nil
}
