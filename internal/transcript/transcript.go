// Package transcript persists the committed history of game sessions.
package transcript

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a game has no transcript.
var ErrNotFound = errors.New("transcript not found")

// Game is the transcript of one game session.
type Game struct {
	ID          string    `json:"id"`
	Character   string    `json:"character,omitempty"`
	Description string    `json:"description,omitempty"`
	Entries     []Entry   `json:"entries,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Entry is one committed history entry.
type Entry struct {
	ID           string    `json:"id"`
	Seq          int       `json:"seq"`
	Text         string    `json:"text"`
	IsUserChoice bool      `json:"is_user_choice"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListOptions pages through games, most recently updated first.
type ListOptions struct {
	Limit  int
	Offset int
}

// Store persists transcripts.
type Store interface {
	CreateGame(ctx context.Context, game *Game) error
	Append(ctx context.Context, gameID string, entry *Entry) error
	GetGame(ctx context.Context, gameID string) (*Game, error)
	ListGames(ctx context.Context, opts ListOptions) ([]*Game, error)
	DeleteGame(ctx context.Context, gameID string) error
	Close() error
}
