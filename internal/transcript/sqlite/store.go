package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/narratium-client/internal/transcript"
)

// Store is a SQLite transcript store.
type Store struct {
	db *sql.DB
}

var _ transcript.Store = (*Store)(nil)

// New opens (creating if needed) the SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", withForeignKeys(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// withForeignKeys adds the foreign_keys pragma to the DSN so every pooled
// connection enforces ON DELETE CASCADE, not just the first one.
func withForeignKeys(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			character TEXT,
			description TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			text TEXT NOT NULL,
			is_user_choice INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_game_seq ON entries(game_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_games_updated ON games(updated_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) CreateGame(ctx context.Context, g *transcript.Game) error {
	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt

	query := `INSERT INTO games (id, character, description, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		g.ID, g.Character, g.Description, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	return nil
}

func (s *Store) Append(ctx context.Context, gameID string, entry *transcript.Entry) error {
	entry.CreatedAt = time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE games SET updated_at = ? WHERE id = ?`, entry.CreatedAt, gameID)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("game %s: %w", gameID, transcript.ErrNotFound)
	}

	query := `INSERT INTO entries (id, game_id, seq, text, is_user_choice, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, query,
		entry.ID, gameID, entry.Seq, entry.Text, entry.IsUserChoice, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	return tx.Commit()
}

func (s *Store) GetGame(ctx context.Context, gameID string) (*transcript.Game, error) {
	query := `SELECT id, character, description, created_at, updated_at
	          FROM games WHERE id = ?`

	var g transcript.Game
	var character, description sql.NullString

	err := s.db.QueryRowContext(ctx, query, gameID).Scan(
		&g.ID, &character, &description, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", gameID, transcript.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	g.Character = character.String
	g.Description = description.String

	entries, err := s.getEntries(ctx, gameID)
	if err != nil {
		return nil, err
	}
	g.Entries = entries

	return &g, nil
}

func (s *Store) getEntries(ctx context.Context, gameID string) ([]transcript.Entry, error) {
	query := `SELECT id, seq, text, is_user_choice, created_at
	          FROM entries WHERE game_id = ?
	          ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []transcript.Entry{}
	for rows.Next() {
		var e transcript.Entry
		if err := rows.Scan(&e.ID, &e.Seq, &e.Text, &e.IsUserChoice, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *Store) ListGames(ctx context.Context, opts transcript.ListOptions) ([]*transcript.Game, error) {
	query := `SELECT id, character, description, created_at, updated_at
	          FROM games
	          ORDER BY updated_at DESC
	          LIMIT ? OFFSET ?`

	limit := opts.Limit
	if limit == 0 {
		limit = 100 // default limit
	}

	rows, err := s.db.QueryContext(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	games := []*transcript.Game{}
	for rows.Next() {
		var g transcript.Game
		var character, description sql.NullString
		if err := rows.Scan(&g.ID, &character, &description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		g.Character = character.String
		g.Description = description.String
		games = append(games, &g)
	}

	return games, rows.Err()
}

func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, gameID)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("game %s: %w", gameID, transcript.ErrNotFound)
	}

	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}
