package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SessionRow represents a session in the database.
type SessionRow struct {
	Code      string
	GameType  string
	Status    string // "waiting", "playing", "finished"
	Settings  string // game-specific JSON, empty for defaults
	Roster    string // JSON snapshot of the players, empty until saved
	CreatedAt time.Time
}

// MatchStateRow represents serialized match state.
type MatchStateRow struct {
	SessionCode string
	StateJSON   string
	UpdatedAt   time.Time
}

// ResultRow is one player's outcome of a finished match.
type ResultRow struct {
	MatchID     string
	SessionCode string
	GameType    string
	PlayerID    string
	Rank        int
	Score       int
	RecordedAt  time.Time
}

// Store handles SQLite persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			code       TEXT PRIMARY KEY,
			game_type  TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'waiting',
			settings   TEXT NOT NULL DEFAULT '',
			roster     TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS match_state (
			session_code TEXT PRIMARY KEY REFERENCES sessions(code),
			state_json   TEXT NOT NULL,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS match_results (
			match_id     TEXT NOT NULL,
			session_code TEXT NOT NULL,
			game_type    TEXT NOT NULL,
			player_id    TEXT NOT NULL,
			rank         INTEGER NOT NULL,
			score        INTEGER NOT NULL,
			recorded_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (match_id, player_id)
		);
		CREATE INDEX IF NOT EXISTS match_results_game_score
			ON match_results (game_type, score DESC);
	`)
	return err
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(code, gameType, settings string) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (code, game_type, status, settings) VALUES (?, ?, 'waiting', ?)",
		code, gameType, settings,
	)
	return err
}

const sessionColumns = "code, game_type, status, settings, roster, created_at"

func scanSession(sc interface{ Scan(...any) error }) (SessionRow, error) {
	var sr SessionRow
	err := sc.Scan(&sr.Code, &sr.GameType, &sr.Status, &sr.Settings, &sr.Roster, &sr.CreatedAt)
	return sr, err
}

// GetSession retrieves a session by code.
func (s *Store) GetSession(code string) (*SessionRow, error) {
	row := s.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE code = ?", code)
	sr, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	return &sr, nil
}

// UpdateSessionStatus changes a session's status.
func (s *Store) UpdateSessionStatus(code, status string) error {
	_, err := s.db.Exec("UPDATE sessions SET status = ? WHERE code = ?", status, code)
	return err
}

// UpdateSessionRoster stores the player snapshot of a session.
func (s *Store) UpdateSessionRoster(code, roster string) error {
	res, err := s.db.Exec("UPDATE sessions SET roster = ? WHERE code = ?", roster, code)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListSessions returns all sessions with the given status (or all if status is empty).
func (s *Store) ListSessions(status string) ([]SessionRow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query("SELECT " + sessionColumns + " FROM sessions ORDER BY created_at DESC")
	} else {
		rows, err = s.db.Query("SELECT "+sessionColumns+" FROM sessions WHERE status = ? ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []SessionRow
	for rows.Next() {
		sr, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sr)
	}
	return result, rows.Err()
}

// SaveMatchState upserts match state JSON.
func (s *Store) SaveMatchState(sessionCode, stateJSON string) error {
	_, err := s.db.Exec(`
		INSERT INTO match_state (session_code, state_json, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_code) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at
	`, sessionCode, stateJSON)
	return err
}

// GetMatchState retrieves match state JSON.
func (s *Store) GetMatchState(sessionCode string) (string, error) {
	var stateJSON string
	err := s.db.QueryRow("SELECT state_json FROM match_state WHERE session_code = ?", sessionCode).Scan(&stateJSON)
	return stateJSON, err
}

// SaveResults records the outcome of one match. Saving the same match
// twice keeps the first record.
func (s *Store) SaveResults(results []ResultRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO match_results (match_id, session_code, game_type, player_id, rank, score)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(match_id, player_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, r := range results {
		if _, err := stmt.Exec(r.MatchID, r.SessionCode, r.GameType, r.PlayerID, r.Rank, r.Score); err != nil {
			return fmt.Errorf("insert result for %s: %w", r.PlayerID, err)
		}
	}
	return tx.Commit()
}

// TopResults returns the best scores recorded for a game type, highest
// first.
func (s *Store) TopResults(gameType string, limit int) ([]ResultRow, error) {
	rows, err := s.db.Query(`
		SELECT match_id, session_code, game_type, player_id, rank, score, recorded_at
		FROM match_results
		WHERE game_type = ?
		ORDER BY score DESC, recorded_at ASC, player_id ASC
		LIMIT ?
	`, gameType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []ResultRow
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.MatchID, &r.SessionCode, &r.GameType, &r.PlayerID, &r.Rank, &r.Score, &r.RecordedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// DeleteSession removes a session and its match state. Recorded results
// are kept.
func (s *Store) DeleteSession(code string) error {
	_, err := s.db.Exec("DELETE FROM match_state WHERE session_code = ?", code)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("DELETE FROM sessions WHERE code = ?", code)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
