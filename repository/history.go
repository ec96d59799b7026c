package repository

import (
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/lib/pq"

	"github.com/triviarena/triviarena-server/models"
)

// MatchHistory records finished matches for the stats API. Recording is
// best-effort: a failed write never affects the match outcome.
type MatchHistory interface {
	Record(match models.MatchRecord) error
	Recent(n int) ([]models.MatchRecord, error)
	Count() (int, error)
}

// MemoryHistory keeps match records in memory, newest first.
type MemoryHistory struct {
	mu      sync.Mutex
	matches []models.MatchRecord
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (h *MemoryHistory) Record(match models.MatchRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.matches = append([]models.MatchRecord{match}, h.matches...)
	return nil
}

func (h *MemoryHistory) Recent(n int) ([]models.MatchRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > len(h.matches) {
		n = len(h.matches)
	}
	out := make([]models.MatchRecord, n)
	copy(out, h.matches[:n])
	return out, nil
}

func (h *MemoryHistory) Count() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.matches), nil
}

// PostgresHistory persists match records.
//
// Schema:
//
//	CREATE TABLE matches (
//	    id          SERIAL PRIMARY KEY,
//	    game_id     INTEGER NOT NULL,
//	    mode        TEXT NOT NULL,
//	    winner      TEXT,
//	    players     TEXT[] NOT NULL,
//	    scores      JSONB NOT NULL,
//	    started_at  TIMESTAMPTZ NOT NULL,
//	    finished_at TIMESTAMPTZ NOT NULL
//	);
type PostgresHistory struct {
	db *sql.DB
}

func NewPostgresHistory(db *sql.DB) *PostgresHistory {
	return &PostgresHistory{db: db}
}

func (h *PostgresHistory) Record(match models.MatchRecord) error {
	scores, err := json.Marshal(match.Scores)
	if err != nil {
		return err
	}
	_, err = h.db.Exec(`INSERT INTO matches (game_id, mode, winner, players, scores, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		match.ID, match.Mode, match.Winner, pq.Array(match.Players), scores,
		match.StartedAt, match.FinishedAt)
	return err
}

func (h *PostgresHistory) Recent(n int) ([]models.MatchRecord, error) {
	rows, err := h.db.Query(`SELECT game_id, mode, COALESCE(winner, ''), players, scores, started_at, finished_at
		FROM matches ORDER BY finished_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MatchRecord
	for rows.Next() {
		var m models.MatchRecord
		var scores []byte
		if err := rows.Scan(&m.ID, &m.Mode, &m.Winner, pq.Array(&m.Players), &scores, &m.StartedAt, &m.FinishedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(scores, &m.Scores); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (h *PostgresHistory) Count() (int, error) {
	var count int
	err := h.db.QueryRow("SELECT COUNT(*) FROM matches").Scan(&count)
	return count, err
}
