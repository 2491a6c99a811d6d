package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/relabs-tech/gait_computer/internal/session"
)

// SaveSession stores (or replaces) a finished session summary.
func (s *Store) SaveSession(ctx context.Context, sum session.Summary) error {
	raw, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("store: encode session %s: %w", sum.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, ended_at, cadence_spm, score, summary)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			cadence_spm = excluded.cadence_spm,
			score = excluded.score,
			summary = excluded.summary`,
		sum.ID, unixNano(sum.StartedAt), unixNano(sum.EndedAt), sum.Metrics.CadenceSPM, sum.Score.Total, string(raw))
	if err != nil {
		return fmt.Errorf("store: save session %s: %w", sum.ID, err)
	}
	return nil
}

// GetSession loads one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (session.Summary, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT summary FROM sessions WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Summary{}, ErrNotFound
	}
	if err != nil {
		return session.Summary{}, fmt.Errorf("store: get session %s: %w", id, err)
	}
	return decodeSummary(raw)
}

// RecentSessions returns up to limit sessions, oldest first so that the
// last element is the most recent.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]session.Summary, error) {
	if limit <= 0 {
		return []session.Summary{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT summary FROM (
			SELECT summary, started_at FROM sessions ORDER BY started_at DESC LIMIT ?
		) ORDER BY started_at ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent sessions: %w", err)
	}
	defer rows.Close()

	out := []session.Summary{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		sum, err := decodeSummary(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func decodeSummary(raw string) (session.Summary, error) {
	var sum session.Summary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return session.Summary{}, fmt.Errorf("store: decode session: %w", err)
	}
	return sum, nil
}
