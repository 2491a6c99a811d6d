package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/relabs-tech/gait_computer/internal/gait"
)

// SaveBaseline stores a personal baseline. sessionID may be empty.
func (s *Store) SaveBaseline(ctx context.Context, b gait.Baseline, sessionID string) error {
	var sid sql.NullString
	if sessionID != "" {
		sid = sql.NullString{String: sessionID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO baselines (id, date, avg_step_time, cv_step_time, ml_sway_rms, asym_step_time_pct, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), unixNano(b.Date), b.AvgStepTime, b.CVStepTime, b.MLSwayRMS, b.AsymStepTimePct, sid)
	if err != nil {
		return fmt.Errorf("store: save baseline: %w", err)
	}
	return nil
}

// LatestBaseline returns the newest personal baseline by date.
func (s *Store) LatestBaseline(ctx context.Context) (gait.Baseline, error) {
	var (
		b    gait.Baseline
		date int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT date, avg_step_time, cv_step_time, ml_sway_rms, asym_step_time_pct
		FROM baselines ORDER BY date DESC, rowid DESC LIMIT 1`).Scan(
		&date, &b.AvgStepTime, &b.CVStepTime, &b.MLSwayRMS, &b.AsymStepTimePct)
	if errors.Is(err, sql.ErrNoRows) {
		return gait.Baseline{}, ErrNotFound
	}
	if err != nil {
		return gait.Baseline{}, fmt.Errorf("store: latest baseline: %w", err)
	}
	b.Date = fromUnixNano(date)
	return b, nil
}
