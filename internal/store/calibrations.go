package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/gait_computer/internal/orientation"
)

// Calibration is a saved calibration result.
type Calibration struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Result    orientation.Result `json:"-"`
}

// SaveCalibration stores a calibration and returns its id. Results without
// a transform are rejected.
func (s *Store) SaveCalibration(ctx context.Context, r orientation.Result) (Calibration, error) {
	if r.Transform.IsZero() {
		return Calibration{}, errors.New("store: refusing to save empty calibration")
	}
	c := Calibration{ID: uuid.NewString(), CreatedAt: s.now().UTC(), Result: r}
	m := r.Transform.Record()
	q := r.Quality
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calibrations (id, created_at, side, hz,
			m00, m01, m02, m10, m11, m12, m20, m21, m22,
			duration_sec, sample_count, up_stability, forward_dominance, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, unixNano(c.CreatedAt), string(r.Side), r.Hz,
		m.M00, m.M01, m.M02, m.M10, m.M11, m.M12, m.M20, m.M21, m.M22,
		q.DurationSeconds, q.SampleCount, q.UpStability, q.ForwardDominance, q.Confidence())
	if err != nil {
		return Calibration{}, fmt.Errorf("store: save calibration: %w", err)
	}
	return c, nil
}

// LatestCalibration returns the most recently saved calibration.
func (s *Store) LatestCalibration(ctx context.Context) (Calibration, error) {
	var (
		c       Calibration
		created int64
		side    string
		m       orientation.TransformRecord
		q       orientation.Quality
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, side, hz,
			m00, m01, m02, m10, m11, m12, m20, m21, m22,
			duration_sec, sample_count, up_stability, forward_dominance
		FROM calibrations ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(
		&c.ID, &created, &side, &c.Result.Hz,
		&m.M00, &m.M01, &m.M02, &m.M10, &m.M11, &m.M12, &m.M20, &m.M21, &m.M22,
		&q.DurationSeconds, &q.SampleCount, &q.UpStability, &q.ForwardDominance)
	if errors.Is(err, sql.ErrNoRows) {
		return Calibration{}, ErrNotFound
	}
	if err != nil {
		return Calibration{}, fmt.Errorf("store: latest calibration: %w", err)
	}
	c.CreatedAt = fromUnixNano(created)
	c.Result.Side = orientation.Side(side)
	c.Result.Transform = orientation.FromRecord(m)
	c.Result.Quality = q
	return c, nil
}

// DeleteCalibrations removes every saved calibration, transform and
// quality together.
func (s *Store) DeleteCalibrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM calibrations`); err != nil {
		return fmt.Errorf("store: delete calibrations: %w", err)
	}
	return nil
}
