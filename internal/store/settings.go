package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/relabs-tech/gait_computer/internal/target"
)

const (
	keyPolicy = "target.policy"
	keyRamp   = "target.ramp"
)

func (s *Store) setting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: read setting %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("store: write setting %s: %w", key, err)
	}
	return nil
}

// Policy returns the persisted target policy, or def if none was saved.
func (s *Store) Policy(ctx context.Context, def target.Policy) (target.Policy, error) {
	v, err := s.setting(ctx, keyPolicy)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return target.ParsePolicy(v)
}

// SetPolicy persists the target policy.
func (s *Store) SetPolicy(ctx context.Context, p target.Policy) error {
	if _, err := target.ParsePolicy(string(p)); err != nil {
		return err
	}
	return s.setSetting(ctx, keyPolicy, string(p))
}

// Ramp returns the persisted ramp fraction, 0 if never set.
func (s *Store) Ramp(ctx context.Context) (float64, error) {
	v, err := s.setting(ctx, keyRamp)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("store: ramp %q: %w", v, err)
	}
	return f, nil
}

// SetRamp persists the ramp fraction. Values outside [0,1] are rejected.
func (s *Store) SetRamp(ctx context.Context, f float64) error {
	if math.IsNaN(f) || f < 0 || f > 1 {
		return fmt.Errorf("store: ramp %v outside [0,1]", f)
	}
	return s.setSetting(ctx, keyRamp, strconv.FormatFloat(f, 'g', -1, 64))
}

// Resolver assembles a target.Resolver from persisted settings and the
// latest personal baseline.
func (s *Store) Resolver(ctx context.Context, def target.Policy) (target.Resolver, error) {
	p, err := s.Policy(ctx, def)
	if err != nil {
		return target.Resolver{}, err
	}
	ramp, err := s.Ramp(ctx)
	if err != nil {
		return target.Resolver{}, err
	}
	r := target.Resolver{Policy: p, Ramp: ramp}
	b, err := s.LatestBaseline(ctx)
	switch {
	case err == nil:
		r.Personal = &b
	case !errors.Is(err, ErrNotFound):
		return target.Resolver{}, err
	}
	return r, nil
}
