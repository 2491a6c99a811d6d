package gait

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorePerfect(t *testing.T) {
	t.Parallel()

	res := Score(4, 0.06, 100, nil, nil)
	assert.Equal(t, 100, res.Total)
	assert.Empty(t, res.Notes)
	assert.Equal(t, map[string]int{ComponentAsymmetry: 0, ComponentSway: 0, ComponentCadence: 0}, res.ComponentPenalties)
}

func TestScoreComponents(t *testing.T) {
	t.Parallel()

	t.Run("asymmetry saturates at 40", func(t *testing.T) {
		assert.Equal(t, 20, Score(12, 0.05, 100, nil, nil).ComponentPenalties[ComponentAsymmetry])
		assert.Equal(t, 40, Score(20, 0.05, 100, nil, nil).ComponentPenalties[ComponentAsymmetry])
		assert.Equal(t, 40, Score(55, 0.05, 100, nil, nil).ComponentPenalties[ComponentAsymmetry])
	})

	t.Run("sway ramps from default reference", func(t *testing.T) {
		res := Score(0, 0.12, 100, nil, nil)
		assert.Equal(t, 26, res.ComponentPenalties[ComponentSway]) // 35 * 0.06/0.08 = 26.25
		assert.Equal(t, 35, Score(0, 0.20, 100, nil, nil).ComponentPenalties[ComponentSway])
	})

	t.Run("sway reference follows baseline", func(t *testing.T) {
		low := 0.04 // ref = 0.05
		assert.Greater(t, Score(0, 0.06, 100, nil, &low).ComponentPenalties[ComponentSway], 0)

		high := 0.2 // ref capped at 0.08
		assert.Equal(t, 0, Score(0, 0.08, 100, nil, &high).ComponentPenalties[ComponentSway])

		zero := 0.0
		assert.Equal(t, 0, Score(0, 0.06, 100, nil, &zero).ComponentPenalties[ComponentSway])
	})

	t.Run("cadence band", func(t *testing.T) {
		assert.Equal(t, 0, Score(0, 0, 90, nil, nil).ComponentPenalties[ComponentCadence])
		assert.Equal(t, 0, Score(0, 0, 120, nil, nil).ComponentPenalties[ComponentCadence])
		assert.Equal(t, 25, Score(0, 0, 50, nil, nil).ComponentPenalties[ComponentCadence])
		assert.Equal(t, 25, Score(0, 0, 30, nil, nil).ComponentPenalties[ComponentCadence])
		assert.Equal(t, 25, Score(0, 0, 160, nil, nil).ComponentPenalties[ComponentCadence])
		assert.Equal(t, 13, Score(0, 0, 140, nil, nil).ComponentPenalties[ComponentCadence]) // 12.5
	})
}

func TestScoreClampedAndNoted(t *testing.T) {
	t.Parallel()

	base := 5.0
	res := Score(30, 0.3, 20, &base, nil)
	assert.Equal(t, 0, res.Total)
	require.Len(t, res.Notes, 3)
	assert.Contains(t, res.Notes[0], "asymmetry 30.0%")
	assert.Contains(t, res.Notes[0], "baseline 5.0%")
	assert.Contains(t, res.Notes[1], "lateral sway")
	assert.Contains(t, res.Notes[2], "cadence 20 spm")
}

func TestScoreMonotonicInAsymmetry(t *testing.T) {
	t.Parallel()

	prev := 101
	for asym := 0.0; asym <= 40; asym += 0.5 {
		total := Score(asym, 0.09, 130, nil, nil).Total
		assert.LessOrEqual(t, total, prev, "asym=%.1f", asym)
		prev = total
	}
}
