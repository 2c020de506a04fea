package reconcile_test

import (
	"context"
	"math"
	"testing"

	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/metabolic/metabolictest"
	"metabolic-model-be/pkg/reconcile"
	"metabolic-model-be/pkg/solver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundsFor(t *testing.T) {
	tests := []struct {
		name         string
		observations []float64
		lower, upper float64
		ok           bool
	}{
		{"confidence interval", []float64{1, 2, 3}, 2 - 1.96, 2 + 1.96, true},
		{"single value", []float64{4.9}, 4.9, 4.9, true},
		{"two values use min and max", []float64{3, 1}, 1, 3, true},
		{"nan dropped before counting", []float64{1, math.NaN(), 3}, 1, 3, true},
		{"nothing valid", []float64{math.NaN()}, 0, 0, false},
		{"empty", nil, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lower, upper, ok := reconcile.BoundsFor(tt.observations)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.lower, lower, 1e-12)
			assert.InDelta(t, tt.upper, upper, 1e-12)
		})
	}
}

func knockedOut(t *testing.T) *metabolic.Model {
	t.Helper()
	m := metabolictest.Core()
	require.NoError(t, m.KnockOutGene("b2297"))
	return m
}

func TestMinimizeDistance(t *testing.T) {
	tests := []struct {
		name      string
		quadratic bool
		delta     float64
	}{
		{"linear", false, 1e-6},
		{"quadratic", true, 1e-3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := knockedOut(t)
			before := m.BoundsSnapshot()

			growth := &reconcile.Growth{Measurements: []float64{5.2}}
			fluxes := []reconcile.Flux{
				{ReactionID: "PFK", Measurements: []float64{6}, Uncertainty: 0.5},
				{ReactionID: "NOPE", Measurements: []float64{1}},
			}
			res, err := reconcile.MinimizeDistance(context.Background(), m, solver.NewSimplex(), metabolictest.BiomassID,
				growth, fluxes, reconcile.Options{Quadratic: tt.quadratic})
			require.NoError(t, err)

			assert.InDelta(t, 5.2, res.Growth.Measurements[0], 1e-6)
			require.Len(t, res.Fluxes, 2)
			require.Len(t, res.Fluxes[0].Measurements, 1)
			assert.InDelta(t, 4.8, res.Fluxes[0].Measurements[0], tt.delta)
			assert.Equal(t, 0.0, res.Fluxes[0].Uncertainty)
			assert.Equal(t, []float64{1}, res.Fluxes[1].Measurements)
			assert.Len(t, res.Warnings, 1)
			assert.Contains(t, res.Warnings[0], "NOPE")

			assert.Equal(t, before, m.BoundsSnapshot())
			assert.Equal(t, []float64{6}, fluxes[0].Measurements, "input is not modified")
		})
	}
}

func TestMinimizeDistanceMatchesReversedFlux(t *testing.T) {
	// PGI runs forward at 10/3 for maximal growth; a measurement of -10/3
	// is matched by magnitude.
	res, err := reconcile.MinimizeDistance(context.Background(), metabolictest.Core(), solver.NewSimplex(),
		metabolictest.BiomassID,
		&reconcile.Growth{Measurements: []float64{20.0 / 3}},
		[]reconcile.Flux{{ReactionID: "PGI", Measurements: []float64{-10.0 / 3}}},
		reconcile.Options{})
	require.NoError(t, err)
	assert.InDelta(t, 10.0/3, res.Fluxes[0].Measurements[0], 1e-6)
}

func TestMinimizeDistanceGrowthOnly(t *testing.T) {
	res, err := reconcile.MinimizeDistance(context.Background(), metabolictest.Core(), solver.NewSimplex(),
		metabolictest.BiomassID, &reconcile.Growth{Measurements: []float64{0.3}}, nil, reconcile.Options{})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, res.Growth.Measurements[0], 1e-9)
	assert.Empty(t, res.Fluxes)
}

func TestMinimizeDistanceErrors(t *testing.T) {
	ctx := context.Background()
	m := metabolictest.Core()

	_, err := reconcile.MinimizeDistance(ctx, m, solver.NewSimplex(), metabolictest.BiomassID, nil, nil, reconcile.Options{})
	assert.ErrorIs(t, err, reconcile.ErrMissingGrowthRate)

	_, err = reconcile.MinimizeDistance(ctx, m, solver.NewSimplex(), metabolictest.BiomassID,
		&reconcile.Growth{Measurements: []float64{math.NaN()}}, nil, reconcile.Options{})
	assert.ErrorIs(t, err, reconcile.ErrMissingGrowthRate)

	_, err = reconcile.MinimizeDistance(ctx, m, solver.NewSimplex(), metabolictest.BiomassID,
		&reconcile.Growth{Measurements: []float64{1000}}, nil, reconcile.Options{})
	assert.ErrorIs(t, err, solver.ErrInfeasible)

	_, err = reconcile.MinimizeDistance(ctx, m, solver.NewSimplex(), "NOPE",
		&reconcile.Growth{Measurements: []float64{1}}, nil, reconcile.Options{})
	assert.ErrorIs(t, err, metabolic.ErrReactionNotFound)
}
