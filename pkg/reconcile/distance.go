package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math"

	"metabolic-model-be/pkg/flux"
	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/solver"

	"gonum.org/v1/gonum/stat"
)

var ErrMissingGrowthRate = errors.New("reconciling fluxes requires a measured growth rate")

const DefaultBigM = 1e5

type Growth struct {
	Measurements []float64
	Uncertainty  float64
}

// Flux is a measured reaction flux.
type Flux struct {
	ReactionID   string
	Measurements []float64
	Uncertainty  float64
}

type Options struct {
	BigM      float64
	Quadratic bool
}

type Result struct {
	Growth   Growth
	Fluxes   []Flux
	Warnings []string
}

// MinimizeDistance finds the feasible flux distribution closest to the
// measured fluxes while the biomass reaction is held at the measured growth
// rate. The direction of each measured reaction is left to the solver through
// a binary variable so that |v| is matched against the observation. The
// model itself is not modified.
//
// The returned growth rate and every flux whose reaction exists in the model
// carry the reconciled value as their only measurement, with zero
// uncertainty. Fluxes on unknown reactions are returned unchanged and
// reported as warnings.
func MinimizeDistance(ctx context.Context, m *metabolic.Model, s solver.Solver, biomassID string, growth *Growth, fluxes []Flux, opts Options) (*Result, error) {
	if growth == nil || len(Valid(growth.Measurements)) == 0 {
		return nil, ErrMissingGrowthRate
	}
	bigM := opts.BigM
	if bigM <= 0 {
		bigM = DefaultBigM
	}

	p, index := flux.Problem(m)
	p.Objective, p.Sense = nil, solver.Minimize

	biomass, ok := index[biomassID]
	if !ok {
		return nil, fmt.Errorf("biomass reaction %s: %w", biomassID, metabolic.ErrReactionNotFound)
	}
	lower, upper := growthInterval(growth)
	p.Variables[biomass].Lower, p.Variables[biomass].Upper = lower, upper

	res := &Result{Fluxes: make([]Flux, len(fluxes))}
	copy(res.Fluxes, fluxes)
	included := make([]int, 0, len(fluxes))
	for i, f := range fluxes {
		v, ok := index[f.ReactionID]
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Reaction '%s' not found in the model. Ignored.", f.ReactionID))
			continue
		}
		valid := Valid(f.Measurements)
		if len(valid) == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Reaction '%s' has no valid measurement. Ignored.", f.ReactionID))
			continue
		}
		addDistance(p, v, f.ReactionID, stat.Mean(valid, nil), weight(f.Uncertainty), bigM, opts.Quadratic)
		included = append(included, i)
	}

	sol, err := s.Solve(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("reconciling flux measurements: %w", err)
	}

	res.Growth = Growth{Measurements: []float64{sol.Values[biomass]}}
	for _, i := range included {
		f := &res.Fluxes[i]
		f.Measurements = []float64{sol.Values[index[f.ReactionID]]}
		f.Uncertainty = 0
	}
	return res, nil
}

// growthInterval trusts the growth rate over the fluxes: a single value is
// held within its uncertainty, several values follow BoundsFor.
func growthInterval(g *Growth) (float64, float64) {
	valid := Valid(g.Measurements)
	if len(valid) > 1 {
		lower, upper, _ := BoundsFor(valid)
		return lower, upper
	}
	return valid[0] - g.Uncertainty, valid[0] + g.Uncertainty
}

func weight(uncertainty float64) float64 {
	if uncertainty == 0 || math.IsNaN(uncertainty) || math.IsInf(uncertainty, 0) {
		return 1
	}
	return math.Abs(uncertainty)
}

// addDistance adds dist >= |observed - v| when the binary direction is 1 and
// dist >= |observed + v| when it is 0, then charges dist/weight (or its
// square) to the objective.
func addDistance(p *solver.Problem, v int, id string, observed, w, bigM float64, quadratic bool) {
	d := p.AddVariable(solver.Variable{Name: "direction_" + id, Lower: 0, Upper: 1, Binary: true})
	dist := p.AddVariable(solver.Variable{Name: "dist_" + id, Lower: 0, Upper: solver.Inf})

	rows := []struct {
		name  string
		v, d  float64
		upper float64
	}{
		// observed - v - M(1-d) - dist <= 0
		{"forward_pos_", -1, bigM, bigM - observed},
		// v - observed - M(1-d) - dist <= 0
		{"forward_neg_", 1, bigM, bigM + observed},
		// -observed - v - M*d - dist <= 0
		{"reverse_pos_", -1, -bigM, observed},
		// v + observed - M*d - dist <= 0
		{"reverse_neg_", 1, -bigM, -observed},
	}
	for _, row := range rows {
		p.AddConstraint(solver.Constraint{
			Name:  row.name + id,
			Terms: []solver.Term{{Var: v, Coef: row.v}, {Var: d, Coef: row.d}, {Var: dist, Coef: -1}},
			Lower: -solver.Inf,
			Upper: row.upper,
		})
	}

	if quadratic {
		p.Squared = append(p.Squared, solver.Squared{Var: dist, Weight: 1 / (w * w)})
		return
	}
	p.Objective = append(p.Objective, solver.Term{Var: dist, Coef: 1 / w})
}
