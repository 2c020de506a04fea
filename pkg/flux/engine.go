// Package flux runs flux balance simulations on a metabolic model.
package flux

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"metabolic-model-be/pkg/logging"
	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/solver"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("metabolic.flux")

var ErrUnsupportedMethod = errors.New("unsupported simulation method")

type Method string

const (
	FBA     Method = "fba"
	PFBA    Method = "pfba"
	FVA     Method = "fva"
	PFBAFVA Method = "pfba-fva"
	MOMA    Method = "moma"
	LMOMA   Method = "lmoma"
)

// Methods lists every supported method.
var Methods = []Method{FBA, PFBA, FVA, PFBAFVA, MOMA, LMOMA}

const (
	DefaultPFBAFactor = 1.05
	optimumTolerance  = 1e-9
)

// ParseMethod returns the method for s, defaulting to FBA when s is empty.
func ParseMethod(s string) (Method, error) {
	if s == "" {
		return FBA, nil
	}
	for _, m := range Methods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnsupportedMethod)
}

// Ranged reports whether the method yields flux ranges instead of a point
// distribution.
func (m Method) Ranged() bool { return m == FVA || m == PFBAFVA }

type Range struct {
	Lower float64 `json:"lower_bound"`
	Upper float64 `json:"upper_bound"`
}

type Request struct {
	BiomassID          string
	Method             Method
	ObjectiveID        string
	ObjectiveDirection metabolic.Direction
	// FVAReactions restricts flux variability to a subset; empty means all.
	FVAReactions []string
	// Reference is the flux distribution MOMA and lMOMA stay close to.
	Reference map[string]float64
	// MeasuredReactions are reported when the problem turns out infeasible.
	MeasuredReactions []string
}

type Result struct {
	Method     Method
	Status     solver.Status
	Fluxes     map[string]float64
	Ranges     map[string]Range
	GrowthRate float64
}

// FluxDistribution is the per-reaction payload: point fluxes or ranges.
func (r *Result) FluxDistribution() interface{} {
	if r.Method.Ranged() {
		return r.Ranges
	}
	return r.Fluxes
}

type Engine struct {
	solver     solver.Solver
	logger     logging.Logger
	pfbaFactor float64
}

type Option func(*Engine)

func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(l) }
}

func WithPFBAFactor(f float64) Option {
	return func(e *Engine) {
		if f >= 1 {
			e.pfbaFactor = f
		}
	}
}

// NewEngine builds an engine on s, or on the built-in simplex backend when s
// is nil.
func NewEngine(s solver.Solver, opts ...Option) *Engine {
	if s == nil {
		s = solver.NewSimplex()
	}
	e := &Engine{solver: s, logger: logging.Nop{}, pfbaFactor: DefaultPFBAFactor}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Solver() solver.Solver { return e.solver }

// Simulate runs req.Method on the model. Objective overrides are reverted
// before returning. An infeasible problem is not an error: the result carries
// status infeasible, zero growth and either the bound midpoints of the
// measured reactions or no ranges at all.
func (e *Engine) Simulate(ctx context.Context, m *metabolic.Model, req Request) (*Result, error) {
	if req.Method == "" {
		req.Method = FBA
	}
	if _, err := ParseMethod(string(req.Method)); err != nil {
		return nil, err
	}
	if req.BiomassID != "" {
		if _, ok := m.Reaction(req.BiomassID); !ok {
			return nil, fmt.Errorf("biomass reaction %s: %w", req.BiomassID, metabolic.ErrReactionNotFound)
		}
	}

	ctx, span := tracer.Start(ctx, "flux.Simulate", trace.WithAttributes(
		attribute.String("model.id", m.ID),
		attribute.String("simulation.method", string(req.Method)),
	))
	defer span.End()

	scope := m.Begin()
	defer scope.Close()
	if err := e.applyObjective(m, req); err != nil {
		return nil, err
	}

	res, err := e.run(ctx, m, req)
	if errors.Is(err, solver.ErrInfeasible) {
		e.logger.Warn("FLUX", "Simulation is infeasible", map[string]interface{}{
			"model_id": m.ID,
			"method":   req.Method,
		})
		span.SetAttributes(attribute.String("simulation.status", string(solver.Infeasible)))
		return degraded(m, req), nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("simulation.status", string(res.Status)),
		attribute.Float64("simulation.growth_rate", res.GrowthRate),
	)
	return res, nil
}

func (e *Engine) applyObjective(m *metabolic.Model, req Request) error {
	if req.ObjectiveID == "" && req.ObjectiveDirection == "" {
		return nil
	}
	coefficients, direction := m.Objective()
	if req.ObjectiveID != "" {
		coefficients = map[string]float64{req.ObjectiveID: 1}
	}
	if req.ObjectiveDirection != "" {
		direction = req.ObjectiveDirection
	}
	return m.SetObjective(coefficients, direction)
}

func (e *Engine) run(ctx context.Context, m *metabolic.Model, req Request) (*Result, error) {
	n := newNetwork(m)
	res := &Result{Method: req.Method, Status: solver.Optimal}
	var err error
	switch req.Method {
	case FBA:
		res.Fluxes, err = e.fba(ctx, m, n)
	case PFBA:
		res.Fluxes, err = e.pfba(ctx, m, n)
	case FVA, PFBAFVA:
		res.Ranges, err = e.fva(ctx, m, n, req.FVAReactions, req.Method == PFBAFVA)
	case MOMA, LMOMA:
		reference := req.Reference
		if reference == nil {
			if reference, err = e.pfba(ctx, m, n); err != nil {
				return nil, fmt.Errorf("computing reference distribution: %w", err)
			}
		}
		res.Fluxes, err = e.moma(ctx, n, reference, req.Method == LMOMA)
	}
	if err != nil {
		return nil, err
	}
	res.GrowthRate = growthRate(m, res, req.BiomassID)
	return res, nil
}

func growthRate(m *metabolic.Model, res *Result, biomassID string) float64 {
	if biomassID == "" {
		objective, _ := m.Objective()
		if len(objective) != 1 {
			return 0
		}
		for id := range objective {
			biomassID = id
		}
	}
	if res.Method.Ranged() {
		return res.Ranges[biomassID].Upper
	}
	return res.Fluxes[biomassID]
}

func (e *Engine) optimum(ctx context.Context, m *metabolic.Model, n *network) (*solver.Solution, error) {
	p := n.problem.Clone()
	p.Objective, p.Sense = n.objective(m)
	return e.solver.Solve(ctx, p)
}

func (e *Engine) fba(ctx context.Context, m *metabolic.Model, n *network) (map[string]float64, error) {
	sol, err := e.optimum(ctx, m, n)
	if err != nil {
		return nil, err
	}
	return n.fluxes(sol), nil
}

// atOptimum returns the network problem with the objective fixed at its
// optimal value.
func (e *Engine) atOptimum(ctx context.Context, m *metabolic.Model, n *network) (*solver.Problem, error) {
	sol, err := e.optimum(ctx, m, n)
	if err != nil {
		return nil, err
	}
	p := n.problem.Clone()
	terms, sense := n.objective(m)
	fixOptimum(p, terms, sense, sol.Objective)
	return p, nil
}

func (e *Engine) pfba(ctx context.Context, m *metabolic.Model, n *network) (map[string]float64, error) {
	p, err := e.atOptimum(ctx, m, n)
	if err != nil {
		return nil, err
	}
	p.Objective, p.Sense = totalFlux(p, n), solver.Minimize
	sol, err := e.solver.Solve(ctx, p)
	if err != nil {
		return nil, err
	}
	return n.fluxes(sol), nil
}

func (e *Engine) fva(ctx context.Context, m *metabolic.Model, n *network, subset []string, parsimonious bool) (map[string]Range, error) {
	ids := subset
	if len(ids) == 0 {
		ids = n.ids
	}
	for _, id := range ids {
		if _, ok := n.index[id]; !ok {
			return nil, fmt.Errorf("flux variability for %s: %w", id, metabolic.ErrReactionNotFound)
		}
	}

	p, err := e.atOptimum(ctx, m, n)
	if err != nil {
		return nil, err
	}
	if parsimonious {
		total := totalFlux(p, n)
		p.Objective, p.Sense = total, solver.Minimize
		sol, err := e.solver.Solve(ctx, p)
		if err != nil {
			return nil, err
		}
		p.AddConstraint(solver.Constraint{
			Name:  "total_flux",
			Terms: total,
			Lower: -solver.Inf,
			Upper: sol.Objective*e.pfbaFactor + optimumTolerance,
		})
	}

	out := make(map[string]Range, len(ids))
	for _, id := range ids {
		idx := n.index[id]
		p.Objective = []solver.Term{{Var: idx, Coef: 1}}

		p.Sense = solver.Minimize
		lo, err := e.solver.Solve(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("minimising %s: %w", id, err)
		}
		p.Sense = solver.Maximize
		hi, err := e.solver.Solve(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("maximising %s: %w", id, err)
		}
		out[id] = Range{Lower: lo.Values[idx], Upper: hi.Values[idx]}
	}
	return out, nil
}

// moma finds the feasible distribution closest to reference, by squared
// (MOMA) or absolute (lMOMA) distance over the reactions the reference names.
func (e *Engine) moma(ctx context.Context, n *network, reference map[string]float64, linear bool) (map[string]float64, error) {
	p := n.problem.Clone()
	p.Objective, p.Sense = nil, solver.Minimize

	ids := make([]string, 0, len(reference))
	for id := range reference {
		if _, ok := n.index[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		idx, target := n.index[id], reference[id]
		if !linear {
			p.Squared = append(p.Squared, solver.Squared{Var: idx, Weight: 1, Center: target})
			continue
		}
		d := p.AddVariable(solver.Variable{Name: "dist_" + id, Lower: 0, Upper: solver.Inf})
		p.AddConstraint(solver.Constraint{Terms: []solver.Term{{Var: d, Coef: 1}, {Var: idx, Coef: -1}}, Lower: -target, Upper: solver.Inf})
		p.AddConstraint(solver.Constraint{Terms: []solver.Term{{Var: d, Coef: 1}, {Var: idx, Coef: 1}}, Lower: target, Upper: solver.Inf})
		p.Objective = append(p.Objective, solver.Term{Var: d, Coef: 1})
	}
	sol, err := e.solver.Solve(ctx, p)
	if err != nil {
		return nil, err
	}
	return n.fluxes(sol), nil
}

func degraded(m *metabolic.Model, req Request) *Result {
	res := &Result{Method: req.Method, Status: solver.Infeasible}
	if req.Method.Ranged() {
		res.Ranges = map[string]Range{}
		return res
	}
	res.Fluxes = make(map[string]float64, len(req.MeasuredReactions))
	for _, id := range req.MeasuredReactions {
		if r, ok := m.Reaction(id); ok {
			res.Fluxes[id] = (r.LowerBound() + r.UpperBound()) / 2
		}
	}
	return res
}
