package flux

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/solver"
)

const (
	DefaultPhasePlanePoints = 20
	ObjectiveLowerBound     = "objective_lower_bound"
	ObjectiveUpperBound     = "objective_upper_bound"
)

// PhasePlane scans the feasible range of the exchange reaction and reports,
// at each grid point, the minimum and maximum of the model objective. Points
// where the objective cannot be optimised are nil.
func (e *Engine) PhasePlane(ctx context.Context, m *metabolic.Model, exchangeID string, points int) (map[string][]*float64, error) {
	if points < 2 {
		points = DefaultPhasePlanePoints
	}
	n := newNetwork(m)
	idx, ok := n.index[exchangeID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", exchangeID, metabolic.ErrReactionNotFound)
	}

	ctx, span := tracer.Start(ctx, "flux.PhasePlane")
	defer span.End()

	p := n.problem.Clone()
	p.Objective = []solver.Term{{Var: idx, Coef: 1}}
	p.Sense = solver.Minimize
	lo, err := e.solver.Solve(ctx, p)
	if err != nil {
		return nil, err
	}
	p.Sense = solver.Maximize
	hi, err := e.solver.Solve(ctx, p)
	if err != nil {
		return nil, err
	}

	terms, _ := n.objective(m)
	grid := linspace(lo.Values[idx], hi.Values[idx], points)
	out := map[string][]*float64{
		exchangeID:          make([]*float64, points),
		ObjectiveLowerBound: make([]*float64, points),
		ObjectiveUpperBound: make([]*float64, points),
	}
	for i, value := range grid {
		value := value
		out[exchangeID][i] = &value

		q := p.Clone()
		q.Variables[idx].Lower, q.Variables[idx].Upper = value, value
		q.Objective = terms
		for _, bound := range []struct {
			key   string
			sense solver.Sense
		}{{ObjectiveLowerBound, solver.Minimize}, {ObjectiveUpperBound, solver.Maximize}} {
			q.Sense = bound.sense
			sol, err := e.solver.Solve(ctx, q)
			switch {
			case errors.Is(err, solver.ErrInfeasible), errors.Is(err, solver.ErrUnbounded):
				continue
			case err != nil:
				return nil, err
			}
			v := sol.Objective
			if !math.IsNaN(v) {
				out[bound.key][i] = &v
			}
		}
	}
	return out, nil
}

// ExchangeFinder locates the exchange reaction of an external metabolite.
type ExchangeFinder interface {
	FindExchange(ctx context.Context, m *metabolic.Model, id, namespace string) (*metabolic.Reaction, error)
}

// TheoreticalYield computes the phase plane of the product "<namespace>:<id>".
// An empty map is returned when the product has no exchange in the model.
func (e *Engine) TheoreticalYield(ctx context.Context, m *metabolic.Model, finder ExchangeFinder, product string, points int) (map[string][]*float64, error) {
	namespace, id, ok := strings.Cut(product, ":")
	if !ok {
		return nil, fmt.Errorf("product %q must be written <namespace>:<id>", product)
	}
	exchange, err := finder.FindExchange(ctx, m, id, namespace)
	if err != nil {
		e.logger.Info("FLUX", "No exchange for product", map[string]interface{}{
			"model_id": m.ID,
			"product":  product,
			"reason":   err.Error(),
		})
		return map[string][]*float64{}, nil
	}
	return e.PhasePlane(ctx, m, exchange.ID, points)
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	out[n-1] = hi
	return out
}
