package flux

import (
	"math"
	"sort"

	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/solver"
)

// network is the steady-state LP of a model: one variable per reaction and
// one mass-balance row per metabolite, in model order.
type network struct {
	problem *solver.Problem
	index   map[string]int
	ids     []string
}

func newNetwork(m *metabolic.Model) *network {
	n := &network{
		problem: &solver.Problem{Sense: solver.Maximize},
		index:   map[string]int{},
	}
	rows := map[string][]solver.Term{}
	for _, r := range m.Reactions() {
		lower, upper := r.Bounds()
		idx := n.problem.AddVariable(solver.Variable{Name: r.ID, Lower: lower, Upper: upper})
		n.index[r.ID] = idx
		n.ids = append(n.ids, r.ID)
		for _, met := range r.MetaboliteIDs() {
			rows[met] = append(rows[met], solver.Term{Var: idx, Coef: r.Coefficient(met)})
		}
	}
	for _, met := range m.Metabolites() {
		terms, ok := rows[met.ID]
		if !ok {
			continue
		}
		n.problem.AddConstraint(solver.Constraint{Name: met.ID, Terms: terms, Lower: 0, Upper: 0})
	}
	return n
}

// objective translates the model objective into solver terms.
func (n *network) objective(m *metabolic.Model) ([]solver.Term, solver.Sense) {
	coefficients, direction := m.Objective()
	ids := make([]string, 0, len(coefficients))
	for id := range coefficients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	terms := make([]solver.Term, 0, len(ids))
	for _, id := range ids {
		if idx, ok := n.index[id]; ok {
			terms = append(terms, solver.Term{Var: idx, Coef: coefficients[id]})
		}
	}
	if direction == metabolic.Minimize {
		return terms, solver.Minimize
	}
	return terms, solver.Maximize
}

func (n *network) fluxes(sol *solver.Solution) map[string]float64 {
	out := make(map[string]float64, len(n.ids))
	for i, id := range n.ids {
		out[id] = sol.Values[i]
	}
	return out
}

// fixOptimum constrains the objective expression to its optimal value.
func fixOptimum(p *solver.Problem, terms []solver.Term, sense solver.Sense, value float64) {
	tol := optimumTolerance * (1 + math.Abs(value))
	c := solver.Constraint{Name: "optimum", Terms: append([]solver.Term(nil), terms...), Lower: -solver.Inf, Upper: solver.Inf}
	if sense == solver.Maximize {
		c.Lower = value - tol
	} else {
		c.Upper = value + tol
	}
	p.AddConstraint(c)
}

// totalFlux returns terms whose sum is the total absolute flux of the network
// reactions. Reactions that can run both ways get an auxiliary variable
// bounded below by v and -v.
func totalFlux(p *solver.Problem, n *network) []solver.Term {
	terms := make([]solver.Term, 0, len(n.ids))
	for i := range n.ids {
		v := p.Variables[i]
		switch {
		case v.Lower >= 0:
			terms = append(terms, solver.Term{Var: i, Coef: 1})
		case v.Upper <= 0:
			terms = append(terms, solver.Term{Var: i, Coef: -1})
		default:
			t := p.AddVariable(solver.Variable{Name: "abs_" + v.Name, Lower: 0, Upper: solver.Inf})
			p.AddConstraint(solver.Constraint{Terms: []solver.Term{{Var: t, Coef: 1}, {Var: i, Coef: -1}}, Lower: 0, Upper: solver.Inf})
			p.AddConstraint(solver.Constraint{Terms: []solver.Term{{Var: t, Coef: 1}, {Var: i, Coef: 1}}, Lower: 0, Upper: solver.Inf})
			terms = append(terms, solver.Term{Var: t, Coef: 1})
		}
	}
	return terms
}

// Problem returns the steady-state LP of the model with the model objective
// attached, and the variable index of every reaction.
func Problem(m *metabolic.Model) (*solver.Problem, map[string]int) {
	n := newNetwork(m)
	n.problem.Objective, n.problem.Sense = n.objective(m)
	return n.problem, n.index
}
