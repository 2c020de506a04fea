package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
)

const (
	fixedTolerance    = 1e-12
	pivotTolerance    = 1e-9
	feasibleTolerance = 1e-7
	integerTolerance  = 1e-9
)

// Simplex solves linear problems with a two-phase dense tableau simplex.
// Binary variables are handled by depth-first branch and bound and squared
// terms by tangent cutting planes on epigraph variables.
//
// The tableau holds (rows+1) x (columns+rows+1) float64 cells; MaxCells
// bounds that size so a genome-scale problem fails with ErrProblemTooLarge
// instead of exhausting memory. Inject another Solver for such models.
type Simplex struct {
	Tolerance    float64
	MaxNodes     int
	MaxCutRounds int
	MaxCells     int
}

func NewSimplex() *Simplex {
	return &Simplex{Tolerance: 1e-9, MaxNodes: 20000, MaxCutRounds: 200, MaxCells: 1 << 25}
}

func (s *Simplex) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	if len(p.Squared) > 0 {
		return s.solveSquared(ctx, p)
	}
	return s.solveMixed(ctx, p)
}

func validate(p *Problem) error {
	n := len(p.Variables)
	check := func(terms []Term) error {
		for _, t := range terms {
			if t.Var < 0 || t.Var >= n {
				return fmt.Errorf("solver: term references variable %d of %d", t.Var, n)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("solver: non-finite coefficient for variable %d", t.Var)
			}
		}
		return nil
	}
	if err := check(p.Objective); err != nil {
		return err
	}
	for _, c := range p.Constraints {
		if err := check(c.Terms); err != nil {
			return fmt.Errorf("constraint %s: %w", c.Name, err)
		}
	}
	for _, sq := range p.Squared {
		if sq.Var < 0 || sq.Var >= n || sq.Weight < 0 {
			return fmt.Errorf("solver: invalid squared term on variable %d", sq.Var)
		}
	}
	if len(p.Squared) > 0 && p.Sense == Maximize {
		return errors.New("solver: squared terms can only be minimised")
	}
	return nil
}

func (s *Simplex) solveSquared(ctx context.Context, p *Problem) (*Solution, error) {
	work := p.Clone()
	work.Squared = nil
	work.Sense = Minimize
	epigraph := make([]int, len(p.Squared))
	for i, sq := range p.Squared {
		if sq.Weight == 0 {
			epigraph[i] = -1
			continue
		}
		t := work.AddVariable(Variable{Name: "epigraph", Lower: 0, Upper: Inf})
		epigraph[i] = t
		work.Objective = append(work.Objective, Term{Var: t, Coef: sq.Weight})
		v := p.Variables[sq.Var]
		for _, x0 := range []float64{v.Lower, v.Upper} {
			if !math.IsInf(x0, 0) {
				work.AddConstraint(tangent(sq, t, x0))
			}
		}
	}

	var sol *Solution
	rounds := s.MaxCutRounds
	if rounds <= 0 {
		rounds = 1
	}
	for round := 0; round < rounds; round++ {
		var err error
		sol, err = s.solveMixed(ctx, work)
		if err != nil {
			return nil, err
		}
		gap := 0.0
		for i, sq := range p.Squared {
			if epigraph[i] < 0 {
				continue
			}
			x0 := sol.Values[sq.Var]
			d := x0 - sq.Center
			if under := d*d - sol.Values[epigraph[i]]; under > feasibleTolerance*(1+d*d) {
				gap += sq.Weight * under
				work.AddConstraint(tangent(sq, epigraph[i], x0))
			}
		}
		values := sol.Values[:len(p.Variables)]
		if gap <= 1e-7*(1+math.Abs(p.Evaluate(values))) {
			break
		}
	}
	values := append([]float64(nil), sol.Values[:len(p.Variables)]...)
	return &Solution{Status: Optimal, Objective: p.Evaluate(values), Values: values}, nil
}

// tangent returns t >= (x0-c)^2 + 2(x0-c)(x-x0).
func tangent(sq Squared, t int, x0 float64) Constraint {
	d := x0 - sq.Center
	return Constraint{
		Name:  "tangent",
		Terms: []Term{{Var: t, Coef: 1}, {Var: sq.Var, Coef: -2 * d}},
		Lower: d*d - 2*d*x0,
		Upper: Inf,
	}
}

func (s *Simplex) solveMixed(ctx context.Context, p *Problem) (*Solution, error) {
	var binaries []int
	for j, v := range p.Variables {
		if v.Binary {
			binaries = append(binaries, j)
		}
	}
	if len(binaries) == 0 {
		return s.solveLP(ctx, p)
	}

	work := p.Clone()
	for _, j := range binaries {
		v := &work.Variables[j]
		v.Lower = math.Max(0, math.Ceil(v.Lower-integerTolerance))
		v.Upper = math.Min(1, math.Floor(v.Upper+integerTolerance))
	}
	sign := 1.0
	if p.Sense == Maximize {
		sign = -1
	}

	var best *Solution
	bestValue := math.Inf(1)
	nodes := 0
	var branch func() error
	branch = func() error {
		nodes++
		if s.MaxNodes > 0 && nodes > s.MaxNodes {
			return ErrNodeLimit
		}
		sol, err := s.solveLP(ctx, work)
		if errors.Is(err, ErrInfeasible) {
			return nil
		}
		if err != nil {
			return err
		}
		value := sign * sol.Objective
		if value >= bestValue-1e-9*(1+math.Abs(bestValue)) {
			return nil
		}
		pick, worst := -1, integerTolerance
		for _, j := range binaries {
			x := sol.Values[j]
			if f := math.Abs(x - math.Round(x)); f > worst {
				pick, worst = j, f
			}
		}
		if pick < 0 {
			for _, j := range binaries {
				sol.Values[j] = math.Round(sol.Values[j])
			}
			best, bestValue = sol, value
			return nil
		}
		lower, upper := work.Variables[pick].Lower, work.Variables[pick].Upper
		first := math.Round(sol.Values[pick])
		for _, side := range []float64{first, 1 - first} {
			if side < lower || side > upper {
				continue
			}
			work.Variables[pick].Lower, work.Variables[pick].Upper = side, side
			if err := branch(); err != nil {
				work.Variables[pick].Lower, work.Variables[pick].Upper = lower, upper
				return err
			}
		}
		work.Variables[pick].Lower, work.Variables[pick].Upper = lower, upper
		return nil
	}
	if err := branch(); err != nil {
		return nil, err
	}
	if best == nil {
		return nil, ErrInfeasible
	}
	return best, nil
}

// solveLP ignores integrality.
func (s *Simplex) solveLP(ctx context.Context, p *Problem) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sf, err := newStandardForm(p)
	if err != nil {
		return nil, err
	}
	y, err := sf.solve(s.Tolerance, s.MaxCells)
	if err != nil {
		return nil, err
	}
	values := sf.unmap(y)
	return &Solution{Status: Optimal, Objective: p.Evaluate(values), Values: values}, nil
}

// varMap expresses an original variable as offset + y[pos] - y[neg].
type varMap struct {
	offset float64
	pos    int
	neg    int
}

// standardForm is min c'y subject to Ay = b, y >= 0.
type standardForm struct {
	vars []varMap
	cost []float64
	rows []map[int]float64
	rhs  []float64
}

func newStandardForm(p *Problem) (*standardForm, error) {
	sf := &standardForm{vars: make([]varMap, len(p.Variables))}
	sign := 1.0
	if p.Sense == Maximize {
		sign = -1
	}
	c := make([]float64, len(p.Variables))
	for _, t := range p.Objective {
		c[t.Var] += sign * t.Coef
	}

	for j, v := range p.Variables {
		lo, hi := v.Lower, v.Upper
		if math.IsNaN(lo) || math.IsNaN(hi) {
			return nil, fmt.Errorf("solver: variable %s has NaN bound", v.Name)
		}
		if lo > hi+fixedTolerance || math.IsInf(lo, 1) || math.IsInf(hi, -1) {
			return nil, fmt.Errorf("variable %s bounds [%g, %g]: %w", v.Name, lo, hi, ErrInfeasible)
		}
		switch {
		case !math.IsInf(lo, -1) && !math.IsInf(hi, 1) && hi-lo <= fixedTolerance:
			sf.vars[j] = varMap{offset: lo, pos: -1, neg: -1}
		case !math.IsInf(lo, -1):
			col := sf.column(c[j])
			sf.vars[j] = varMap{offset: lo, pos: col, neg: -1}
			if !math.IsInf(hi, 1) {
				slack := sf.column(0)
				sf.addRow(map[int]float64{col: 1, slack: 1}, hi-lo)
			}
		case !math.IsInf(hi, 1):
			col := sf.column(-c[j])
			sf.vars[j] = varMap{offset: hi, pos: -1, neg: col}
		default:
			pos := sf.column(c[j])
			neg := sf.column(-c[j])
			sf.vars[j] = varMap{pos: pos, neg: neg}
		}
	}

	for _, con := range p.Constraints {
		if con.Lower > con.Upper+fixedTolerance {
			return nil, fmt.Errorf("constraint %s: %w", con.Name, ErrInfeasible)
		}
		row := map[int]float64{}
		shift := 0.0
		for _, t := range con.Terms {
			vm := sf.vars[t.Var]
			shift += t.Coef * vm.offset
			if vm.pos >= 0 {
				row[vm.pos] += t.Coef
			}
			if vm.neg >= 0 {
				row[vm.neg] -= t.Coef
			}
		}
		for k, v := range row {
			if v == 0 {
				delete(row, k)
			}
		}
		lo, hi := con.Lower-shift, con.Upper-shift
		if len(row) == 0 {
			if lo > feasibleTolerance*(1+math.Abs(shift)) || hi < -feasibleTolerance*(1+math.Abs(shift)) {
				return nil, fmt.Errorf("constraint %s: %w", con.Name, ErrInfeasible)
			}
			continue
		}
		if !math.IsInf(lo, -1) && !math.IsInf(hi, 1) && hi-lo <= fixedTolerance {
			sf.addRow(row, lo)
			continue
		}
		if !math.IsInf(hi, 1) {
			r := cloneRow(row)
			r[sf.column(0)] = 1
			sf.addRow(r, hi)
		}
		if !math.IsInf(lo, -1) {
			r := cloneRow(row)
			r[sf.column(0)] = -1
			sf.addRow(r, lo)
		}
	}
	return sf, nil
}

func (sf *standardForm) column(cost float64) int {
	sf.cost = append(sf.cost, cost)
	return len(sf.cost) - 1
}

func (sf *standardForm) addRow(row map[int]float64, rhs float64) {
	sf.rows = append(sf.rows, row)
	sf.rhs = append(sf.rhs, rhs)
}

func (sf *standardForm) solve(tol float64, maxCells int) ([]float64, error) {
	for i := range sf.rows {
		if sf.rhs[i] < 0 {
			for k, v := range sf.rows[i] {
				sf.rows[i][k] = -v
			}
			sf.rhs[i] = -sf.rhs[i]
		}
	}
	rows, rhs, err := independentRows(sf.rows, sf.rhs)
	if err != nil {
		return nil, err
	}

	y := make([]float64, len(sf.cost))
	used := make([]bool, len(sf.cost))
	for _, row := range rows {
		for k := range row {
			used[k] = true
		}
	}
	var active []int
	position := make(map[int]int, len(sf.cost))
	for col, inUse := range used {
		if !inUse {
			if sf.cost[col] < 0 {
				return nil, ErrUnbounded
			}
			continue
		}
		position[col] = len(active)
		active = append(active, col)
	}
	if len(rows) == 0 {
		return y, nil
	}

	cost := make([]float64, len(active))
	for i, col := range active {
		cost[i] = sf.cost[col]
	}
	remapped := make([]map[int]float64, len(rows))
	for i, row := range rows {
		r := make(map[int]float64, len(row))
		for k, v := range row {
			r[position[k]] = v
		}
		remapped[i] = r
	}
	x, err := solveTableau(remapped, rhs, cost, tol, maxCells)
	if err != nil {
		return nil, err
	}
	for i, col := range active {
		y[col] = x[i]
	}
	return y, nil
}

func (sf *standardForm) unmap(y []float64) []float64 {
	values := make([]float64, len(sf.vars))
	for j, vm := range sf.vars {
		value := vm.offset
		if vm.pos >= 0 {
			value += y[vm.pos]
		}
		if vm.neg >= 0 {
			value -= y[vm.neg]
		}
		values[j] = value
	}
	return values
}

// independentRows drops rows that are linear combinations of earlier rows,
// reporting infeasibility when a dropped row disagrees on its right-hand side.
func independentRows(rows []map[int]float64, rhs []float64) ([]map[int]float64, []float64, error) {
	type reduced struct {
		coef  map[int]float64
		rhs   float64
		pivot int
	}
	var basis []reduced
	var keptRows []map[int]float64
	var keptRHS []float64
	for i, row := range rows {
		scale := 1.0
		for _, v := range row {
			scale = math.Max(scale, math.Abs(v))
		}
		r := cloneRow(row)
		b := rhs[i]
		for _, p := range basis {
			f, ok := r[p.pivot]
			if !ok {
				continue
			}
			factor := f / p.coef[p.pivot]
			for k, v := range p.coef {
				next := r[k] - factor*v
				if math.Abs(next) <= fixedTolerance*scale {
					delete(r, k)
				} else {
					r[k] = next
				}
			}
			delete(r, p.pivot)
			b -= factor * p.rhs
		}
		pivot, largest := -1, 0.0
		for k, v := range r {
			a := math.Abs(v)
			if a > largest || (a == largest && k < pivot) {
				pivot, largest = k, a
			}
		}
		if largest <= pivotTolerance*scale {
			if math.Abs(b) > feasibleTolerance*(1+math.Abs(rhs[i])) {
				return nil, nil, ErrInfeasible
			}
			continue
		}
		basis = append(basis, reduced{coef: r, rhs: b, pivot: pivot})
		keptRows = append(keptRows, row)
		keptRHS = append(keptRHS, rhs[i])
	}
	return keptRows, keptRHS, nil
}

func cloneRow(row map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
