// Package solver defines the optimization problem handed to a solver backend
// and ships a default simplex backend built on gonum matrices.
package solver

import (
	"context"
	"errors"
	"math"
)

var (
	ErrInfeasible = errors.New("optimization problem is infeasible")
	ErrUnbounded  = errors.New("optimization problem is unbounded")
	ErrNodeLimit  = errors.New("branch and bound node limit reached")

	ErrIterationLimit  = errors.New("simplex iteration limit reached")
	ErrProblemTooLarge = errors.New("problem exceeds the solver size limit")
)

type Sense string

const (
	Minimize Sense = "min"
	Maximize Sense = "max"
)

// Inf is used for absent bounds.
var Inf = math.Inf(1)

type Variable struct {
	Name   string
	Lower  float64
	Upper  float64
	Binary bool
}

type Term struct {
	Var  int
	Coef float64
}

// Constraint bounds a linear expression: Lower <= sum(terms) <= Upper.
// Equal bounds make an equality.
type Constraint struct {
	Name  string
	Terms []Term
	Lower float64
	Upper float64
}

// Squared adds Weight*(x[Var]-Center)^2 to a minimised objective.
type Squared struct {
	Var    int
	Weight float64
	Center float64
}

type Problem struct {
	Variables   []Variable
	Constraints []Constraint
	Objective   []Term
	Squared     []Squared
	Sense       Sense
}

// AddVariable appends a variable and returns its index.
func (p *Problem) AddVariable(v Variable) int {
	p.Variables = append(p.Variables, v)
	return len(p.Variables) - 1
}

func (p *Problem) AddConstraint(c Constraint) {
	p.Constraints = append(p.Constraints, c)
}

// Clone copies the problem so callers can add constraints without touching
// the original.
func (p *Problem) Clone() *Problem {
	out := &Problem{
		Variables:   append([]Variable(nil), p.Variables...),
		Constraints: make([]Constraint, len(p.Constraints)),
		Objective:   append([]Term(nil), p.Objective...),
		Squared:     append([]Squared(nil), p.Squared...),
		Sense:       p.Sense,
	}
	for i, c := range p.Constraints {
		c.Terms = append([]Term(nil), c.Terms...)
		out.Constraints[i] = c
	}
	return out
}

// Evaluate returns the objective value of x.
func (p *Problem) Evaluate(x []float64) float64 {
	total := 0.0
	for _, t := range p.Objective {
		total += t.Coef * x[t.Var]
	}
	for _, s := range p.Squared {
		d := x[s.Var] - s.Center
		total += s.Weight * d * d
	}
	return total
}

type Status string

const (
	Optimal    Status = "optimal"
	Infeasible Status = "infeasible"
	Unbounded  Status = "unbounded"
)

type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
}

// Solver is the optimization backend. Solve returns an error wrapping
// ErrInfeasible or ErrUnbounded when no optimum exists.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}
