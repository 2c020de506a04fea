package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// degenerateStreak is the number of consecutive pivots without progress
// after which entering columns are chosen by Bland's rule.
const degenerateStreak = 50

// tableau is a dense simplex tableau for min c'y, Ay = b, y >= 0 with b >= 0.
// Columns [0, n) are the structural columns, [n, n+m) one artificial per row
// and the last column holds the right-hand side. Row m is the reduced-cost
// row; its last entry is minus the objective value.
type tableau struct {
	t     *mat.Dense
	basis []int
	m, n  int
	tol   float64
}

func newTableau(rows []map[int]float64, rhs []float64, n int, tol float64) *tableau {
	m := len(rows)
	tb := &tableau{
		t:     mat.NewDense(m+1, n+m+1, nil),
		basis: make([]int, m),
		m:     m,
		n:     n,
		tol:   tol,
	}
	for i, row := range rows {
		r := tb.t.RawRowView(i)
		for k, v := range row {
			r[k] = v
		}
		r[n+i] = 1
		r[n+m] = rhs[i]
		tb.basis[i] = n + i
	}
	return tb
}

func (tb *tableau) rhsCol() int { return tb.n + tb.m }

// price fills the reduced-cost row for cost vector c over all columns.
func (tb *tableau) price(c []float64) {
	obj := tb.t.RawRowView(tb.m)
	copy(obj, c)
	obj[tb.rhsCol()] = 0
	for i, b := range tb.basis {
		cb := c[b]
		if cb == 0 {
			continue
		}
		r := tb.t.RawRowView(i)
		for j := range obj {
			obj[j] -= cb * r[j]
		}
	}
}

func (tb *tableau) pivot(row, col int) {
	r := tb.t.RawRowView(row)
	inv := 1 / r[col]
	for j := range r {
		r[j] *= inv
	}
	r[col] = 1
	for i := 0; i <= tb.m; i++ {
		if i == row {
			continue
		}
		other := tb.t.RawRowView(i)
		f := other[col]
		if f == 0 {
			continue
		}
		for j, v := range r {
			if v != 0 {
				other[j] -= f * v
			}
		}
		other[col] = 0
		if i < tb.m && other[tb.rhsCol()] < 0 && other[tb.rhsCol()] > -feasibleTolerance {
			other[tb.rhsCol()] = 0
		}
	}
	tb.basis[row] = col
}

// run pivots until no column in [0, limit) has a negative reduced cost.
func (tb *tableau) run(limit, maxIter int) error {
	obj := tb.t.RawRowView(tb.m)
	rhs := tb.rhsCol()
	streak := 0
	for iter := 0; iter < maxIter; iter++ {
		bland := streak >= degenerateStreak
		col, best := -1, -tb.tol
		for j := 0; j < limit; j++ {
			if obj[j] < best {
				col, best = j, obj[j]
				if bland {
					break
				}
			}
		}
		if col < 0 {
			return nil
		}

		row, ratio, mag := -1, math.Inf(1), 0.0
		for i := 0; i < tb.m; i++ {
			a := tb.t.At(i, col)
			if a <= pivotTolerance {
				continue
			}
			q := math.Max(tb.t.At(i, rhs), 0) / a
			switch {
			case q < ratio-pivotTolerance:
				row, ratio, mag = i, q, a
			case q <= ratio+pivotTolerance:
				if bland && tb.basis[i] < tb.basis[row] || !bland && a > mag {
					row, ratio, mag = i, math.Min(q, ratio), a
				}
			}
		}
		if row < 0 {
			return ErrUnbounded
		}
		if ratio <= pivotTolerance {
			streak++
		} else {
			streak = 0
		}
		tb.pivot(row, col)
	}
	return fmt.Errorf("solver: no optimum after %d pivots: %w", maxIter, ErrIterationLimit)
}

// solveTableau runs phase 1 on the artificial basis, drives the artificials
// out of the basis and optimizes cost over the structural columns.
func solveTableau(rows []map[int]float64, rhs []float64, cost []float64, tol float64, maxCells int) ([]float64, error) {
	m, n := len(rows), len(cost)
	if maxCells > 0 && (m+1)*(n+m+1) > maxCells {
		return nil, fmt.Errorf("solver: %d rows by %d columns: %w", m, n, ErrProblemTooLarge)
	}
	tb := newTableau(rows, rhs, n, tol)
	maxIter := 50 * (m + n + 1)

	phase1 := make([]float64, n+m+1)
	for i := 0; i < m; i++ {
		phase1[n+i] = 1
	}
	tb.price(phase1)
	if err := tb.run(n, maxIter); err != nil {
		if err == ErrUnbounded {
			return nil, fmt.Errorf("solver: unbounded phase 1: %w", ErrInfeasible)
		}
		return nil, err
	}
	total := 1.0
	for _, b := range rhs {
		total += math.Abs(b)
	}
	if infeasibility := -tb.t.At(m, tb.rhsCol()); infeasibility > feasibleTolerance*total {
		return nil, ErrInfeasible
	}

	for i := 0; i < m; i++ {
		if tb.basis[i] < n {
			continue
		}
		col, mag := -1, pivotTolerance
		for j := 0; j < n; j++ {
			if a := math.Abs(tb.t.At(i, j)); a > mag {
				col, mag = j, a
			}
		}
		// A row without structural entries is redundant; its artificial stays
		// basic at zero and never leaves.
		if col >= 0 {
			tb.pivot(i, col)
		}
	}

	phase2 := make([]float64, n+m+1)
	copy(phase2, cost)
	tb.price(phase2)
	if err := tb.run(n, maxIter); err != nil {
		return nil, err
	}

	y := make([]float64, n)
	for i, b := range tb.basis {
		if b < n {
			y[b] = math.Max(tb.t.At(i, tb.rhsCol()), 0)
		}
	}
	return y, nil
}
