/*
   elasticmv - Elastic coded distributed matrix-vector multiplication
   Copyright (C) 2017  The elasticmv Authors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package linalg

import (
	"math"

	"github.com/pkg/errors"
)

// PivotTolerance is the smallest pivot magnitude accepted during
// decomposition, relative to the largest cell of the input matrix.
const PivotTolerance = 1e-12

// LU is an in-place LU decomposition with partial pivoting, PA = LU. The unit
// lower triangle L and the upper triangle U share one cell array.
type LU struct {
	n     int
	lu    []float64
	pivot []int
}

// Decompose factors the square matrix m.
func Decompose(m *Matrix) (*LU, error) {
	if m.rows != m.columns {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"cannot decompose non-square %dx%d matrix", m.rows, m.columns)
	}
	n := m.rows
	f := &LU{
		n:     n,
		lu:    make([]float64, n*n),
		pivot: make([]int, n),
	}
	copy(f.lu, m.cells)
	for i := range f.pivot {
		f.pivot[i] = i
	}

	tol := PivotTolerance * m.MaxNorm()
	for j := 0; j < n; j++ {
		p := j
		best := math.Abs(f.lu[j*n+j])
		for i := j + 1; i < n; i++ {
			if a := math.Abs(f.lu[i*n+j]); a > best {
				p, best = i, a
			}
		}
		if best <= tol {
			return nil, errors.Wrapf(ErrSingularMatrix, "no usable pivot in column %d", j)
		}
		if p != j {
			f.swapRows(p, j)
		}
		f.eliminate(j)
	}
	return f, nil
}

func (f *LU) swapRows(a, b int) {
	n := f.n
	for k := 0; k < n; k++ {
		f.lu[a*n+k], f.lu[b*n+k] = f.lu[b*n+k], f.lu[a*n+k]
	}
	f.pivot[a], f.pivot[b] = f.pivot[b], f.pivot[a]
}

func (f *LU) eliminate(j int) {
	n := f.n
	pv := f.lu[j*n+j]
	for i := j + 1; i < n; i++ {
		l := f.lu[i*n+j] / pv
		f.lu[i*n+j] = l
		if l == 0 {
			continue
		}
		for k := j + 1; k < n; k++ {
			f.lu[i*n+k] -= l * f.lu[j*n+k]
		}
	}
}

// solveInto solves LUx = Pb for the unit basis column col, writing x into
// column col of dst.
func (f *LU) solveInto(dst *Matrix, col int, y []float64) {
	n := f.n
	for i := 0; i < n; i++ {
		var sum float64
		if f.pivot[i] == col {
			sum = 1
		}
		for k := 0; k < i; k++ {
			sum -= f.lu[i*n+k] * y[k]
		}
		y[i] = sum
	}
	for i := n - 1; i >= 0; i-- {
		sum := y[i]
		for k := i + 1; k < n; k++ {
			sum -= f.lu[i*n+k] * dst.cells[k*n+col]
		}
		dst.cells[i*n+col] = sum / f.lu[i*n+i]
	}
}

// Inverse returns the inverse of the decomposed matrix.
func (f *LU) Inverse() *Matrix {
	inv := NewMatrix(f.n, f.n)
	y := make([]float64, f.n)
	for col := 0; col < f.n; col++ {
		f.solveInto(inv, col, y)
	}
	return inv
}

// Inverse returns the inverse of a square matrix.
func (m *Matrix) Inverse() (*Matrix, error) {
	f, err := Decompose(m)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return f.Inverse(), nil
}
