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

// Package linalg provides the dense float64 matrix and vector operations
// needed to encode, compute and decode coded matrix-vector products.
package linalg

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

var (
	ErrDimensionMismatch = fmt.Errorf("dimension mismatch")
	ErrSingularMatrix    = fmt.Errorf("matrix is singular")
	ErrMalformedPayload  = fmt.Errorf("malformed payload")
)

// Matrix represents a rectangular, row-major array of float64 values.
type Matrix struct {
	rows, columns int
	cells         []float64
}

// NewMatrix returns a new zero-valued Matrix of the given dimensions.
func NewMatrix(rows, columns int) *Matrix {
	return &Matrix{
		rows:    rows,
		columns: columns,
		cells:   make([]float64, rows*columns),
	}
}

// NewMatrixFrom returns a new Matrix filled row by row from flat.
func NewMatrixFrom(rows, columns int, flat []float64) (*Matrix, error) {
	if len(flat) != rows*columns {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"cannot fill %dx%d matrix from %d values", rows, columns, len(flat))
	}
	m := NewMatrix(rows, columns)
	copy(m.cells, flat)
	return m, nil
}

// NewRandomMatrix returns a Matrix of values drawn uniformly from [lo, hi).
func NewRandomMatrix(rows, columns int, lo, hi float64, rng *rand.Rand) *Matrix {
	m := NewMatrix(rows, columns)
	for i := range m.cells {
		m.cells[i] = lo + rng.Float64()*(hi-lo)
	}
	return m
}

// NewConstantMatrix returns a Matrix with every cell set to x.
func NewConstantMatrix(rows, columns int, x float64) *Matrix {
	m := NewMatrix(rows, columns)
	for i := range m.cells {
		m.cells[i] = x
	}
	return m
}

// Identity returns the n×n identity matrix.
func Identity(n int) *Matrix {
	m := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		m.cells[i*n+i] = 1
	}
	return m
}

func (m *Matrix) Rows() int    { return m.rows }
func (m *Matrix) Columns() int { return m.columns }

// Get returns the value at the given (row, column) location.
func (m *Matrix) Get(i, j int) float64 {
	return m.cells[i*m.columns+j]
}

// Set sets the value at the given (row, column) location.
func (m *Matrix) Set(i, j int, x float64) {
	m.cells[i*m.columns+j] = x
}

func (m *Matrix) rowSlice(i int) []float64 {
	start := i * m.columns
	return m.cells[start : start+m.columns]
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) Vector {
	v := make(Vector, m.columns)
	copy(v, m.rowSlice(i))
	return v
}

// Flatten returns a copy of the cells in row-major order.
func (m *Matrix) Flatten() Vector {
	v := make(Vector, len(m.cells))
	copy(v, m.cells)
	return v
}

// Copy returns a deep copy of the matrix.
func (m *Matrix) Copy() *Matrix {
	n := NewMatrix(m.rows, m.columns)
	copy(n.cells, m.cells)
	return n
}

// SetRow overwrites row i with v.
func (m *Matrix) SetRow(i int, v Vector) error {
	if len(v) != m.columns {
		return errors.Wrapf(ErrDimensionMismatch,
			"row of length %d does not fit %d columns", len(v), m.columns)
	}
	if i < 0 || i >= m.rows {
		return errors.Wrapf(ErrDimensionMismatch, "row %d out of range [0,%d)", i, m.rows)
	}
	copy(m.rowSlice(i), v)
	return nil
}

// SetRowFrom overwrites row i with row srcRow of src.
func (m *Matrix) SetRowFrom(i int, src *Matrix, srcRow int) error {
	if src.columns != m.columns {
		return errors.Wrapf(ErrDimensionMismatch,
			"source has %d columns, destination has %d", src.columns, m.columns)
	}
	if srcRow < 0 || srcRow >= src.rows {
		return errors.Wrapf(ErrDimensionMismatch, "source row %d out of range [0,%d)", srcRow, src.rows)
	}
	return m.SetRow(i, src.rowSlice(srcRow))
}

// SubRow returns a copy of length consecutive values of row i starting at
// column start. Requests past the end of the row are an error, never clamped.
func (m *Matrix) SubRow(i, start, length int) (Vector, error) {
	if i < 0 || i >= m.rows {
		return nil, errors.Wrapf(ErrDimensionMismatch, "row %d out of range [0,%d)", i, m.rows)
	}
	if start < 0 || length < 0 || start+length > m.columns {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"sub-row [%d,%d) exceeds %d columns", start, start+length, m.columns)
	}
	v := make(Vector, length)
	copy(v, m.cells[i*m.columns+start:])
	return v, nil
}

// Mul returns the matrix product m × other.
func (m *Matrix) Mul(other *Matrix) (*Matrix, error) {
	if m.columns != other.rows {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"cannot multiply %dx%d by %dx%d", m.rows, m.columns, other.rows, other.columns)
	}
	prod := NewMatrix(m.rows, other.columns)
	for i := 0; i < m.rows; i++ {
		row := m.rowSlice(i)
		out := prod.rowSlice(i)
		for k, a := range row {
			if a == 0 {
				continue
			}
			for j, b := range other.rowSlice(k) {
				out[j] += a * b
			}
		}
	}
	return prod, nil
}

// MulSelectedRows multiplies count rows against v, starting at row start and
// wrapping cyclically around the row count.
func (m *Matrix) MulSelectedRows(v Vector, start, count int) (Vector, error) {
	if len(v) != m.columns {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"vector of length %d against %d columns", len(v), m.columns)
	}
	if m.rows == 0 {
		return nil, errors.Wrap(ErrDimensionMismatch, "matrix has no rows")
	}
	prod := make(Vector, count)
	for i := 0; i < count; i++ {
		r := (start + i) % m.rows
		if r < 0 {
			r += m.rows
		}
		prod[i] = dot(m.rowSlice(r), v)
	}
	return prod, nil
}

// MaxNorm returns the largest absolute cell value.
func (m *Matrix) MaxNorm() float64 {
	var norm float64
	for _, x := range m.cells {
		if a := math.Abs(x); a > norm {
			norm = a
		}
	}
	return norm
}

// ApproxEqual reports whether a and b have equal dimensions and every pair of
// cells differs by at most tol.
func ApproxEqual(a, b *Matrix, tol float64) bool {
	if a.rows != b.rows || a.columns != b.columns {
		return false
	}
	for i := range a.cells {
		if math.Abs(a.cells[i]-b.cells[i]) > tol {
			return false
		}
	}
	return true
}

// String returns a string representation of the matrix.
func (m *Matrix) String() string {
	buf := bytes.NewBuffer(nil)
	for row := 0; row < m.rows; row++ {
		fmt.Fprintf(buf, "| ")
		for col := 0; col < m.columns; col++ {
			fmt.Fprintf(buf, "%v ", m.Get(row, col))
		}
		fmt.Fprintf(buf, "|\n")
	}
	return buf.String()
}
