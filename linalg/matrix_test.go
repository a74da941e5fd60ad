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
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	gc "gopkg.in/check.v1"
)

func Test(t *testing.T) { gc.TestingT(t) }

type MatrixSuite struct{}

var _ = gc.Suite(&MatrixSuite{})

const TEST_MATRIX_SIZE = 5

func mustMatrix(c *gc.C, rows, columns int, flat ...float64) *Matrix {
	m, err := NewMatrixFrom(rows, columns, flat)
	c.Assert(err, gc.IsNil)
	return m
}

func (s *MatrixSuite) TestMatrixPutGet(c *gc.C) {
	m := NewConstantMatrix(TEST_MATRIX_SIZE, TEST_MATRIX_SIZE, 23)
	m.Set(2, 3, 24)
	n := 0
	for i := 0; i < TEST_MATRIX_SIZE; i++ {
		for j := 0; j < TEST_MATRIX_SIZE; j++ {
			n++
			if i == 2 && j == 3 {
				c.Assert(m.Get(i, j), gc.Equals, float64(24))
			} else {
				c.Assert(m.Get(i, j), gc.Equals, float64(23))
			}
		}
	}
	c.Assert(n, gc.Equals, 25)
}

func (s *MatrixSuite) TestNewMatrixFromMismatch(c *gc.C) {
	_, err := NewMatrixFrom(2, 3, []float64{1, 2, 3})
	c.Assert(errors.Is(err, ErrDimensionMismatch), gc.Equals, true)
}

func (s *MatrixSuite) TestSetRow(c *gc.C) {
	m := NewMatrix(2, 3)
	c.Assert(m.SetRow(1, Vector{4, 5, 6}), gc.IsNil)
	c.Assert(m.Row(1), gc.DeepEquals, Vector{4, 5, 6})
	c.Assert(m.Row(0), gc.DeepEquals, Vector{0, 0, 0})

	err := m.SetRow(0, Vector{1, 2})
	c.Assert(errors.Is(err, ErrDimensionMismatch), gc.Equals, true)

	src := mustMatrix(c, 2, 2, 1, 2, 3, 4)
	err = m.SetRowFrom(0, src, 1)
	c.Assert(errors.Is(err, ErrDimensionMismatch), gc.Equals, true)
}

func (s *MatrixSuite) TestSubRow(c *gc.C) {
	m := mustMatrix(c, 2, 4,
		1, 2, 3, 4,
		5, 6, 7, 8)
	v, err := m.SubRow(1, 1, 2)
	c.Assert(err, gc.IsNil)
	c.Assert(v, gc.DeepEquals, Vector{6, 7})

	v, err = m.SubRow(0, 2, 2)
	c.Assert(err, gc.IsNil)
	c.Assert(v, gc.DeepEquals, Vector{3, 4})

	_, err = m.SubRow(0, 3, 2)
	c.Assert(errors.Is(err, ErrDimensionMismatch), gc.Equals, true)
}

func (s *MatrixSuite) TestMul(c *gc.C) {
	a := mustMatrix(c, 2, 3,
		1, 2, 3,
		4, 5, 6)
	b := mustMatrix(c, 3, 2,
		7, 8,
		9, 10,
		11, 12)
	p, err := a.Mul(b)
	c.Assert(err, gc.IsNil)
	c.Assert(p, gc.DeepEquals, mustMatrix(c, 2, 2, 58, 64, 139, 154))

	_, err = a.Mul(a)
	c.Assert(errors.Is(err, ErrDimensionMismatch), gc.Equals, true)
}

func (s *MatrixSuite) TestMulSelectedRowsWraps(c *gc.C) {
	m := mustMatrix(c, 3, 2,
		1, 0,
		0, 1,
		1, 1)
	v, err := m.MulSelectedRows(Vector{2, 3}, 2, 4)
	c.Assert(err, gc.IsNil)
	// rows 2, 0, 1, 2
	c.Assert(v, gc.DeepEquals, Vector{5, 2, 3, 5})

	_, err = m.MulSelectedRows(Vector{1, 2, 3}, 0, 1)
	c.Assert(errors.Is(err, ErrDimensionMismatch), gc.Equals, true)
}

func (s *MatrixSuite) TestDot(c *gc.C) {
	x, err := Dot(Vector{1, 2, 3}, Vector{4, 5, 6})
	c.Assert(err, gc.IsNil)
	c.Assert(x, gc.Equals, float64(32))
	_, err = Dot(Vector{1}, Vector{1, 2})
	c.Assert(errors.Is(err, ErrDimensionMismatch), gc.Equals, true)
	c.Assert(Vector{1, 2, 3.5}.Sum(), gc.Equals, 6.5)
}

func (s *MatrixSuite) TestInverseSmall(c *gc.C) {
	// Leading zero pivot forces a row swap.
	m := mustMatrix(c, 2, 2,
		0, 1,
		2, 3)
	inv, err := m.Inverse()
	c.Assert(err, gc.IsNil)
	c.Assert(ApproxEqual(inv, mustMatrix(c, 2, 2, -1.5, 0.5, 1, 0), 1e-12), gc.Equals, true)
}

func (s *MatrixSuite) TestInverseRandom(c *gc.C) {
	rng := rand.New(rand.NewSource(1))
	for n := 1; n <= 12; n++ {
		m := NewRandomMatrix(n, n, -1, 2, rng)
		inv, err := m.Inverse()
		c.Assert(err, gc.IsNil)
		p, err := m.Mul(inv)
		c.Assert(err, gc.IsNil)
		c.Assert(ApproxEqual(p, Identity(n), 1e-9), gc.Equals, true, gc.Commentf("n=%d\n%v", n, p))
	}
}

func (s *MatrixSuite) TestInverseSingular(c *gc.C) {
	m := mustMatrix(c, 3, 3,
		1, 2, 3,
		2, 4, 6,
		0, 1, 1)
	_, err := m.Inverse()
	c.Assert(errors.Is(err, ErrSingularMatrix), gc.Equals, true)

	_, err = NewMatrix(2, 2).Inverse()
	c.Assert(errors.Is(err, ErrSingularMatrix), gc.Equals, true)
}

func (s *MatrixSuite) TestInverseNonSquare(c *gc.C) {
	_, err := NewMatrix(2, 3).Inverse()
	c.Assert(errors.Is(err, ErrDimensionMismatch), gc.Equals, true)
}
