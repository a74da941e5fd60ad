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

	"github.com/pkg/errors"
)

// Vector is a fixed-length sequence of float64 values.
type Vector []float64

// NewRandomVector returns a vector of n values drawn uniformly from [lo, hi).
func NewRandomVector(n int, lo, hi float64, rng *rand.Rand) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = lo + rng.Float64()*(hi-lo)
	}
	return v
}

// Sum returns the sum of all elements.
func (v Vector) Sum() float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum
}

// Append returns a new vector holding v followed by xs.
func (v Vector) Append(xs ...float64) Vector {
	w := make(Vector, 0, len(v)+len(xs))
	w = append(w, v...)
	return append(w, xs...)
}

// Dot returns the dot product of a and b.
func Dot(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Wrapf(ErrDimensionMismatch,
			"dot product of lengths %d and %d", len(a), len(b))
	}
	return dot(a, b), nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
