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

package coding

import (
	"math/rand"

	"github.com/pkg/errors"

	"elasticmv/linalg"
)

const (
	BaseLow  = -1.0
	BaseHigh = 2.0
)

// NewBaseMatrix returns the InitialWorkers × Threshold base matrix from which
// every generator matrix is selected.
func NewBaseMatrix(p *Params, rng *rand.Rand) *linalg.Matrix {
	return linalg.NewRandomMatrix(p.InitialWorkers, p.Threshold, BaseLow, BaseHigh, rng)
}

// GroupNodes returns the node ids whose fragments make up group g when n
// workers are active: (g+1+t) mod n for t in [0, threshold).
func GroupNodes(g, n, threshold int) []int {
	nodes := make([]int, threshold)
	for t := range nodes {
		nodes[t] = (g + 1 + t) % n
	}
	return nodes
}

// BuildGeneratorMatrices selects, for each of the n groups, the base rows
// named by GroupNodes.
func BuildGeneratorMatrices(base *linalg.Matrix, n, threshold int) ([]*linalg.Matrix, error) {
	if base.Rows() < n {
		return nil, errors.Wrapf(linalg.ErrDimensionMismatch,
			"base matrix has %d rows, need %d", base.Rows(), n)
	}
	gens := make([]*linalg.Matrix, n)
	for g := 0; g < n; g++ {
		gen := linalg.NewMatrix(threshold, base.Columns())
		for t, node := range GroupNodes(g, n, threshold) {
			if err := gen.SetRowFrom(t, base, node); err != nil {
				return nil, errors.Wrapf(err, "group %d", g)
			}
		}
		gens[g] = gen
	}
	return gens, nil
}

// BuildDecodingMatrices returns the inverse of every generator matrix for n
// active workers. It must be rerun in full whenever n changes.
func BuildDecodingMatrices(base *linalg.Matrix, n, threshold int) ([]*linalg.Matrix, error) {
	gens, err := BuildGeneratorMatrices(base, n, threshold)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	decs := make([]*linalg.Matrix, n)
	for g, gen := range gens {
		dec, err := gen.Inverse()
		if err != nil {
			return nil, errors.Wrapf(err, "group %d", g)
		}
		decs[g] = dec
	}
	return decs, nil
}

// ShardValue returns the constant a worker fills its synthetic coded shard
// with: the sum of the first threshold entries of its base row.
func ShardValue(base *linalg.Matrix, threshold, id int) (float64, error) {
	if id < 0 || id >= base.Rows() {
		return 0, errors.Wrapf(linalg.ErrDimensionMismatch,
			"worker id %d outside base matrix of %d rows", id, base.Rows())
	}
	row, err := base.SubRow(id, 0, threshold)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return row.Sum(), nil
}

// WindowStart returns the first shard row a worker multiplies under cfg.
func WindowStart(cfg Config, id int) int {
	n := cfg.ActiveWorkers
	return ((n - cfg.Threshold + id) % n) * cfg.ElasticSize
}
