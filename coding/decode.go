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
	"github.com/pkg/errors"

	"elasticmv/linalg"
)

// Fragments gathers the threshold × elastic fragment matrix of group g from
// the receive buffer. Row t comes from node (g+1+t) mod n, at block offset
// (n-1-t) mod threshold within that node's response.
func Fragments(s *RuntimeState, g int) (*linalg.Matrix, error) {
	cfg := s.Config
	n, k, elastic := cfg.ActiveWorkers, cfg.Threshold, cfg.ElasticSize
	if s.Receive.Rows() != n {
		return nil, errors.Wrapf(linalg.ErrDimensionMismatch,
			"receive buffer has %d rows for %d workers", s.Receive.Rows(), n)
	}
	frag := linalg.NewMatrix(k, elastic)
	for t, node := range GroupNodes(g, n, k) {
		offset := ((n - 1 - t) % k) * elastic
		row, err := s.Receive.SubRow(node, offset, elastic)
		if err != nil {
			return nil, errors.Wrapf(err, "group %d fragment %d from node %d", g, t, node)
		}
		if err := frag.SetRow(t, row); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return frag, nil
}

// Decode reconstructs one threshold × elastic output block per group by
// applying the group's decoding matrix to its fragments. The receive buffer
// must hold a complete round; rows a worker failed to write are decoded as
// they stand.
func Decode(s *RuntimeState) ([]*linalg.Matrix, error) {
	n := s.Config.ActiveWorkers
	if len(s.Decoding) != n {
		return nil, errors.Wrapf(linalg.ErrDimensionMismatch,
			"%d decoding matrices for %d workers", len(s.Decoding), n)
	}
	blocks := make([]*linalg.Matrix, n)
	for g := 0; g < n; g++ {
		frag, err := Fragments(s, g)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		blocks[g], err = s.Decoding[g].Mul(frag)
		if err != nil {
			return nil, errors.Wrapf(err, "group %d", g)
		}
	}
	return blocks, nil
}

// Concat flattens output blocks in group order into the reconstructed
// product.
func Concat(blocks []*linalg.Matrix) linalg.Vector {
	var out linalg.Vector
	for _, b := range blocks {
		out = append(out, b.Flatten()...)
	}
	return out
}
