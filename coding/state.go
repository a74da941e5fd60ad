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

// RuntimeState is everything on the coordinator that depends on the active
// worker count. A reconfiguration builds a new RuntimeState and replaces the
// old one; a RuntimeState is never patched in place apart from the receive
// buffer rows written during a round.
type RuntimeState struct {
	Config   Config
	Decoding []*linalg.Matrix
	// Receive holds the latest response of worker i in row i.
	Receive *linalg.Matrix
}

// NewRuntimeState derives the configuration, decoding matrices and receive
// buffer for n active workers. Either all three are built or an error is
// returned.
func NewRuntimeState(p *Params, base *linalg.Matrix, n int) (*RuntimeState, error) {
	cfg, err := p.Configure(n)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	decs, err := BuildDecodingMatrices(base, n, p.Threshold)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &RuntimeState{
		Config:   cfg,
		Decoding: decs,
		Receive:  linalg.NewMatrix(n, cfg.ReceiveSize),
	}, nil
}
