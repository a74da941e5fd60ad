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

package coordinator

import (
	"context"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	gc "gopkg.in/check.v1"

	"elasticmv/linalg"
	"elasticmv/wire"
	"elasticmv/worker"
)

type TransportSuite struct {
	servers []*httptest.Server
	addrs   []string
}

var _ = gc.Suite(&TransportSuite{})

func (s *TransportSuite) SetUpTest(c *gc.C) {
	s.servers, s.addrs = nil, nil
	for i := 0; i < 3; i++ {
		e, err := worker.NewEngine(toyParams())
		c.Assert(err, gc.IsNil)
		r := httprouter.New()
		worker.NewHandler(e).Register(r)
		srv := httptest.NewServer(r)
		s.servers = append(s.servers, srv)
		// Bare host:port, as listed in a deployment's address file.
		s.addrs = append(s.addrs, strings.TrimPrefix(srv.URL, "http://"))
	}
}

func (s *TransportSuite) TearDownTest(c *gc.C) {
	for _, srv := range s.servers {
		srv.Close()
	}
}

func (s *TransportSuite) TestWorkerURL(c *gc.C) {
	c.Assert(workerURL("10.0.0.1:8080", wire.ComputePath, "1%2C2"), gc.Equals,
		"http://10.0.0.1:8080/worker?vectIn=1%2C2")
	c.Assert(workerURL("https://w1.example.com/", wire.AssignPath, "x"), gc.Equals,
		"https://w1.example.com/worker/assign?vectIn=x")
}

func (s *TransportSuite) TestRounds(c *gc.C) {
	coord, err := NewCoordinator(toyParams(), s.addrs,
		WithTransport(NewHTTPTransport(5*time.Second)),
		WithBase(toyBase(c)),
		WithInput(fixedInputs(linalg.Vector{0.5, -4})))
	c.Assert(err, gc.IsNil)
	defer coord.Close()

	res, err := coord.RunRound(context.Background())
	c.Assert(err, gc.IsNil)
	c.Assert(res.Failures, gc.HasLen, 0)

	res, err = coord.RunRound(context.Background())
	c.Assert(err, gc.IsNil)
	c.Assert(res.Failures, gc.HasLen, 0)
	assertBlocks(c, res.Blocks, 3, 2, 2, -3.5)
}

func (s *TransportSuite) TestNotAssigned(c *gc.C) {
	t := NewHTTPTransport(0)
	_, err := t.Compute(context.Background(), s.addrs[0], wire.EncodeSteady(linalg.Vector{1, 2}, 3))
	c.Assert(errors.Is(err, ErrTransportFailure), gc.Equals, true)
	c.Assert(err, gc.ErrorMatches, ".*HTTP 409.*")
}

func (s *TransportSuite) TestMalformed(c *gc.C) {
	t := NewHTTPTransport(0)
	err := t.Assign(context.Background(), s.addrs[0], wire.Encode(linalg.Vector{1}))
	c.Assert(errors.Is(err, ErrTransportFailure), gc.Equals, true)
	c.Assert(err, gc.ErrorMatches, ".*HTTP 400.*")
}

func (s *TransportSuite) TestUnreachable(c *gc.C) {
	addr := s.addrs[2]
	s.servers[2].Close()
	t := NewHTTPTransport(0)
	err := t.Assign(context.Background(), addr, "0")
	c.Assert(errors.Is(err, ErrTransportFailure), gc.Equals, true)
}
