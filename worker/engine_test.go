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

package worker

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	stdtesting "testing"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	gc "gopkg.in/check.v1"

	"elasticmv/coding"
	"elasticmv/linalg"
	"elasticmv/wire"
)

func Test(t *stdtesting.T) { gc.TestingT(t) }

type EngineSuite struct {
	params coding.Params
	base   *linalg.Matrix
	engine *Engine
}

var _ = gc.Suite(&EngineSuite{})

func (s *EngineSuite) SetUpTest(c *gc.C) {
	s.params = coding.Params{
		Threshold:      2,
		InitialWorkers: 3,
		OverallSize:    18,
		PayloadSize:    2,
		WorkerCounts:   []int{2, 3},
	}
	var err error
	s.base, err = linalg.NewMatrixFrom(3, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
	})
	c.Assert(err, gc.IsNil)
	s.engine, err = NewEngine(s.params)
	c.Assert(err, gc.IsNil)
}

func (s *EngineSuite) compute(c *gc.C, input linalg.Vector, n, expectLen int) linalg.Vector {
	resp, err := s.engine.Compute(wire.EncodeSteady(input, n))
	c.Assert(err, gc.IsNil)
	out, err := wire.DecodeResult(resp, expectLen)
	c.Assert(err, gc.IsNil)
	return out
}

func (s *EngineSuite) TestComputeBeforeAssign(c *gc.C) {
	_, err := s.engine.Compute(wire.EncodeSteady(linalg.Vector{1, 2}, 3))
	c.Assert(errors.Is(err, ErrNotAssigned), gc.Equals, true)
	c.Assert(s.engine.Status().State, gc.Equals, StateUninitialized)
}

func (s *EngineSuite) TestAssignGeneratesShard(c *gc.C) {
	c.Assert(s.engine.Assign(wire.EncodeAssignment(s.base, 2)), gc.IsNil)
	st := s.engine.Status()
	c.Assert(st.State, gc.Equals, StateReady)
	c.Assert(st.ID, gc.Equals, 2)
	c.Assert(st.ShardRows, gc.Equals, 6)
	c.Assert(st.ActiveWorkers, gc.Equals, 3)

	// Shard value for id 2 is 1+1; the input sums to 7.
	out := s.compute(c, linalg.Vector{3, 4}, 3, 4)
	c.Assert(out, gc.DeepEquals, linalg.Vector{14, 14, 14, 14})
}

func (s *EngineSuite) TestControlFieldReconfigures(c *gc.C) {
	c.Assert(s.engine.Assign(wire.EncodeAssignment(s.base, 0)), gc.IsNil)
	out := s.compute(c, linalg.Vector{3, 4}, 2, 6)
	c.Assert(out, gc.DeepEquals, linalg.Vector{7, 7, 7, 7, 7, 7})
	st := s.engine.Status()
	c.Assert(st.ActiveWorkers, gc.Equals, 2)
	c.Assert(st.SendSize, gc.Equals, 6)
	c.Assert(st.ShardRows, gc.Equals, 6)

	out = s.compute(c, linalg.Vector{1, 1}, 3, 4)
	c.Assert(out, gc.DeepEquals, linalg.Vector{2, 2, 2, 2})
}

func (s *EngineSuite) TestReassignKeepsShard(c *gc.C) {
	c.Assert(s.engine.Assign(wire.EncodeAssignment(s.base, 2)), gc.IsNil)
	c.Assert(s.engine.Assign(wire.EncodeAssignment(s.base, 1)), gc.IsNil)
	st := s.engine.Status()
	c.Assert(st.ID, gc.Equals, 1)
	// Still the shard generated for id 2.
	out := s.compute(c, linalg.Vector{1, 0}, 3, 4)
	c.Assert(out, gc.DeepEquals, linalg.Vector{2, 2, 2, 2})
}

func (s *EngineSuite) TestMalformed(c *gc.C) {
	err := s.engine.Assign(wire.Encode(linalg.Vector{1, 2, 3}))
	c.Assert(errors.Is(err, wire.ErrMalformedPayload), gc.Equals, true)
	c.Assert(s.engine.Status().State, gc.Equals, StateUninitialized)

	c.Assert(s.engine.Assign(wire.EncodeAssignment(s.base, 0)), gc.IsNil)
	_, err = s.engine.Compute(wire.EncodeSteady(linalg.Vector{1, 2, 3}, 3))
	c.Assert(errors.Is(err, wire.ErrMalformedPayload), gc.Equals, true)
	_, err = s.engine.Compute(wire.EncodeSteady(linalg.Vector{1, 2}, 5))
	c.Assert(errors.Is(err, wire.ErrMalformedPayload), gc.Equals, true)
}

type HandlerSuite struct {
	engine *Engine
	base   *linalg.Matrix
	srv    *httptest.Server
}

var _ = gc.Suite(&HandlerSuite{})

func (s *HandlerSuite) SetUpTest(c *gc.C) {
	var err error
	s.engine, err = NewEngine(coding.Params{
		Threshold:      2,
		InitialWorkers: 3,
		OverallSize:    18,
		PayloadSize:    2,
		WorkerCounts:   []int{2, 3},
	})
	c.Assert(err, gc.IsNil)
	s.base = linalg.NewConstantMatrix(3, 2, 0.5)

	r := httprouter.New()
	NewHandler(s.engine).Register(r)
	s.srv = httptest.NewServer(r)
}

func (s *HandlerSuite) TearDownTest(c *gc.C) {
	s.srv.Close()
}

func (s *HandlerSuite) get(c *gc.C, path, payload string) (int, string) {
	res, err := http.Get(s.srv.URL + path + "?" + wire.Param + "=" + payload)
	c.Assert(err, gc.IsNil)
	body, err := ioutil.ReadAll(res.Body)
	res.Body.Close()
	c.Assert(err, gc.IsNil)
	return res.StatusCode, string(body)
}

func (s *HandlerSuite) TestAssignThenCompute(c *gc.C) {
	code, _ := s.get(c, wire.ComputePath, wire.EncodeSteady(linalg.Vector{1, 2}, 3))
	c.Assert(code, gc.Equals, http.StatusConflict)

	code, body := s.get(c, wire.AssignPath, wire.EncodeAssignment(s.base, 1))
	c.Assert(code, gc.Equals, http.StatusOK)
	c.Assert(body, gc.Equals, "")

	code, body = s.get(c, wire.ComputePath, wire.EncodeSteady(linalg.Vector{1, 2}, 3))
	c.Assert(code, gc.Equals, http.StatusOK)
	out, err := wire.DecodeResult(body, 4)
	c.Assert(err, gc.IsNil)
	c.Assert(out, gc.DeepEquals, linalg.Vector{3, 3, 3, 3})
}

func (s *HandlerSuite) TestBadRequest(c *gc.C) {
	code, _ := s.get(c, wire.AssignPath, "1%2C2")
	c.Assert(code, gc.Equals, http.StatusBadRequest)

	res, err := http.Get(s.srv.URL + wire.AssignPath)
	c.Assert(err, gc.IsNil)
	res.Body.Close()
	c.Assert(res.StatusCode, gc.Equals, http.StatusBadRequest)
}

func (s *HandlerSuite) TestStatus(c *gc.C) {
	res, err := http.Get(s.srv.URL + wire.StatusPath)
	c.Assert(err, gc.IsNil)
	body, err := ioutil.ReadAll(res.Body)
	res.Body.Close()
	c.Assert(err, gc.IsNil)
	c.Assert(res.StatusCode, gc.Equals, http.StatusOK)
	c.Assert(string(body), gc.Matches, `(?s).*"state": "uninitialized".*`)
}

type brokenWriter struct {
	header http.Header
	code   int
	writes int
}

func (w *brokenWriter) Header() http.Header { return w.header }

func (w *brokenWriter) WriteHeader(code int) { w.code = code }

func (w *brokenWriter) Write([]byte) (int, error) {
	w.writes++
	return 0, errors.New("connection reset")
}

func (s *HandlerSuite) TestStatusWriteFailure(c *gc.C) {
	w := &brokenWriter{header: http.Header{}}
	NewHandler(s.engine).Status(w, httptest.NewRequest(http.MethodGet, wire.StatusPath, nil), nil)
	c.Assert(w.writes, gc.Equals, 1)
	c.Assert(w.code, gc.Equals, 0)
	c.Assert(w.header.Get("Content-Type"), gc.Equals, "application/json")
}
