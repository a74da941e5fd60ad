package server

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	gc "gopkg.in/check.v1"

	"elasticmv/coding"
	"elasticmv/journal"
	"elasticmv/linalg"
	"elasticmv/wire"
	"elasticmv/worker"
)

func testSettings() *Settings {
	settings := defaultSettings()
	settings.Coding = coding.Params{
		Threshold:      2,
		InitialWorkers: 3,
		OverallSize:    18,
		PayloadSize:    2,
		WorkerCounts:   []int{2, 3},
	}
	settings.Worker.Bind = "127.0.0.1:0"
	settings.Metrics.MetricsAddr = ""
	return settings
}

type ServerSuite struct {
	srv *Server
}

var _ = gc.Suite(&ServerSuite{})

func (s *ServerSuite) SetUpTest(c *gc.C) {
	var err error
	s.srv, err = NewServer(testSettings())
	c.Assert(err, gc.IsNil)
	c.Assert(s.srv.Start(), gc.IsNil)
}

func (s *ServerSuite) TearDownTest(c *gc.C) {
	s.srv.Stop()
}

func (s *ServerSuite) get(c *gc.C, path string) (int, string) {
	res, err := http.Get("http://" + s.srv.Addr() + path)
	c.Assert(err, gc.IsNil)
	body, err := ioutil.ReadAll(res.Body)
	res.Body.Close()
	c.Assert(err, gc.IsNil)
	return res.StatusCode, string(body)
}

func (s *ServerSuite) TestWorkerRoutes(c *gc.C) {
	code, body := s.get(c, wire.StatusPath)
	c.Assert(code, gc.Equals, http.StatusOK)
	c.Assert(body, gc.Matches, `(?s).*"state": "uninitialized".*`)

	steady := wire.ComputePath + "?" + wire.Param + "=" + wire.EncodeSteady(linalg.Vector{1, 2}, 3)
	code, _ = s.get(c, steady)
	c.Assert(code, gc.Equals, http.StatusConflict)

	base := linalg.NewConstantMatrix(3, 2, 1)
	code, _ = s.get(c, wire.AssignPath+"?"+wire.Param+"="+wire.EncodeAssignment(base, 2))
	c.Assert(code, gc.Equals, http.StatusOK)
	c.Assert(s.srv.Engine().Status().State, gc.Equals, worker.StateReady)

	code, body = s.get(c, steady)
	c.Assert(code, gc.Equals, http.StatusOK)
	out, err := wire.DecodeResult(body, 4)
	c.Assert(err, gc.IsNil)
	c.Assert(out, gc.DeepEquals, linalg.Vector{6, 6, 6, 6})
}

func (s *ServerSuite) TestNotFound(c *gc.C) {
	code, _ := s.get(c, "/nope")
	c.Assert(code, gc.Equals, http.StatusNotFound)
	c.Assert(routePath("/nope"), gc.Equals, "other")
	c.Assert(routePath(wire.ComputePath), gc.Equals, wire.ComputePath)
}

func (s *ServerSuite) TestRequestDurationRecorded(c *gc.C) {
	recordHTTPRequestDuration(http.MethodGet, wire.StatusPath, http.StatusOK, time.Millisecond)

	families, err := prometheus.DefaultGatherer.Gather()
	c.Assert(err, gc.IsNil)
	var count uint64
	for _, mf := range families {
		if mf.GetName() != "elasticmv_http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "path" && l.GetValue() == wire.StatusPath {
					count += m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	c.Assert(count > 0, gc.Equals, true)
}

type DispatcherSuite struct{}

var _ = gc.Suite(&DispatcherSuite{})

func (s *DispatcherSuite) TestRunAgainstWorkers(c *gc.C) {
	var addrs []string
	for i := 0; i < 3; i++ {
		srv, err := NewServer(testSettings())
		c.Assert(err, gc.IsNil)
		c.Assert(srv.Start(), gc.IsNil)
		defer srv.Stop()
		addrs = append(addrs, srv.Addr())
	}

	dir := c.MkDir()
	workersFile := filepath.Join(dir, "workers")
	c.Assert(ioutil.WriteFile(workersFile, []byte(fmt.Sprintf("%s,%s,%s", addrs[0], addrs[1], addrs[2])), 0644), gc.IsNil)

	settings := testSettings()
	settings.Coordinator.WorkersFile = workersFile
	settings.Coordinator.Rounds = 12
	settings.Coordinator.WarmupRounds = 2
	settings.Coordinator.ReconfigProbability = 0.3
	settings.Coordinator.Seed = 5
	settings.Coordinator.RequestTimeoutSecs = 10
	settings.Coordinator.JournalPath = filepath.Join(dir, "journal")
	settings.Coordinator.ArtifactDir = filepath.Join(dir, "out")

	d, err := NewDispatcher(settings)
	c.Assert(err, gc.IsNil)
	c.Assert(d.Start(), gc.IsNil)
	c.Assert(d.Wait(), gc.IsNil)
	c.Assert(d.Stop(), gc.IsNil)

	j, err := journal.Open(settings.Coordinator.JournalPath)
	c.Assert(err, gc.IsNil)
	defer j.Close()
	records, err := j.Records()
	c.Assert(err, gc.IsNil)
	c.Assert(records, gc.HasLen, 12)
	c.Assert(records[0].Kind, gc.Equals, "assignment")
	for _, r := range records {
		c.Assert(r.Failures, gc.Equals, 0)
	}

	_, err = ioutil.ReadFile(filepath.Join(settings.Coordinator.ArtifactDir, journal.LatencyFile))
	c.Assert(err, gc.IsNil)
}

func (s *DispatcherSuite) TestNoWorkers(c *gc.C) {
	_, err := NewDispatcher(testSettings())
	c.Assert(err, gc.ErrorMatches, "no worker addresses configured")
}
