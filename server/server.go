// Package server hosts the elasticmv processes: a worker serving the
// compute endpoint over HTTP, and a coordinator driving rounds against a
// list of workers. Both share settings, logging and the metrics listener.
package server

import (
	"net"
	"net/http"
	"time"

	"github.com/carbocation/interpose"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/tomb.v2"

	"elasticmv/metrics"
	"elasticmv/wire"
	"elasticmv/worker"
)

// Server is a worker process.
type Server struct {
	settings        *Settings
	engine          *worker.Engine
	middle          *interpose.Middleware
	r               *httprouter.Router
	logs            logOutput
	metricsListener *metrics.Metrics

	t    tomb.Tomb
	addr string
}

type statusCodeResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func NewStatusCodeResponseWriter(w http.ResponseWriter) *statusCodeResponseWriter {
	// WriteHeader is not called if our response implicitly
	// returns 200 OK, so we default to that status code.
	return &statusCodeResponseWriter{w, http.StatusOK}
}

func (scrw *statusCodeResponseWriter) WriteHeader(code int) {
	scrw.statusCode = code
	scrw.ResponseWriter.WriteHeader(code)
}

// routePath bounds the path label of request metrics to the known routes.
func routePath(path string) string {
	switch path {
	case wire.AssignPath, wire.ComputePath, wire.StatusPath:
		return path
	}
	return "other"
}

func NewServer(settings *Settings) (*Server, error) {
	if settings == nil {
		defaults := DefaultSettings()
		settings = &defaults
	}
	s := &Server{
		settings: settings,
		r:        httprouter.New(),
		logs:     logOutput{settings: settings},
	}

	var err error
	s.engine, err = worker.NewEngine(settings.Coding)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s.middle = interpose.New()
	s.middle.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			start := time.Now()
			scrw := NewStatusCodeResponseWriter(rw)
			next.ServeHTTP(scrw, req)
			duration := time.Since(start)
			fields := log.Fields{
				req.Method:    req.URL.Path,
				"duration":    duration.String(),
				"from":        req.RemoteAddr,
				"status-code": scrw.statusCode,
			}
			// Compute requests arrive every round; only failures are
			// worth an info line.
			if scrw.statusCode == http.StatusOK && req.URL.Path == wire.ComputePath {
				log.WithFields(fields).Debug()
			} else {
				log.WithFields(fields).Info()
			}
			recordHTTPRequestDuration(req.Method, routePath(req.URL.Path), scrw.statusCode, duration)
		})
	})
	s.middle.UseHandler(s.r)

	worker.NewHandler(s.engine).Register(s.r)

	s.metricsListener = metrics.NewMetrics(&settings.Metrics)

	registerMetrics()

	return s, nil
}

// Engine returns the worker engine served by s.
func (s *Server) Engine() *worker.Engine {
	return s.engine
}

// Addr returns the bound worker address once started.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) Start() error {
	s.logs.open()

	ln, err := s.newListener(s.settings.Worker.Bind)
	if err != nil {
		return errors.WithStack(err)
	}
	s.addr = ln.Addr().String()
	log.WithFields(log.Fields{"addr": s.addr}).Info("worker listening")
	s.t.Go(func() error {
		err := http.Serve(ln, s.middle)
		select {
		case <-s.t.Dying():
			return nil
		default:
		}
		return errors.WithStack(err)
	})

	if s.metricsListener != nil {
		if err := s.metricsListener.Start(); err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

func (s *Server) LogRotate() {
	s.logs.rotate()
}

func (s *Server) Wait() error {
	return s.t.Wait()
}

func (s *Server) Stop() {
	defer s.logs.close()

	if s.metricsListener != nil {
		s.metricsListener.Stop()
	}
	s.t.Kill(nil)
	s.t.Wait()
}

// tcpKeepAliveListener sets TCP keep-alive timeouts on accepted
// connections, so connections from a vanished coordinator eventually go
// away.
type tcpKeepAliveListener struct {
	*net.TCPListener
}

// Accept implements net.Listener.
func (ln tcpKeepAliveListener) Accept() (net.Conn, error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)
	return tc, nil
}

func (s *Server) newListener(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s.t.Go(func() error {
		<-s.t.Dying()
		return ln.Close()
	})
	return tcpKeepAliveListener{ln.(*net.TCPListener)}, nil
}
