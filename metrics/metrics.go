// Package metrics serves the process's prometheus collectors over HTTP.
package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gopkg.in/errgo.v1"
	"gopkg.in/tomb.v2"
)

type Metrics struct {
	s    *Settings
	mux  *http.ServeMux
	addr string

	started bool
	t       tomb.Tomb
}

func NewMetrics(s *Settings) *Metrics {
	if s == nil {
		s = DefaultSettings()
	}

	m := &Metrics{
		s:   s,
		mux: http.NewServeMux(),
	}
	m.mux.Handle(m.s.MetricsPath, promhttp.Handler())

	return m
}

// Start listens on the metrics address. An empty address disables the
// listener.
func (m *Metrics) Start() error {
	if m.s.MetricsAddr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", m.s.MetricsAddr)
	if err != nil {
		return errgo.Mask(err)
	}
	m.addr = ln.Addr().String()
	m.started = true
	m.t.Go(func() error {
		<-m.t.Dying()
		return ln.Close()
	})
	m.t.Go(func() error {
		log.WithFields(log.Fields{"addr": m.addr}).Info("metrics: starting")
		err := http.Serve(ln, m.mux)
		select {
		case <-m.t.Dying():
			return nil
		default:
		}
		log.Errorf("failed to serve metrics: %v", err)
		return err
	})
	return nil
}

// Addr returns the address the listener is bound to once started.
func (m *Metrics) Addr() string {
	return m.addr
}

func (m *Metrics) Stop() {
	if !m.started {
		return
	}
	log.Info("metrics: stopping")
	m.t.Kill(nil)
	if err := m.t.Wait(); err != nil {
		log.Error(errgo.Details(err))
	}
	log.Info("metrics: stopped")
}
