package server

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"elasticmv/coordinator"
	"elasticmv/journal"
	"elasticmv/metrics"
)

// Dispatcher is a coordinator process.
type Dispatcher struct {
	settings        *Settings
	coord           *coordinator.Coordinator
	journal         *journal.Journal
	logs            logOutput
	metricsListener *metrics.Metrics

	stopOnce sync.Once
	stopErr  error
}

// CoordinatorOptions translates settings into coordinator options. The
// journal is opened by the caller.
func CoordinatorOptions(settings *Settings, j *journal.Journal) ([]coordinator.Option, error) {
	c := &settings.Coordinator
	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	artifacts, err := journal.NewArtifacts(c.ArtifactDir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	options := []coordinator.Option{
		coordinator.WithTransport(coordinator.NewHTTPTransport(time.Duration(c.RequestTimeoutSecs) * time.Second)),
		coordinator.WithRand(rng),
		coordinator.WithJournal(j),
		coordinator.WithArtifacts(artifacts),
		coordinator.WithRounds(c.Rounds, c.WarmupRounds),
	}
	if c.ReconfigProbability > 0 {
		weights, err := c.WorkerWeights()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		policy := coordinator.NewRandomPolicy(c.ReconfigProbability, settings.Coding.WorkerCounts, weights, rng)
		options = append(options, coordinator.WithPolicy(policy))
	}
	return options, nil
}

func NewDispatcher(settings *Settings) (*Dispatcher, error) {
	if settings == nil {
		defaults := DefaultSettings()
		settings = &defaults
	}
	addrs, err := settings.WorkerAddrs()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	d := &Dispatcher{
		settings: settings,
		logs:     logOutput{settings: settings},
	}
	d.journal, err = journal.Open(settings.Coordinator.JournalPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	options, err := CoordinatorOptions(settings, d.journal)
	if err != nil {
		d.journal.Close()
		return nil, errors.WithStack(err)
	}
	d.coord, err = coordinator.NewCoordinator(settings.Coding, addrs, options...)
	if err != nil {
		d.journal.Close()
		return nil, errors.WithStack(err)
	}
	d.metricsListener = metrics.NewMetrics(&settings.Metrics)
	return d, nil
}

func (d *Dispatcher) Start() error {
	d.logs.open()
	log.WithFields(log.Fields{
		"workers": d.coord.ActiveWorkers(),
		"rounds":  d.settings.Coordinator.Rounds,
	}).Info("coordinator starting")
	if err := d.metricsListener.Start(); err != nil {
		return errors.WithStack(err)
	}
	d.coord.Start()
	return nil
}

func (d *Dispatcher) LogRotate() {
	d.logs.rotate()
}

// Wait blocks until the coordinator finishes its rounds or stops.
func (d *Dispatcher) Wait() error {
	return d.coord.Wait()
}

// Stop interrupts the run and releases the journal, metrics listener and
// log. It is safe to call more than once.
func (d *Dispatcher) Stop() error {
	d.stopOnce.Do(func() {
		d.stopErr = d.coord.Stop()
		d.metricsListener.Stop()
		if err := d.journal.Close(); err != nil {
			log.Warningf("failed to close journal: %v", err)
		}
		log.Info("coordinator stopped")
		d.logs.close()
	})
	return d.stopErr
}
