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

// Package worker implements the worker side of elastic coded computing: it
// materializes a coded shard on assignment and answers each steady round
// with the products of a cyclic window of shard rows against the input.
package worker

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"elasticmv/coding"
	"elasticmv/linalg"
	"elasticmv/wire"
)

var ErrNotAssigned = fmt.Errorf("worker has not been assigned an id")

type State string

var (
	StateUninitialized = State("uninitialized")
	StateReady         = State("ready")
)

// Engine holds one worker's coded shard and its view of the active worker
// count.
type Engine struct {
	params coding.Params

	mu    sync.RWMutex
	state State
	id    int
	shard *linalg.Matrix
	cfg   coding.Config
}

// NewEngine returns an unassigned engine. The params must match the
// coordinator's.
func NewEngine(params coding.Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	cfg, err := params.Configure(params.InitialWorkers)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	registerMetrics()
	return &Engine{
		params: params,
		state:  StateUninitialized,
		cfg:    cfg,
	}, nil
}

func (e *Engine) logFields(fields log.Fields) *log.Entry {
	e.mu.RLock()
	fields["worker"] = e.id
	fields["state"] = e.state
	e.mu.RUnlock()
	return log.WithFields(fields)
}

// Assign handles an assignment payload. The first assignment generates the
// coded shard; later ones only update the worker id. The shard is kept for
// the lifetime of the engine.
func (e *Engine) Assign(payload string) error {
	base, id, err := wire.DecodeAssignment(payload, e.params.InitialWorkers, e.params.Threshold)
	if err != nil {
		return errors.WithStack(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateReady {
		if id != e.id {
			log.WithFields(log.Fields{"from": e.id, "to": id}).Info("worker id reassigned")
		}
		e.id = id
		return nil
	}

	value, err := coding.ShardValue(base, e.params.Threshold, id)
	if err != nil {
		return errors.WithStack(err)
	}
	start := time.Now()
	e.shard = linalg.NewConstantMatrix(e.params.CodedSamplesPerWorker(), e.params.PayloadSize, value)
	e.id = id
	e.state = StateReady
	log.WithFields(log.Fields{
		"worker":  id,
		"value":   value,
		"rows":    e.shard.Rows(),
		"columns": e.shard.Columns(),
		"elapsed": time.Since(start).String(),
	}).Info("coded shard generated")
	return nil
}

// Compute handles a steady payload and returns the encoded partial product.
func (e *Engine) Compute(payload string) (string, error) {
	start := time.Now()
	input, n, err := wire.DecodeSteady(payload, e.params.PayloadSize)
	if err != nil {
		return "", errors.WithStack(err)
	}

	cfg, shard, id, err := e.configFor(n)
	if err != nil {
		return "", errors.WithStack(err)
	}

	startRow := coding.WindowStart(cfg, id)
	out, err := shard.MulSelectedRows(input, startRow, cfg.SendSize)
	if err != nil {
		return "", errors.WithStack(err)
	}
	elapsed := time.Since(start)
	recordCompute(elapsed)
	e.logFields(log.Fields{
		"workers": n,
		"start":   startRow,
		"rows":    cfg.SendSize,
		"elapsed": elapsed.String(),
	}).Debug("partial product computed")
	return wire.Encode(out), nil
}

// configFor returns the configuration for n active workers, updating the
// cached one when the control field reports a change.
func (e *Engine) configFor(n int) (coding.Config, *linalg.Matrix, int, error) {
	e.mu.RLock()
	state, cfg, shard, id := e.state, e.cfg, e.shard, e.id
	e.mu.RUnlock()

	if state != StateReady {
		return coding.Config{}, nil, 0, errors.WithStack(ErrNotAssigned)
	}
	if cfg.ActiveWorkers == n {
		return cfg, shard, id, nil
	}

	next, err := e.params.Configure(n)
	if err != nil {
		return coding.Config{}, nil, 0, errors.Wrapf(wire.ErrMalformedPayload, "control field: %v", err)
	}
	e.mu.Lock()
	if e.cfg.ActiveWorkers != n {
		log.WithFields(log.Fields{
			"worker": e.id,
			"from":   e.cfg.ActiveWorkers,
			"to":     n,
		}).Info("number of workers changed")
		e.cfg = next
	}
	e.mu.Unlock()
	return next, shard, id, nil
}

// Status describes the engine for diagnostics.
type Status struct {
	State         State `json:"state"`
	ID            int   `json:"id"`
	ActiveWorkers int   `json:"activeWorkers"`
	SendSize      int   `json:"sendSize"`
	ShardRows     int   `json:"shardRows"`
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := Status{
		State:         e.state,
		ID:            e.id,
		ActiveWorkers: e.cfg.ActiveWorkers,
		SendSize:      e.cfg.SendSize,
	}
	if e.shard != nil {
		st.ShardRows = e.shard.Rows()
	}
	return st
}
