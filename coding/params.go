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

// Package coding provides the elastic coding scheme: size configuration per
// worker count, generator and decoding matrices derived from a fixed base
// matrix, and reconstruction of the product from worker responses.
package coding

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrInvalidWorkerCount = fmt.Errorf("unsupported worker count")

const (
	DefaultThreshold      = 10
	DefaultInitialWorkers = 20
	DefaultOverallSize    = 105000
	DefaultPayloadSize    = 10000
)

// DefaultWorkerCounts are the worker counts a deployment may switch between.
// Each one evenly divides the default coded sample count of 10500.
var DefaultWorkerCounts = []int{10, 12, 15, 20}

// Params holds the size constants shared by the coordinator and every worker.
type Params struct {
	// Threshold is the number of coded fragments needed to reconstruct one
	// group's output block.
	Threshold int `toml:"threshold"`
	// InitialWorkers is the largest supported worker count and the row count
	// of the base matrix.
	InitialWorkers int   `toml:"initialWorkers"`
	OverallSize    int   `toml:"overallSize"`
	PayloadSize    int   `toml:"payloadSize"`
	WorkerCounts   []int `toml:"workerCounts"`
}

func DefaultParams() Params {
	return Params{
		Threshold:      DefaultThreshold,
		InitialWorkers: DefaultInitialWorkers,
		OverallSize:    DefaultOverallSize,
		PayloadSize:    DefaultPayloadSize,
		WorkerCounts:   append([]int(nil), DefaultWorkerCounts...),
	}
}

// CodedSamplesPerWorker returns the number of coded rows each worker holds.
func (p *Params) CodedSamplesPerWorker() int {
	return (p.OverallSize / p.InitialWorkers) * (p.InitialWorkers / p.Threshold)
}

// AssignmentLen returns the length of an assignment payload: the flattened
// base matrix plus the trailing worker id.
func (p *Params) AssignmentLen() int {
	return p.InitialWorkers*p.Threshold + 1
}

// Validate checks that the constants are consistent and that every supported
// worker count divides the coded sample count evenly. Remainder rows are never
// distributed, so an uneven count would silently drop data.
func (p *Params) Validate() error {
	if p.Threshold < 1 {
		return errors.Errorf("threshold must be positive, got %d", p.Threshold)
	}
	if p.InitialWorkers < p.Threshold {
		return errors.Errorf("initialWorkers %d is below threshold %d", p.InitialWorkers, p.Threshold)
	}
	if p.PayloadSize < 1 {
		return errors.Errorf("payloadSize must be positive, got %d", p.PayloadSize)
	}
	if p.CodedSamplesPerWorker() < 1 {
		return errors.Errorf("overallSize %d yields no coded samples per worker", p.OverallSize)
	}
	if len(p.WorkerCounts) == 0 {
		return errors.New("no supported worker counts")
	}
	for _, n := range p.WorkerCounts {
		if err := p.checkWorkerCount(n); err != nil {
			return errors.WithStack(err)
		}
	}
	if !p.Supports(p.InitialWorkers) {
		return errors.Errorf("initialWorkers %d missing from workerCounts %v", p.InitialWorkers, p.WorkerCounts)
	}
	return nil
}

// Supports reports whether n is one of the configured worker counts.
func (p *Params) Supports(n int) bool {
	for _, m := range p.WorkerCounts {
		if m == n {
			return true
		}
	}
	return false
}

func (p *Params) checkWorkerCount(n int) error {
	if n < p.Threshold || n > p.InitialWorkers {
		return errors.Wrapf(ErrInvalidWorkerCount, "%d outside [%d,%d]", n, p.Threshold, p.InitialWorkers)
	}
	if coded := p.CodedSamplesPerWorker(); coded%n != 0 {
		return errors.Wrapf(ErrInvalidWorkerCount, "%d does not divide %d coded samples", n, coded)
	}
	return nil
}

// Config is the set of sizes derived from the active worker count.
type Config struct {
	ActiveWorkers         int
	Threshold             int
	CodedSamplesPerWorker int
	// ElasticSize is the number of rows each worker contributes per group.
	ElasticSize int
	ReceiveSize int
	SendSize    int
}

// Configure derives the sizes for n active workers.
func (p *Params) Configure(n int) (Config, error) {
	if err := p.checkWorkerCount(n); err != nil {
		return Config{}, errors.WithStack(err)
	}
	coded := p.CodedSamplesPerWorker()
	elastic := coded / n
	receive := elastic * p.Threshold
	return Config{
		ActiveWorkers:         n,
		Threshold:             p.Threshold,
		CodedSamplesPerWorker: coded,
		ElasticSize:           elastic,
		ReceiveSize:           receive,
		SendSize:              receive,
	}, nil
}
