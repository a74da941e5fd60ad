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

// Package coordinator drives rounds of elastic coded matrix-vector
// multiplication: it broadcasts assignments and inputs to the active
// workers, collects their partial products and decodes the output blocks.
package coordinator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/tomb.v2"

	"elasticmv/coding"
	"elasticmv/journal"
	"elasticmv/linalg"
	"elasticmv/wire"
)

// IsFatal reports whether err leaves the coordinator unable to decode, as
// opposed to a failure confined to one worker task.
func IsFatal(err error) bool {
	return errors.Is(err, linalg.ErrDimensionMismatch) || errors.Is(err, linalg.ErrSingularMatrix)
}

type RoundKind string

const (
	RoundAssignment = RoundKind("assignment")
	RoundSteady     = RoundKind("steady")
)

// RoundResult describes one completed round. Blocks is nil for assignment
// rounds.
type RoundResult struct {
	Round    int
	Kind     RoundKind
	Workers  int
	Failures map[int]error
	Input    linalg.Vector
	Blocks   []*linalg.Matrix
	Duration time.Duration
}

// InputSource returns the input vector of the next steady round.
type InputSource func(size int) linalg.Vector

// Bounds of the random inputs drawn when no InputSource is configured.
const (
	InputLow  = 0.0
	InputHigh = 101.0
)

type Option func(*Coordinator) error

func WithTransport(t Transport) Option {
	return func(c *Coordinator) error {
		c.transport = t
		return nil
	}
}

func WithPolicy(p Policy) Option {
	return func(c *Coordinator) error {
		c.policy = p
		return nil
	}
}

func WithInput(src InputSource) Option {
	return func(c *Coordinator) error {
		c.input = src
		return nil
	}
}

// WithBase uses base instead of drawing a random base matrix.
func WithBase(base *linalg.Matrix) Option {
	return func(c *Coordinator) error {
		if base.Rows() != c.params.InitialWorkers || base.Columns() != c.params.Threshold {
			return errors.Wrapf(linalg.ErrDimensionMismatch, "base matrix is %dx%d, need %dx%d",
				base.Rows(), base.Columns(), c.params.InitialWorkers, c.params.Threshold)
		}
		c.base = base
		return nil
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(c *Coordinator) error {
		c.rng = rng
		return nil
	}
}

// WithJournal records rounds in j. The caller keeps ownership of j.
func WithJournal(j *journal.Journal) Option {
	return func(c *Coordinator) error {
		c.journal = j
		return nil
	}
}

func WithArtifacts(a *journal.Artifacts) Option {
	return func(c *Coordinator) error {
		c.artifacts = a
		return nil
	}
}

// WithRounds stops Run after rounds rounds; zero runs until Stop. The first
// warmup rounds are left out of latency reports.
func WithRounds(rounds, warmup int) Option {
	return func(c *Coordinator) error {
		if rounds < 0 || warmup < 0 {
			return errors.Errorf("invalid round counts %d, %d", rounds, warmup)
		}
		c.rounds, c.warmup = rounds, warmup
		return nil
	}
}

type Coordinator struct {
	params    coding.Params
	addrs     []string
	base      *linalg.Matrix
	transport Transport
	policy    Policy
	input     InputSource
	rng       *rand.Rand
	artifacts *journal.Artifacts

	journal     *journal.Journal
	ownsJournal bool

	rounds, warmup int
	dumped         bool

	mu            sync.Mutex
	state         *coding.RuntimeState
	assignPending bool
	round         int

	muDie   sync.Mutex
	started bool
	t       tomb.Tomb
}

// NewCoordinator returns a coordinator for the workers at addrs, starting
// with params.InitialWorkers of them active. Worker i of a round is always
// addrs[i].
func NewCoordinator(params coding.Params, addrs []string, options ...Option) (*Coordinator, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	if len(addrs) < params.InitialWorkers {
		return nil, errors.Wrapf(coding.ErrInvalidWorkerCount,
			"%d worker addresses for %d initial workers", len(addrs), params.InitialWorkers)
	}
	c := &Coordinator{
		params:        params,
		addrs:         append([]string(nil), addrs...),
		policy:        StaticPolicy{},
		assignPending: true,
	}
	for _, option := range options {
		if err := option(c); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.transport == nil {
		c.transport = NewHTTPTransport(0)
	}
	if c.input == nil {
		c.input = func(size int) linalg.Vector {
			return linalg.NewRandomVector(size, InputLow, InputHigh, c.rng)
		}
	}
	if c.base == nil {
		c.base = coding.NewBaseMatrix(&c.params, c.rng)
	}
	if c.journal == nil {
		j, err := journal.Open("")
		if err != nil {
			return nil, errors.WithStack(err)
		}
		c.journal, c.ownsJournal = j, true
	}

	state, err := coding.NewRuntimeState(&c.params, c.base, params.InitialWorkers)
	if err != nil {
		c.Close()
		return nil, errors.WithStack(err)
	}
	c.state = state

	registerMetrics()
	metrics.activeWorkers.Set(float64(params.InitialWorkers))
	return c, nil
}

// Close releases a journal the coordinator opened itself.
func (c *Coordinator) Close() error {
	if c.ownsJournal {
		return errors.WithStack(c.journal.Close())
	}
	return nil
}

func (c *Coordinator) logFields(fields log.Fields) *log.Entry {
	c.mu.Lock()
	fields["round"] = c.round
	fields["workers"] = c.state.Config.ActiveWorkers
	c.mu.Unlock()
	return log.WithFields(fields)
}

// Base returns the base matrix shared with the workers on assignment.
func (c *Coordinator) Base() *linalg.Matrix {
	return c.base
}

// Round returns the number of the next round to run.
func (c *Coordinator) Round() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round
}

func (c *Coordinator) ActiveWorkers() int {
	return c.RuntimeState().Config.ActiveWorkers
}

// RuntimeState returns the state for the current worker count.
func (c *Coordinator) RuntimeState() *coding.RuntimeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reconfigure switches to n active workers. The decoding matrices and
// receive buffer are rebuilt in full before replacing the current ones, and
// the next round reassigns the workers. On error nothing changes.
func (c *Coordinator) Reconfigure(n int) error {
	if !c.params.Supports(n) {
		return errors.Wrapf(coding.ErrInvalidWorkerCount, "%d not in %v", n, c.params.WorkerCounts)
	}
	if n > len(c.addrs) {
		return errors.Wrapf(coding.ErrInvalidWorkerCount,
			"%d workers requested, %d addresses known", n, len(c.addrs))
	}
	start := time.Now()
	next, err := coding.NewRuntimeState(&c.params, c.base, n)
	if err != nil {
		return errors.WithStack(err)
	}

	c.mu.Lock()
	from := c.state.Config.ActiveWorkers
	c.state = next
	c.assignPending = true
	c.mu.Unlock()

	recordReconfiguration(n)
	c.logFields(log.Fields{
		"from":    from,
		"elapsed": time.Since(start).String(),
	}).Info("number of workers changed")
	return nil
}

type task func(ctx context.Context, i int, addr string) error

// fanOut runs one task per address concurrently and waits for all of them.
// A failed task never cancels the others.
func fanOut(ctx context.Context, addrs []string, f task) []error {
	errs := make([]error, len(addrs))
	if len(addrs) == 0 {
		return errs
	}
	ch := make(chan struct{})
	var t tomb.Tomb
	for i, addr := range addrs {
		i, addr := i, addr
		t.Go(func() error {
			<-ch
			errs[i] = f(ctx, i, addr)
			return nil
		})
	}
	close(ch)
	t.Wait()
	return errs
}

// RunRound runs a single round against the current state. Worker failures
// are reported in the result; the receive rows of failed workers keep their
// previous contents and are decoded as such. Only a decoding error is
// returned.
func (c *Coordinator) RunRound(ctx context.Context) (*RoundResult, error) {
	c.mu.Lock()
	state, round, kind := c.state, c.round, RoundSteady
	if c.assignPending {
		kind = RoundAssignment
	}
	c.mu.Unlock()

	n := state.Config.ActiveWorkers
	res := &RoundResult{
		Round:    round,
		Kind:     kind,
		Workers:  n,
		Failures: map[int]error{},
	}

	var f task
	if kind == RoundAssignment {
		f = func(ctx context.Context, i int, addr string) error {
			return errors.WithStack(c.transport.Assign(ctx, addr, wire.EncodeAssignment(c.base, i)))
		}
	} else {
		res.Input = c.input(c.params.PayloadSize)
		snapshot := wire.EncodeSteady(res.Input, n)
		f = func(ctx context.Context, i int, addr string) error {
			resp, err := c.transport.Compute(ctx, addr, snapshot)
			if err != nil {
				return errors.WithStack(err)
			}
			out, err := wire.DecodeResult(resp, state.Config.ReceiveSize)
			if err != nil {
				return errors.WithStack(err)
			}
			return errors.WithStack(state.Receive.SetRow(i, out))
		}
	}

	start := time.Now()
	for i, err := range fanOut(ctx, c.addrs[:n], f) {
		if err != nil {
			res.Failures[i] = err
			recordTaskFailure(i)
			log.WithFields(log.Fields{
				"round":  round,
				"kind":   kind,
				"worker": i,
				"addr":   c.addrs[i],
				"error":  err.Error(),
			}).Warning("worker task failed")
		}
	}

	if kind == RoundSteady {
		blocks, err := coding.Decode(state)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding round %d", round)
		}
		res.Blocks = blocks
	}
	res.Duration = time.Since(start)

	c.mu.Lock()
	c.round++
	if kind == RoundAssignment && c.state == state {
		c.assignPending = false
	}
	c.mu.Unlock()

	recordRound(kind, n, res.Duration)
	return res, nil
}

func (c *Coordinator) Start() {
	c.muDie.Lock()
	c.started = true
	c.muDie.Unlock()
	c.t.Go(c.Run)
}

// Stop ends a started coordinator and waits for its run loop. It returns
// immediately if Start was never called.
func (c *Coordinator) Stop() error {
	c.muDie.Lock()
	if !c.started {
		c.muDie.Unlock()
		return nil
	}
	c.t.Kill(nil)
	c.muDie.Unlock()
	return c.t.Wait()
}

// Wait blocks until a started coordinator finishes its rounds or is stopped.
func (c *Coordinator) Wait() error {
	return c.t.Wait()
}

// Run executes rounds until the configured count is reached or the
// coordinator is stopped, consulting the policy before each round.
func (c *Coordinator) Run() error {
	ctx := c.t.Context(nil)
	for {
		select {
		case <-c.t.Dying():
			return c.finish()
		default:
		}

		round := c.Round()
		if c.rounds > 0 && round >= c.rounds {
			return c.finish()
		}
		if n, change := c.policy.Next(round, c.ActiveWorkers()); change {
			err := c.Reconfigure(n)
			if IsFatal(err) {
				return errors.WithStack(err)
			} else if err != nil {
				c.logFields(log.Fields{"error": err.Error()}).Warning("reconfiguration rejected")
			}
		}

		res, err := c.RunRound(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		select {
		case <-c.t.Dying():
			// Interrupted rounds are not recorded.
			return c.finish()
		default:
		}
		if err := c.record(res); err != nil {
			return errors.WithStack(err)
		}
	}
}

func (c *Coordinator) record(res *RoundResult) error {
	log.WithFields(log.Fields{
		"round":    res.Round,
		"kind":     res.Kind,
		"workers":  res.Workers,
		"failures": len(res.Failures),
		"elapsed":  res.Duration.String(),
	}).Debug("round complete")

	err := c.journal.Record(journal.RoundRecord{
		Round:    res.Round,
		Kind:     string(res.Kind),
		Workers:  res.Workers,
		Failures: len(res.Failures),
		Decoded:  res.Blocks != nil,
		Duration: res.Duration,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if res.Blocks != nil && !c.dumped {
		c.dumped = true
		if err := c.artifacts.WriteBlock(res.Blocks[0]); err != nil {
			log.Warningf("failed to write result block: %v", err)
		}
		if err := c.artifacts.WriteInputSum(res.Input.Sum()); err != nil {
			log.Warningf("failed to write input sum: %v", err)
		}
	}
	return nil
}

func (c *Coordinator) finish() error {
	series, err := c.journal.LatencySeries(c.warmup)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := c.artifacts.WriteLatencies(series); err != nil {
		log.Warningf("failed to write latency series: %v", err)
	}
	summary, err := c.journal.Summary(c.warmup)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, cs := range summary {
		log.WithFields(log.Fields{
			"workers": cs.Workers,
			"rounds":  cs.Rounds,
			"mean":    cs.Mean.String(),
		}).Info("average round latency")
	}
	return nil
}
