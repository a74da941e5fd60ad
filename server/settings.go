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

package server

import (
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/errgo.v1"

	"elasticmv/coding"
	"elasticmv/metrics"
)

const (
	DefaultWorkerBind = ":80"
)

type WorkerConfig struct {
	Bind string `toml:"bind"`
}

const (
	DefaultRounds              = 1001
	DefaultWarmupRounds        = 100
	DefaultReconfigProbability = 0.02
	DefaultWorkersSep          = ","
)

type CoordinatorConfig struct {
	// Workers lists worker addresses in id order. If empty, they are read
	// from WorkersFile.
	Workers     []string `toml:"workers"`
	WorkersFile string   `toml:"workersFile"`
	WorkersSep  string   `toml:"workersSep"`

	Rounds       int `toml:"rounds"`
	WarmupRounds int `toml:"warmupRounds"`

	ReconfigProbability float64 `toml:"reconfigProbability"`
	// Weights biases the choice of the next worker count, keyed by count.
	Weights map[string]int `toml:"weights"`
	// Seed fixes the base matrix, inputs and reconfiguration draws. Zero
	// seeds from the clock.
	Seed int64 `toml:"seed"`

	RequestTimeoutSecs int `toml:"requestTimeoutSecs"`

	JournalPath string `toml:"journalPath"`
	ArtifactDir string `toml:"artifactDir"`
}

// WorkerWeights returns Weights keyed by worker count.
func (c *CoordinatorConfig) WorkerWeights() (map[int]int, error) {
	weights := make(map[int]int, len(c.Weights))
	for k, w := range c.Weights {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, errors.Errorf("invalid worker count %q in weights", k)
		}
		weights[n] = w
	}
	return weights, nil
}

type Settings struct {
	Coding      coding.Params     `toml:"coding"`
	Coordinator CoordinatorConfig `toml:"coordinator"`
	Worker      WorkerConfig      `toml:"worker"`

	Metrics metrics.Settings `toml:"metrics"`

	LogFile  string `toml:"logfile"`
	LogLevel string `toml:"loglevel"`
}

const (
	DefaultLogLevel = "INFO"
)

func DefaultSettings() Settings {
	return Settings{
		Coding: coding.DefaultParams(),
		Coordinator: CoordinatorConfig{
			WorkersSep:          DefaultWorkersSep,
			Rounds:              DefaultRounds,
			WarmupRounds:        DefaultWarmupRounds,
			ReconfigProbability: DefaultReconfigProbability,
		},
		Worker: WorkerConfig{
			Bind: DefaultWorkerBind,
		},
		Metrics:  *metrics.DefaultSettings(),
		LogLevel: DefaultLogLevel,
	}
}

func (s *Settings) Validate() error {
	if err := s.Coding.Validate(); err != nil {
		return errors.WithStack(err)
	}
	c := &s.Coordinator
	if c.Rounds < 0 || c.WarmupRounds < 0 {
		return errors.Errorf("negative round count")
	}
	if c.ReconfigProbability < 0 || c.ReconfigProbability > 1 {
		return errors.Errorf("reconfigProbability %v outside [0,1]", c.ReconfigProbability)
	}
	if c.RequestTimeoutSecs < 0 {
		return errors.Errorf("negative requestTimeoutSecs %d", c.RequestTimeoutSecs)
	}
	weights, err := c.WorkerWeights()
	if err != nil {
		return errors.WithStack(err)
	}
	for n := range weights {
		if !s.Coding.Supports(n) {
			return errors.Errorf("weight given for unsupported worker count %d", n)
		}
	}
	return nil
}

func ParseSettings(data string) (*Settings, error) {
	var doc struct {
		Elasticmv Settings `toml:"elasticmv"`
	}
	doc.Elasticmv = DefaultSettings()
	_, err := toml.Decode(data, &doc)
	if err != nil {
		return nil, errgo.Mask(err)
	}

	err = doc.Elasticmv.Validate()
	if err != nil {
		return nil, errgo.Mask(err)
	}

	return &doc.Elasticmv, nil
}

// WorkerAddrs returns the configured worker addresses, reading the address
// file if none are listed inline.
func (s *Settings) WorkerAddrs() ([]string, error) {
	c := &s.Coordinator
	if len(c.Workers) > 0 {
		return c.Workers, nil
	}
	if c.WorkersFile == "" {
		return nil, errors.New("no worker addresses configured")
	}
	addrs, err := ReadAddrList(c.WorkersFile, c.WorkersSep)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	if len(addrs) == 0 {
		return nil, errors.Errorf("no worker addresses in %q", c.WorkersFile)
	}
	return addrs, nil
}

// ReadAddrList reads addresses separated by sep from the file at path.
// Surrounding whitespace and empty entries are dropped.
func ReadAddrList(path, sep string) ([]string, error) {
	if sep == "" {
		sep = DefaultWorkersSep
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var addrs []string
	for _, field := range strings.Split(string(data), sep) {
		if addr := strings.TrimSpace(field); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs, nil
}
