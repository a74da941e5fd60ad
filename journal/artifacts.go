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

package journal

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"elasticmv/linalg"
)

const (
	ResultFile   = "result.txt"
	InputSumFile = "vector_sum.txt"
	LatencyFile  = "time_log.txt"
)

// Artifacts writes plain-text diagnostics into a directory. A nil *Artifacts
// writes nothing.
type Artifacts struct {
	dir string
}

// NewArtifacts returns an artifact writer for dir, or nil if dir is empty.
func NewArtifacts(dir string) (*Artifacts, error) {
	if dir == "" {
		return nil, nil
	}
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Artifacts{dir: dir}, nil
}

func (a *Artifacts) Path(name string) string {
	return filepath.Join(a.dir, name)
}

func (a *Artifacts) write(name, content string) error {
	if a == nil {
		return nil
	}
	return errors.WithStack(ioutil.WriteFile(a.Path(name), []byte(content), 0644))
}

// WriteBlock dumps one reconstructed output block, one row per line.
func (a *Artifacts) WriteBlock(m *linalg.Matrix) error {
	return a.write(ResultFile, linalg.FormatMatrix(m, "\n", " ")+"\n")
}

// WriteInputSum records the sum of an input vector. With synthetic shards
// every entry of a correctly decoded block equals this sum.
func (a *Artifacts) WriteInputSum(sum float64) error {
	return a.write(InputSumFile, linalg.FormatVector(linalg.Vector{sum}, " ")+"\n")
}

// WriteLatencies writes a latency series in whole milliseconds.
func (a *Artifacts) WriteLatencies(series []time.Duration) error {
	ms := make([]string, len(series))
	for i, d := range series {
		ms[i] = strconv.FormatInt(d.Milliseconds(), 10)
	}
	return a.write(LatencyFile, strings.Join(ms, " ")+"\n")
}
