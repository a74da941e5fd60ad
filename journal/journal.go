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

// Package journal records per-round timing on the coordinator in a leveldb
// key-value store and writes the plain-text diagnostic artifacts of a run.
package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// RoundRecord is the journal entry of one completed round.
type RoundRecord struct {
	Round    int
	Kind     string
	Workers  int
	Failures int
	Decoded  bool
	Duration time.Duration
}

type Journal struct {
	path string
	db   *leveldb.DB
}

// Open opens the journal at path, creating it if needed. An empty path opens
// an in-memory journal that is discarded on Close.
func Open(path string) (*Journal, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			log.Debugf("creating round journal at: %q", path)
		}
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Journal{path: path, db: db}, nil
}

func (j *Journal) Close() error {
	return errors.WithStack(j.db.Close())
}

func roundKey(round int) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(round))
	return key[:]
}

// Record stores r, replacing any earlier record of the same round.
func (j *Journal) Record(r RoundRecord) error {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(&r)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(j.db.Put(roundKey(r.Round), buf.Bytes(), nil))
}

// Records returns every record in round order.
func (j *Journal) Records() ([]RoundRecord, error) {
	var records []RoundRecord
	iter := j.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		var r RoundRecord
		err := gob.NewDecoder(bytes.NewReader(iter.Value())).Decode(&r)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding round %d", binary.BigEndian.Uint64(iter.Key()))
		}
		records = append(records, r)
	}
	return records, errors.WithStack(iter.Error())
}

// LatencySeries returns the durations of decoded rounds numbered above skip.
// The first rounds of a run are skipped as warm-up.
func (j *Journal) LatencySeries(skip int) ([]time.Duration, error) {
	records, err := j.Records()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var series []time.Duration
	for _, r := range records {
		if r.Decoded && r.Round > skip {
			series = append(series, r.Duration)
		}
	}
	return series, nil
}

// ConfigSummary aggregates decoded rounds run with the same worker count.
type ConfigSummary struct {
	Workers int
	Rounds  int
	Mean    time.Duration
}

// Summary returns per worker count averages over the decoded rounds numbered
// above skip, ordered by worker count.
func (j *Journal) Summary(skip int) ([]ConfigSummary, error) {
	records, err := j.Records()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	totals := map[int]*ConfigSummary{}
	for _, r := range records {
		if !r.Decoded || r.Round <= skip {
			continue
		}
		cs, ok := totals[r.Workers]
		if !ok {
			cs = &ConfigSummary{Workers: r.Workers}
			totals[r.Workers] = cs
		}
		cs.Rounds++
		cs.Mean += r.Duration
	}
	summary := make([]ConfigSummary, 0, len(totals))
	for _, cs := range totals {
		cs.Mean /= time.Duration(cs.Rounds)
		summary = append(summary, *cs)
	}
	sort.Slice(summary, func(a, b int) bool { return summary[a].Workers < summary[b].Workers })
	return summary, nil
}
