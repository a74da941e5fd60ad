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

// Package wire encodes and decodes the payloads exchanged between the
// coordinator and its workers. Every payload is a URL-query-escaped,
// comma-separated list of decimal values.
package wire

import (
	"math"
	"net/url"

	"github.com/pkg/errors"

	"elasticmv/linalg"
)

const (
	// Param is the query parameter carrying the payload.
	Param = "vectIn"

	AssignPath  = "/worker/assign"
	ComputePath = "/worker"
	StatusPath  = "/status"
)

var ErrMalformedPayload = linalg.ErrMalformedPayload

// Encode escapes the comma-separated text form of v.
func Encode(v linalg.Vector) string {
	return url.QueryEscape(linalg.FormatVector(v, linalg.DefaultColumnSep))
}

// Decode reverses Encode.
func Decode(s string) (linalg.Vector, error) {
	text, err := url.QueryUnescape(s)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedPayload, "unescape: %v", err)
	}
	v, err := linalg.ParseVector(text, linalg.DefaultColumnSep)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return v, nil
}

// EncodeAssignment returns the payload assigning id to a worker: the
// row-major base matrix followed by the id.
func EncodeAssignment(base *linalg.Matrix, id int) string {
	return Encode(base.Flatten().Append(float64(id)))
}

// DecodeAssignment parses an assignment payload for a rows × columns base
// matrix.
func DecodeAssignment(s string, rows, columns int) (*linalg.Matrix, int, error) {
	v, err := Decode(s)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	if len(v) != rows*columns+1 {
		return nil, 0, errors.Wrapf(ErrMalformedPayload,
			"assignment has %d values, expected %d", len(v), rows*columns+1)
	}
	id, err := control(v[len(v)-1])
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	if id >= rows {
		return nil, 0, errors.Wrapf(ErrMalformedPayload, "worker id %d beyond %d base rows", id, rows)
	}
	base, err := linalg.NewMatrixFrom(rows, columns, v[:len(v)-1])
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	return base, id, nil
}

// EncodeSteady returns the payload of a steady round: the input values
// followed by the active worker count as a control field.
func EncodeSteady(input linalg.Vector, activeWorkers int) string {
	return Encode(input.Append(float64(activeWorkers)))
}

// DecodeSteady splits a steady payload into its input vector and control
// field. If inputLen is positive the input must have exactly that length.
func DecodeSteady(s string, inputLen int) (linalg.Vector, int, error) {
	v, err := Decode(s)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	if len(v) < 2 {
		return nil, 0, errors.Wrapf(ErrMalformedPayload, "steady payload has %d values", len(v))
	}
	if inputLen > 0 && len(v) != inputLen+1 {
		return nil, 0, errors.Wrapf(ErrMalformedPayload,
			"steady payload has %d values, expected %d", len(v), inputLen+1)
	}
	n, err := control(v[len(v)-1])
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	return v[:len(v)-1], n, nil
}

// DecodeResult parses a worker response of exactly expectLen values.
func DecodeResult(s string, expectLen int) (linalg.Vector, error) {
	v, err := Decode(s)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(v) != expectLen {
		return nil, errors.Wrapf(ErrMalformedPayload,
			"result has %d values, expected %d", len(v), expectLen)
	}
	return v, nil
}

func control(x float64) (int, error) {
	if x < 0 || x != math.Trunc(x) || x > math.MaxInt32 {
		return 0, errors.Wrapf(ErrMalformedPayload, "control field %v is not a count", x)
	}
	return int(x), nil
}
