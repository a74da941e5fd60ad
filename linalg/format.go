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

package linalg

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	DefaultColumnSep = ","
	DefaultRowSep    = ";"
)

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// FormatVector renders v as decimal text joined by sep.
func FormatVector(v Vector, sep string) string {
	var b strings.Builder
	for i, x := range v {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(formatFloat(x))
	}
	return b.String()
}

// ParseVector parses decimal text joined by sep. Surrounding whitespace and a
// trailing separator are ignored; an empty string is an empty vector.
func ParseVector(s, sep string) (Vector, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, sep)
	if s == "" {
		return Vector{}, nil
	}
	fields := strings.Split(s, sep)
	v := make(Vector, len(fields))
	for i, field := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedPayload, "element %d: %v", i, err)
		}
		v[i] = x
	}
	return v, nil
}

// FormatMatrix renders m with columns joined by colSep and rows by rowSep.
func FormatMatrix(m *Matrix, rowSep, colSep string) string {
	var b strings.Builder
	for i := 0; i < m.rows; i++ {
		if i > 0 {
			b.WriteString(rowSep)
		}
		b.WriteString(FormatVector(m.rowSlice(i), colSep))
	}
	return b.String()
}

// ParseMatrix parses the output of FormatMatrix. Every row must have the same
// number of columns.
func ParseMatrix(s, rowSep, colSep string) (*Matrix, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, rowSep)
	if s == "" {
		return NewMatrix(0, 0), nil
	}
	lines := strings.Split(s, rowSep)
	var flat Vector
	columns := -1
	for i, line := range lines {
		row, err := ParseVector(line, colSep)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		if columns < 0 {
			columns = len(row)
		} else if len(row) != columns {
			return nil, errors.Wrapf(ErrMalformedPayload,
				"row %d has %d columns, expected %d", i, len(row), columns)
		}
		flat = append(flat, row...)
	}
	return NewMatrixFrom(len(lines), columns, flat)
}
