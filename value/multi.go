package value

import (
	"strconv"

	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/internal/abi"
)

// NewMulti builds an array from rows of Go values. Short rows are padded
// with Nil; each element is converted with the full alternative set.
func NewMulti(rows [][]any) (Multi, error) {
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	if len(rows) == 0 || cols == 0 {
		return Multi{}, nil
	}
	n, ok := abi.SafeMulU32(uint32(len(rows)), uint32(cols))
	if !ok || n > abi.MaxCells {
		return Multi{}, errors.Overflow(errors.PhaseEncode, nil, uint64(len(rows))*uint64(cols), "multi")
	}

	m := Multi{Rows: len(rows), Columns: cols, Values: make([]Value, n)}
	for r, row := range rows {
		for c := 0; c < cols; c++ {
			if c >= len(row) || row[c] == nil {
				m.Values[r*cols+c] = Nil{}
				continue
			}
			v, err := From(row[c])
			if err != nil {
				if e, ok := err.(*errors.Error); ok {
					// Resolution errors are cached and shared; annotate a copy.
					at := *e
					at.Path = append([]string{"[" + strconv.Itoa(r) + "][" + strconv.Itoa(c) + "]"}, e.Path...)
					return Multi{}, &at
				}
				return Multi{}, err
			}
			m.Values[r*cols+c] = v
		}
	}
	return m, nil
}

// NewMultiOf builds a rows x cols array of Nil.
func NewMultiOf(rows, cols int) Multi {
	if rows <= 0 || cols <= 0 {
		return Multi{}
	}
	m := Multi{Rows: rows, Columns: cols, Values: make([]Value, rows*cols)}
	for i := range m.Values {
		m.Values[i] = Nil{}
	}
	return m
}

// Set stores v at row r, column c. Out of range positions are ignored.
func (m Multi) Set(r, c int, v Value) {
	if r < 0 || c < 0 || r >= m.Rows || c >= m.Columns {
		return
	}
	if v == nil {
		v = Nil{}
	}
	m.Values[r*m.Columns+c] = v
}
