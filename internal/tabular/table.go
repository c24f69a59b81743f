// Package tabular decodes comma-separated sources into header-indexed tables
// and encodes result frames back to CSV.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tigerroll/epiflow/internal/domain/model"
)

// Table is a decoded CSV source: a header and rows of raw cells.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewTable builds a table from a header and rows. Rows shorter than the header
// are padded with empty cells.
func NewTable(header []string, rows [][]string) (*Table, error) {
	t := &Table{Header: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		if _, dup := t.index[h]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", model.ErrSchema, h)
		}
		t.index[h] = i
	}
	for n, row := range rows {
		if len(row) > len(header) {
			return nil, fmt.Errorf("%w: row %d has %d cells, header has %d", model.ErrSchema, n+1, len(row), len(header))
		}
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Decode reads a whole CSV document. The first record is the header.
func Decode(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty document", model.ErrSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSchema, err)
	}
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSchema, err)
	}
	return NewTable(header, rows)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column returns the index of a column.
func (t *Table) Column(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Require returns the indexes of the named columns, or a schema error listing
// every missing one.
func (t *Table) Require(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	var missing []string
	for i, n := range names {
		j, ok := t.index[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		idx[i] = j
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", model.ErrSchema, strings.Join(missing, ", "))
	}
	return idx, nil
}

// ColumnValues returns every value of a column in row order.
func (t *Table) ColumnValues(name string) ([]string, error) {
	idx, err := t.Require(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx[0]]
	}
	return out, nil
}

// Others returns the header columns not listed in exclude, in header order.
func (t *Table) Others(exclude ...string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}
	var out []string
	for _, h := range t.Header {
		if _, ok := skip[h]; !ok {
			out = append(out, h)
		}
	}
	return out
}
