package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// Frame is a fully materialised output table.
type Frame struct {
	Header []string
	Rows   [][]string
}

// Append adds a row. It panics when the width does not match the header, which
// is always a programming error in the caller.
func (f *Frame) Append(row ...string) {
	if len(row) != len(f.Header) {
		panic(fmt.Sprintf("tabular: row has %d cells, header has %d", len(row), len(f.Header)))
	}
	f.Rows = append(f.Rows, row)
}

// WriteCSV encodes the frame with a header line.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(f.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// CSV returns the encoded frame.
func (f *Frame) CSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Table converts the frame into a Table, e.g. to read an artifact back.
func (f *Frame) Table() (*Table, error) {
	return NewTable(f.Header, f.Rows)
}
