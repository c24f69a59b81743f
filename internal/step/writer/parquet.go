package writer

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/epiflow/internal/tabular"
)

// EncodeParquet writes f as a single-row-group Parquet file. Every column is
// an optional UTF8 string; empty cells become nulls.
func EncodeParquet(f *tabular.Frame, codec parquet.CompressionCodec) (out []byte, err error) {
	var buf bytes.Buffer
	pw, err := writer.NewCSVWriterFromWriter(parquetSchema(f.Header), &buf, 1)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = codec

	for _, row := range f.Rows {
		rec := make([]*string, len(row))
		for i := range row {
			if row[i] != "" {
				rec[i] = &row[i]
			}
		}
		if err := pw.WriteString(rec); err != nil {
			return nil, fmt.Errorf("write parquet row: %w", err)
		}
	}

	// WriteStop panics on some malformed schemas instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("parquet writer panicked: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finish parquet file: %w", err)
	}
	return buf.Bytes(), nil
}

func parquetSchema(header []string) []string {
	seen := make(map[string]int, len(header))
	md := make([]string, len(header))
	for i, h := range header {
		name := ColumnName(h)
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		md[i] = "name=" + name + ", type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"
	}
	return md
}

// ColumnName maps a CSV header to a Parquet-safe column name, e.g.
// "Country/Region" to "Country_Region".
func ColumnName(h string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(h) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "c_" + name
	}
	return name
}
