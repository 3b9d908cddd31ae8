package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV decodes a header row followed by records. Header names are kept
// verbatim apart from a leading byte order mark. An empty input yields an
// empty frame.
func ReadCSV(r io.Reader) (*Frame, error) {
	return ReadDelimited(r, ',')
}

// ReadDelimited is ReadCSV with a custom separator.
func ReadDelimited(r io.Reader, comma rune) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comma = comma
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New(), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimPrefix(header[i], "\ufeff")
	}
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, rec)
	}
	return FromRecords(header, rows)
}

// WriteCSV encodes the frame with a header row and no index column. Nulls are
// written as empty fields.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(f.Records()); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
