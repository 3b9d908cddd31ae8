package upload

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

type delimitedDecoder struct {
	format string
	ext    string
	comma  rune
}

func (d delimitedDecoder) Format() string { return d.format }

func (d delimitedDecoder) CanDecode(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), d.ext)
}

func (d delimitedDecoder) Decode(data []byte) (*table.Frame, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = d.comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table.New(), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
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
	return table.FromRecords(uniqueHeader(header), rows)
}
