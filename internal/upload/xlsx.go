package upload

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

type xlsxDecoder struct{}

func (xlsxDecoder) Format() string { return "xlsx" }

func (xlsxDecoder) CanDecode(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

// Decode reads the first worksheet. The first row is the header.
func (xlsxDecoder) Decode(data []byte) (*table.Frame, error) {
	wb, err := openWorkbook(data)
	if err != nil {
		return nil, err
	}
	rows, err := wb.rows(wb.firstSheet())
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return table.New(), nil
	}
	return table.FromRecords(uniqueHeader(rows[0]), rows[1:])
}

// ReadSheet decodes a named worksheet of an .xlsx workbook.
func ReadSheet(data []byte, sheet string) (*table.Frame, error) {
	wb, err := openWorkbook(data)
	if err != nil {
		return nil, err
	}
	target, ok := wb.sheetPath(sheet)
	if !ok {
		return nil, fmt.Errorf("sheet %q not found; available sheets: %s", sheet, strings.Join(wb.sheetNames(), ", "))
	}
	rows, err := wb.rows(target)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return table.New(), nil
	}
	return table.FromRecords(uniqueHeader(rows[0]), rows[1:])
}

type sheetRef struct {
	name string
	rid  string
}

type workbook struct {
	zr     *zip.Reader
	sheets []sheetRef
	rels   map[string]string
	shared []string
}

func openWorkbook(data []byte) (*workbook, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	wb := &workbook{zr: zr, rels: map[string]string{}}
	if err := wb.scan("xl/workbook.xml", func(se xml.StartElement, _ *xml.Decoder) error {
		if se.Name.Local == "sheet" {
			wb.sheets = append(wb.sheets, sheetRef{name: attr(se, "name"), rid: attr(se, "id")})
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if err := wb.scan("xl/_rels/workbook.xml.rels", func(se xml.StartElement, _ *xml.Decoder) error {
		if se.Name.Local == "Relationship" {
			if id, target := attr(se, "Id"), attr(se, "Target"); id != "" && target != "" {
				wb.rels[id] = target
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if err := wb.scan("xl/sharedStrings.xml", func(se xml.StartElement, dec *xml.Decoder) error {
		if se.Name.Local != "si" {
			return nil
		}
		s, err := innerText(dec, "si")
		wb.shared = append(wb.shared, s)
		return err
	}); err != nil {
		return nil, err
	}
	return wb, nil
}

// scan streams a zip member's start elements to fn. Missing members are
// treated as empty.
func (wb *workbook) scan(name string, fn func(xml.StartElement, *xml.Decoder) error) error {
	rc, err := wb.open(name)
	if err != nil || rc == nil {
		return err
	}
	defer rc.Close()
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			if err := fn(se, dec); err != nil {
				return fmt.Errorf("parse %s: %w", name, err)
			}
		}
	}
}

func (wb *workbook) open(name string) (io.ReadCloser, error) {
	for _, f := range wb.zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", name, err)
			}
			return rc, nil
		}
	}
	return nil, nil
}

func (wb *workbook) sheetNames() []string {
	out := make([]string, len(wb.sheets))
	for i, s := range wb.sheets {
		out[i] = s.name
	}
	return out
}

// sheetPath resolves a sheet name to its zip member through the workbook
// relationships. Targets may be absolute ("/xl/...") or relative to xl/.
func (wb *workbook) sheetPath(name string) (string, bool) {
	for _, s := range wb.sheets {
		if !strings.EqualFold(s.name, name) {
			continue
		}
		target, ok := wb.rels[s.rid]
		if !ok {
			return "", false
		}
		target = strings.TrimPrefix(target, "/")
		if !strings.HasPrefix(target, "xl/") {
			target = path.Join("xl", target)
		}
		return target, true
	}
	return "", false
}

func (wb *workbook) firstSheet() string {
	if len(wb.sheets) > 0 {
		if p, ok := wb.sheetPath(wb.sheets[0].name); ok {
			return p
		}
	}
	return "xl/worksheets/sheet1.xml"
}

// rows reads every row of a worksheet as strings, placing cells by their
// reference so gaps stay empty. Rows are padded to the widest row.
func (wb *workbook) rows(member string) ([][]string, error) {
	var rows [][]string
	width := 0
	err := wb.scan(member, func(se xml.StartElement, dec *xml.Decoder) error {
		if se.Name.Local != "row" {
			return nil
		}
		row, err := wb.readRow(dec)
		if err != nil {
			return err
		}
		width = max(width, len(row))
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if len(rows[i]) < width {
			padded := make([]string, width)
			copy(padded, rows[i])
			rows[i] = padded
		}
	}
	return rows, nil
}

func (wb *workbook) readRow(dec *xml.Decoder) ([]string, error) {
	var row []string
	next := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "c" {
				continue
			}
			col := next
			if i := columnIndex(attr(t, "r")); i >= 0 {
				col = i
			}
			v, err := innerText(dec, "c")
			if err != nil {
				return nil, err
			}
			for len(row) <= col {
				row = append(row, "")
			}
			row[col] = wb.cellValue(attr(t, "t"), v)
			next = col + 1
		case xml.EndElement:
			if t.Name.Local == "row" {
				return row, nil
			}
		}
	}
}

func (wb *workbook) cellValue(kind, v string) string {
	switch kind {
	case "s":
		idx := 0
		for _, c := range v {
			if c < '0' || c > '9' {
				return ""
			}
			idx = idx*10 + int(c-'0')
		}
		if idx < len(wb.shared) {
			return wb.shared[idx]
		}
		return ""
	case "b":
		if v == "1" {
			return "True"
		}
		return "False"
	}
	return v
}

// innerText collects character data until the matching end element.
func innerText(dec *xml.Decoder, end string) (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return b.String(), err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			// formulas and phonetic runs are not part of the value
			if t.Name.Local == "f" || t.Name.Local == "rPh" {
				if err := dec.Skip(); err != nil {
					return b.String(), err
				}
				continue
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 && t.Name.Local != end {
				return b.String(), fmt.Errorf("unexpected </%s>", t.Name.Local)
			}
		case xml.CharData:
			b.Write(t)
		}
	}
	return b.String(), nil
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// columnIndex maps a cell reference like "C12" to a 0-based column.
func columnIndex(ref string) int {
	idx := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
	}
	return idx - 1
}
