package upload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

type jsonDecoder struct{}

func (jsonDecoder) Format() string { return "json" }

func (jsonDecoder) CanDecode(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".json")
}

// Decode accepts an array of records or a single record. Nested objects are
// flattened into dotted column names ("address.city"); arrays are kept as
// JSON text. Columns appear in order of first appearance.
func (jsonDecoder) Decode(data []byte) (*table.Frame, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeOrdered(dec)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("parse json: trailing data after top-level value")
	}

	var records []object
	switch t := v.(type) {
	case object:
		records = []object{t}
	case []any:
		for i, item := range t {
			obj, ok := item.(object)
			if !ok {
				return nil, fmt.Errorf("record %d is not an object", i)
			}
			records = append(records, obj)
		}
	default:
		return nil, errors.New("expected an array of records or a single object")
	}

	var header []string
	index := map[string]int{}
	flat := make([]map[string]string, len(records))
	for i, rec := range records {
		flat[i] = map[string]string{}
		flatten("", rec, func(key, val string) {
			if _, ok := index[key]; !ok {
				index[key] = len(header)
				header = append(header, key)
			}
			flat[i][key] = val
		})
	}
	rows := make([][]string, len(flat))
	for i, rec := range flat {
		row := make([]string, len(header))
		for key, val := range rec {
			row[index[key]] = val
		}
		rows[i] = row
	}
	return table.FromRecords(header, rows)
}

type member struct {
	key string
	val any
}

// object keeps JSON members in document order.
type object []member

func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		var obj object
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := kt.(string)
			val, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			obj = append(obj, member{key: key, val: val})
		}
		_, err := dec.Token()
		return obj, err
	case '[':
		arr := []any{}
		for dec.More() {
			val, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		_, err := dec.Token()
		return arr, err
	}
	return nil, fmt.Errorf("unexpected delimiter %q", d)
}

func flatten(prefix string, obj object, emit func(key, val string)) {
	for _, m := range obj {
		key := m.key
		if prefix != "" {
			key = prefix + "." + m.key
		}
		if nested, ok := m.val.(object); ok && len(nested) > 0 {
			flatten(key, nested, emit)
			continue
		}
		emit(key, scalarText(m.val))
	}
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "True"
		}
		return "False"
	}
	b, err := json.Marshal(plain(v))
	if err != nil {
		return ""
	}
	return string(b)
}

// plain converts ordered values back to encodable ones.
func plain(v any) any {
	switch t := v.(type) {
	case object:
		m := make(map[string]any, len(t))
		for _, mem := range t {
			m[mem.key] = plain(mem.val)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = plain(x)
		}
		return out
	}
	return v
}
