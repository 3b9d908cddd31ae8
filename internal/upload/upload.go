// Package upload decodes user-supplied files into tables.
package upload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

// Decoder turns the raw bytes of one file format into a table.
type Decoder interface {
	// Format is the short name recorded in the upload action ("csv", "json").
	Format() string
	CanDecode(filename string) bool
	Decode(data []byte) (*table.Frame, error)
}

var registry []Decoder

// Register adds a decoder to the registry. Later registrations do not
// override earlier ones for the same extension.
func Register(d Decoder) {
	registry = append(registry, d)
}

func init() {
	Register(delimitedDecoder{format: "csv", ext: ".csv", comma: ','})
	Register(delimitedDecoder{format: "tsv", ext: ".tsv", comma: '\t'})
	Register(xlsxDecoder{})
	Register(jsonDecoder{})
}

var (
	// ErrUnsupported indicates a file extension no decoder accepts.
	ErrUnsupported = errors.New("unsupported file format")
	// ErrEmpty indicates a file that decoded to no columns.
	ErrEmpty = errors.New("file contains no columns")
)

// Formats lists the registered format names.
func Formats() []string {
	out := make([]string, len(registry))
	for i, d := range registry {
		out[i] = d.Format()
	}
	return out
}

// FormatOf returns the lower-cased extension without the dot, which is what
// upload actions record as their file format.
func FormatOf(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

func decoderFor(filename string) (Decoder, error) {
	for _, d := range registry {
		if d.CanDecode(filename) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupported, filepath.Base(filename), strings.Join(Formats(), ", "))
}

// Decode selects a decoder from filename and decodes data. It returns the
// frame and the decoder's format name.
func Decode(filename string, data []byte) (*table.Frame, string, error) {
	d, err := decoderFor(filename)
	if err != nil {
		return nil, "", err
	}
	f, err := d.Decode(data)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", filepath.Base(filename), err)
	}
	if f.NumCols() == 0 {
		return nil, "", fmt.Errorf("decode %s: %w", filepath.Base(filename), ErrEmpty)
	}
	return f, d.Format(), nil
}

// DecodeFile reads path and decodes it.
func DecodeFile(path string) (*table.Frame, string, error) {
	if _, err := decoderFor(path); err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return Decode(path, data)
}

// DecodeDataURI decodes browser-style upload contents of the form
// "data:<content type>;base64,<payload>".
func DecodeDataURI(contents, filename string) (*table.Frame, string, error) {
	_, payload, ok := strings.Cut(contents, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data uri for %q", filename)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode base64: %w", err)
	}
	return Decode(filename, data)
}

// uniqueHeader renames blank and repeated column names so every column is
// addressable: blanks become "Unnamed: <i>" and repeats get ".1", ".2".
func uniqueHeader(header []string) []string {
	out := make([]string, len(header))
	used := map[string]bool{}
	repeats := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for used[name] {
			repeats[h]++
			name = h + "." + strconv.Itoa(repeats[h])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
