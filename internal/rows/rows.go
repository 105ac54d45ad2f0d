// internal/rows/rows.go
//
// Row sources produce the ordered recipient records the pipeline is built
// around. A source is lazy and restartable: every stage that needs the rows
// re-reads the file instead of sharing an in-memory list, which keeps the
// row/shipment index correlation trivially correct as long as the input file
// is not mutated during a run.

package rows

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// RequiredFields must appear in the header row of every input file. Extra
// fields are carried through to the reconciliation report untouched.
var RequiredFields = []string{
	"SendTo",
	"Address",
	"Address2",
	"City",
	"State",
	"Zip",
	"CBI Message",
	"SendingFrom",
	"Generic Message",
}

// Row is one recipient record. Its identity is its 0-based position in the
// input sequence; the struct itself is immutable once read.
type Row struct {
	Fields map[string]string
}

// Get returns the named field, or "" when absent.
func (r Row) Get(name string) string {
	return r.Fields[name]
}

// Source is a restartable, finite, ordered sequence of rows.
type Source interface {
	// Headers returns the header row in file order.
	Headers() ([]string, error)

	// Each re-reads the file from the start and invokes fn for every row in
	// order. The first error from fn stops iteration and is returned.
	Each(fn func(index int, row Row) error) error
}

// NotFoundError reports a missing input file. It is checked eagerly, before
// any carrier call is made, so a typo never costs postage.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("rows: input file %s does not exist", e.Path)
}

// Open inspects path and returns the matching source. XLSX workbooks are
// selected by extension; everything else is treated as delimited text.
func Open(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("rows: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("rows: %s is a directory, expected a file", path)
	}

	var src Source
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		src = &xlsxSource{path: path}
	default:
		src = &csvSource{path: path}
	}

	headers, err := src.Headers()
	if err != nil {
		return nil, err
	}
	if missing := missingFields(headers); len(missing) > 0 {
		return nil, fmt.Errorf("rows: %s is missing required fields: %s",
			path, strings.Join(missing, ", "))
	}
	return src, nil
}

func missingFields(headers []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	var missing []string
	for _, field := range RequiredFields {
		if !present[field] {
			missing = append(missing, field)
		}
	}
	return missing
}

// makeRow zips headers with cells, padding short records with "".
func makeRow(headers, cells []string) Row {
	fields := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(cells) {
			fields[h] = cells[i]
		} else {
			fields[h] = ""
		}
	}
	return Row{Fields: fields}
}
