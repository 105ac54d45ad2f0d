package rows

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// csvSource reads delimited text with a required header row. The file is
// re-opened on every pass.
type csvSource struct {
	path string
}

func (s *csvSource) Headers() ([]string, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("rows: open %s: %w", s.path, err)
	}
	defer file.Close()

	headers, err := readHeader(csv.NewReader(file), s.path)
	if err != nil {
		return nil, err
	}
	return headers, nil
}

func (s *csvSource) Each(fn func(index int, row Row) error) error {
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("rows: open %s: %w", s.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headers, err := readHeader(reader, s.path)
	if err != nil {
		return err
	}

	index := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("rows: read %s record %d: %w", s.path, index, err)
		}
		if err := fn(index, makeRow(headers, record)); err != nil {
			return err
		}
		index++
	}
}

func readHeader(reader *csv.Reader, path string) ([]string, error) {
	headers, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("rows: %s is empty, expected a header row", path)
	}
	if err != nil {
		return nil, fmt.Errorf("rows: read %s header: %w", path, err)
	}
	if len(headers) > 0 {
		// Spreadsheet exports often carry a UTF-8 BOM on the first cell.
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}
	return headers, nil
}
