package rows

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// xlsxSource reads the first sheet of a workbook using the same header
// contract as delimited text. The workbook is re-opened on every pass.
type xlsxSource struct {
	path string
}

func (s *xlsxSource) Headers() ([]string, error) {
	records, err := s.records()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("rows: %s is empty, expected a header row", s.path)
	}
	return records[0], nil
}

func (s *xlsxSource) Each(fn func(index int, row Row) error) error {
	records, err := s.records()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("rows: %s is empty, expected a header row", s.path)
	}
	headers := records[0]
	for index, cells := range records[1:] {
		if err := fn(index, makeRow(headers, cells)); err != nil {
			return err
		}
	}
	return nil
}

func (s *xlsxSource) records() ([][]string, error) {
	book, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("rows: open workbook %s: %w", s.path, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("rows: workbook %s has no sheets", s.path)
	}
	records, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("rows: read sheet %s: %w", sheets[0], err)
	}
	return records, nil
}
