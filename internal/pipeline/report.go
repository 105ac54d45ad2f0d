package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"github.com/kingrea/postpress/internal/easypost"
	"github.com/kingrea/postpress/internal/rows"
)

// Report columns appended after the (sorted) original fields.
const (
	columnTracking = "Tracking Code"
	columnMerged   = "Label And Note"
)

// writeReport emits the reconciliation CSV: one row per shipment, original
// fields in sorted name order plus the tracking code and merged-document
// path. The report is only meaningful for a fully completed batch, so any
// failure here aborts and escalates like the earlier stages.
func (p *Pipeline) writeReport(purchased []*easypost.Shipment) error {
	p.sayf("Writing results to %s", p.Config.ReportPath())

	headers, err := p.Source.Headers()
	if err != nil {
		return &ReportError{Err: err}
	}
	fields := append([]string{}, headers...)
	sort.Strings(fields)
	columns := append(fields, columnTracking, columnMerged)

	file, err := os.Create(p.Config.ReportPath())
	if err != nil {
		return &ReportError{Err: err}
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(columns); err != nil {
		return &ReportError{Err: err}
	}

	err = p.Source.Each(func(index int, row rows.Row) error {
		if index >= len(purchased) {
			return &ReportError{Err: fmt.Errorf("row %d has no purchased shipment", index)}
		}
		shipment := purchased[index]
		record := make([]string, 0, len(columns))
		for _, field := range fields {
			record = append(record, row.Get(field))
		}
		record = append(record, shipment.TrackingCode, p.Store.Path(mergedRef(index, shipment)))
		if err := writer.Write(record); err != nil {
			return &ReportError{Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return &ReportError{Err: err}
	}
	return nil
}
