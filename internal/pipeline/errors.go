// internal/pipeline/errors.go
//
// Error taxonomy for the fulfillment run. Errors raised before the first
// purchase abort cleanly; anything after a purchase escalates to the refund
// compensator before the run is reported as failed.

package pipeline

import "fmt"

// ReferenceError reports that a shared carrier entity (origin address or
// parcel) could not be resolved. Raised before any shipment is created, so
// no compensating action is needed.
type ReferenceError struct {
	Kind string // "address" or "parcel"
	ID   string
	Err  error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("pipeline: resolve %s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *ReferenceError) Unwrap() error { return e.Err }

// PurchaseError reports the shipment index that aborted the purchase loop.
type PurchaseError struct {
	Index      int
	ShipmentID string
	Err        error
}

func (e *PurchaseError) Error() string {
	return fmt.Sprintf("pipeline: purchase shipment %d (%s): %v", e.Index, e.ShipmentID, e.Err)
}

func (e *PurchaseError) Unwrap() error { return e.Err }

// RenderError reports a note rendering failure after purchase.
type RenderError struct {
	Index int
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("pipeline: render note %d: %v", e.Index, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// MergeError reports a label/note merge failure after purchase.
type MergeError struct {
	Index int
	Err   error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("pipeline: merge document %d: %v", e.Index, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// ReportError reports a reconciliation report failure after purchase.
type ReportError struct {
	Err error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("pipeline: write report: %v", e.Err)
}

func (e *ReportError) Unwrap() error { return e.Err }

// RefundOutcome is the result of one refund attempt during the compensating
// sweep. A failed outcome is recorded, never fatal: the sweep always visits
// every purchased shipment.
type RefundOutcome struct {
	Index        int
	ShipmentID   string
	TrackingCode string
	Err          error
}

// Failed reports whether the refund attempt errored.
func (o RefundOutcome) Failed() bool { return o.Err != nil }
