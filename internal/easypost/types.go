// internal/easypost/types.go
//
// Wire types for the subset of the EasyPost API this tool consumes. Fields
// the pipeline never reads are omitted.

package easypost

import "fmt"

// Address is a carrier-side address record. Destination addresses come back
// validated and normalized by the carrier.
type Address struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Street1 string `json:"street1,omitempty"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`

	// VerifyStrict requests hard verification; the carrier rejects the
	// address instead of flagging it. Request-only.
	VerifyStrict []string `json:"verify_strict,omitempty"`
}

// Parcel is a carrier-side parcel record (dimensions and weight).
type Parcel struct {
	ID     string  `json:"id,omitempty"`
	Length float64 `json:"length,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

// Rate is one priced shipping offer attached to a shipment.
type Rate struct {
	ID       string `json:"id"`
	Carrier  string `json:"carrier"`
	Service  string `json:"service"`
	Rate     string `json:"rate"`
	Currency string `json:"currency,omitempty"`
}

// PostageLabel points at the carrier-issued label document.
type PostageLabel struct {
	ID       string `json:"id,omitempty"`
	LabelURL string `json:"label_url"`
}

// Shipment tracks one parcel movement through creation, purchase and refund.
type Shipment struct {
	ID           string        `json:"id"`
	ToAddress    *Address      `json:"to_address,omitempty"`
	FromAddress  *Address      `json:"from_address,omitempty"`
	Parcel       *Parcel       `json:"parcel,omitempty"`
	Rates        []Rate        `json:"rates,omitempty"`
	SelectedRate *Rate         `json:"selected_rate,omitempty"`
	PostageLabel *PostageLabel `json:"postage_label,omitempty"`
	TrackingCode string        `json:"tracking_code,omitempty"`
	RefundStatus string        `json:"refund_status,omitempty"`
}

// ShipmentOptions are the fixed label rendering options sent at creation.
type ShipmentOptions struct {
	LabelSize   string `json:"label_size,omitempty"`
	LabelFormat string `json:"label_format,omitempty"`
}

// NewShipment is the creation request: a destination plus references to the
// pre-created origin address and parcel.
type NewShipment struct {
	FromAddressID string
	ParcelID      string
	ToAddress     Address
	Options       ShipmentOptions
}

// APIError is the carrier's error envelope.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("easypost: %s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("easypost: status %d: %s", e.Status, e.Message)
}
