package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/kingrea/postpress/internal/easypost"
	"github.com/kingrea/postpress/internal/rows"
)

// resolveReferences fetches the shared origin address and parcel once, up
// front. A bad ID aborts the run here, before any shipment exists and before
// any postage cost is incurred.
func (p *Pipeline) resolveReferences(ctx context.Context) (*easypost.Address, *easypost.Parcel, error) {
	origin, err := p.Carrier.RetrieveAddress(ctx, p.Config.FromAddressID)
	if err != nil {
		return nil, nil, &ReferenceError{Kind: "address", ID: p.Config.FromAddressID, Err: err}
	}
	parcel, err := p.Carrier.RetrieveParcel(ctx, p.Config.ParcelID)
	if err != nil {
		return nil, nil, &ReferenceError{Kind: "parcel", ID: p.Config.ParcelID, Err: err}
	}
	return origin, parcel, nil
}

// createShipments requests one shipment per input row, in row order. The
// returned sequence is index-aligned with the rows; nothing is purchased yet.
func (p *Pipeline) createShipments(ctx context.Context, origin *easypost.Address, parcel *easypost.Parcel) ([]*easypost.Shipment, error) {
	var shipments []*easypost.Shipment
	err := p.Source.Each(func(index int, row rows.Row) error {
		p.sayf("Creating shipment to %s", row.Get("SendTo"))
		shipment, err := p.Carrier.CreateShipment(ctx, easypost.NewShipment{
			FromAddressID: origin.ID,
			ParcelID:      parcel.ID,
			ToAddress:     destinationAddress(row),
			Options: easypost.ShipmentOptions{
				LabelSize:   p.Config.Run.Label.Size,
				LabelFormat: p.Config.Run.Label.Format,
			},
		})
		if err != nil {
			return fmt.Errorf("pipeline: create shipment %d (%s): %w", index, row.Get("SendTo"), err)
		}
		shipments = append(shipments, shipment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shipments, nil
}

// destinationAddress builds the carrier address from a row, requesting
// strict delivery-point verification so undeliverable addresses fail at
// creation instead of after purchase.
func destinationAddress(row rows.Row) easypost.Address {
	return easypost.Address{
		Name:         row.Get("SendTo"),
		Street1:      row.Get("Address"),
		Street2:      row.Get("Address2"),
		City:         row.Get("City"),
		State:        normalizeState(row.Get("State")),
		Zip:          row.Get("Zip"),
		VerifyStrict: []string{"delivery"},
	}
}

// normalizeState truncates to the 2-letter code and uppercases it.
func normalizeState(state string) string {
	state = strings.TrimSpace(state)
	if len(state) > 2 {
		state = state[:2]
	}
	return strings.ToUpper(state)
}
