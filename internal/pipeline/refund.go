package pipeline

import (
	"context"

	"github.com/kingrea/postpress/internal/easypost"
)

// compensate refunds every purchased shipment after a downstream failure.
// The sweep is best effort: a refund failure is recorded and narrated but
// never stops the remaining attempts, since aborting would strand more paid
// postage than it saves.
func (p *Pipeline) compensate(ctx context.Context, purchased []*easypost.Shipment) []RefundOutcome {
	outcomes := make([]RefundOutcome, 0, len(purchased))
	for index, shipment := range purchased {
		p.warnf("Refunding purchased postage: %s", shipment.TrackingCode)
		_, err := p.Carrier.Refund(ctx, shipment.ID)
		outcome := RefundOutcome{
			Index:        index,
			ShipmentID:   shipment.ID,
			TrackingCode: shipment.TrackingCode,
			Err:          err,
		}
		if outcome.Failed() {
			p.warnf("Error refunding postage for %s: %v", shipment.ID, err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
