package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kingrea/postpress/internal/easypost"
)

// purchasePostage buys the cheapest eligible rate for each shipment in order
// and downloads its label. Buying is an irreversible financial action, so the
// first failure aborts the loop; the returned slice holds every shipment that
// reached a purchased state (including one whose label download failed) so
// the caller can compensate.
func (p *Pipeline) purchasePostage(ctx context.Context, shipments []*easypost.Shipment) ([]*easypost.Shipment, error) {
	filter := p.Config.Run.Carrier
	purchased := make([]*easypost.Shipment, 0, len(shipments))

	for index, shipment := range shipments {
		p.sayf("Purchasing postage to %s (%d/%d)", recipientName(shipment), index+1, len(shipments))

		rate, err := lowestRate(shipment.Rates, filter.Carriers, filter.Services)
		if err != nil {
			return purchased, &PurchaseError{Index: index, ShipmentID: shipment.ID, Err: err}
		}
		bought, err := p.Carrier.Buy(ctx, shipment.ID, rate.ID)
		if err != nil {
			return purchased, &PurchaseError{Index: index, ShipmentID: shipment.ID, Err: err}
		}
		purchased = append(purchased, bought)

		if bought.PostageLabel == nil || bought.PostageLabel.LabelURL == "" {
			return purchased, &PurchaseError{Index: index, ShipmentID: bought.ID,
				Err: fmt.Errorf("purchase returned no label reference")}
		}
		p.sayf("Downloading label %s", bought.PostageLabel.LabelURL)
		data, err := p.Carrier.FetchLabel(ctx, bought.PostageLabel.LabelURL)
		if err != nil {
			return purchased, &PurchaseError{Index: index, ShipmentID: bought.ID, Err: err}
		}
		if err := p.Store.Write(labelRef(index, bought), data); err != nil {
			return purchased, &PurchaseError{Index: index, ShipmentID: bought.ID, Err: err}
		}
	}
	return purchased, nil
}

// lowestRate picks the cheapest offer among the eligible carriers and
// services. Price ties keep the earliest offer, so the choice is stable
// across a run.
func lowestRate(rates []easypost.Rate, carriers, services []string) (easypost.Rate, error) {
	best := -1
	var bestPrice float64
	for i, rate := range rates {
		if !matchesAny(rate.Carrier, carriers) || !matchesAny(rate.Service, services) {
			continue
		}
		price, err := strconv.ParseFloat(rate.Rate, 64)
		if err != nil {
			return easypost.Rate{}, fmt.Errorf("parse rate %q for %s %s: %w",
				rate.Rate, rate.Carrier, rate.Service, err)
		}
		if best == -1 || price < bestPrice {
			best, bestPrice = i, price
		}
	}
	if best == -1 {
		return easypost.Rate{}, fmt.Errorf("no rate offer matches carriers %v services %v",
			carriers, services)
	}
	return rates[best], nil
}

func matchesAny(value string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if strings.EqualFold(strings.TrimSpace(candidate), value) {
			return true
		}
	}
	return false
}
