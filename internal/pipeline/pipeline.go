// internal/pipeline/pipeline.go
//
// The fulfillment run: five strictly sequential stages, each consuming the
// output of the previous one plus the original rows (re-read, not cached, so
// the row/shipment index correlation holds by construction). The refund
// compensator is the only component invoked outside the forward flow, and
// only as a failure handler once postage has been purchased.

package pipeline

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/kingrea/postpress/internal/artifact"
	"github.com/kingrea/postpress/internal/config"
	"github.com/kingrea/postpress/internal/easypost"
	"github.com/kingrea/postpress/internal/logging"
	"github.com/kingrea/postpress/internal/rows"
)

// Carrier is the shipping API surface the run consumes. *easypost.Client
// implements it; tests substitute a scripted fake.
type Carrier interface {
	RetrieveAddress(ctx context.Context, id string) (*easypost.Address, error)
	RetrieveParcel(ctx context.Context, id string) (*easypost.Parcel, error)
	CreateShipment(ctx context.Context, req easypost.NewShipment) (*easypost.Shipment, error)
	Buy(ctx context.Context, shipmentID, rateID string) (*easypost.Shipment, error)
	Refund(ctx context.Context, shipmentID string) (*easypost.Shipment, error)
	FetchLabel(ctx context.Context, labelURL string) ([]byte, error)
}

// Merger combines a label and a note into one printable document.
// merge.PDFJam implements it.
type Merger interface {
	Merge(ctx context.Context, labelPath, notePath, outPath string) error
}

// Pipeline wires the collaborators for one run. The shipment sequence it
// builds is owned exclusively by the run and never shared.
type Pipeline struct {
	Carrier Carrier
	Source  rows.Source
	Store   *artifact.Store
	Merger  Merger
	Config  *config.Config
	Log     *logging.Logbook

	// Out receives per-row progress narration; nil silences it.
	Out io.Writer
}

// Run executes the batch end to end. Any error after the first successful
// purchase triggers a best-effort refund sweep over everything purchased so
// far before the error is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.New().String()
	p.sayf("Starting run %s", runID)

	origin, parcel, err := p.resolveReferences(ctx)
	if err != nil {
		p.failf("%v", err)
		return err
	}

	shipments, err := p.createShipments(ctx, origin, parcel)
	if err != nil {
		// Nothing has been purchased yet; abort without compensation.
		p.failf("%v", err)
		return err
	}

	purchased, err := p.purchasePostage(ctx, shipments)
	if err != nil {
		p.failf("%v", err)
		p.compensate(ctx, purchased)
		return err
	}

	if err := p.renderNotes(purchased); err != nil {
		p.failf("%v", err)
		p.compensate(ctx, purchased)
		return err
	}
	if err := p.mergeDocuments(ctx, purchased); err != nil {
		p.failf("%v", err)
		p.compensate(ctx, purchased)
		return err
	}
	if err := p.writeReport(purchased); err != nil {
		p.failf("%v", err)
		p.compensate(ctx, purchased)
		return err
	}

	p.sayf("Run %s complete: %d shipments", runID, len(purchased))
	return nil
}

// recipientName labels a shipment for narration.
func recipientName(s *easypost.Shipment) string {
	if s.ToAddress != nil && s.ToAddress.Name != "" {
		return s.ToAddress.Name
	}
	return s.ID
}

// labelRef, noteRef and mergedRef address the three artifacts of one index.
func labelRef(index int, s *easypost.Shipment) artifact.Ref {
	return artifact.Ref{Index: index, TrackingCode: s.TrackingCode, Kind: artifact.KindLabel}
}

func noteRef(index int, s *easypost.Shipment) artifact.Ref {
	return artifact.Ref{Index: index, TrackingCode: s.TrackingCode, Kind: artifact.KindNote}
}

func mergedRef(index int, s *easypost.Shipment) artifact.Ref {
	return artifact.Ref{Index: index, TrackingCode: s.TrackingCode, Kind: artifact.KindMerged}
}
