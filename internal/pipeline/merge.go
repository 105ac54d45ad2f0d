package pipeline

import (
	"context"

	"github.com/kingrea/postpress/internal/easypost"
)

// mergeDocuments combines each label with its note into one printable page.
// The merge is delegated to the external collaborator; a single failure
// aborts the remaining merges.
func (p *Pipeline) mergeDocuments(ctx context.Context, purchased []*easypost.Shipment) error {
	for index, shipment := range purchased {
		p.sayf("Merging label and note for %s", recipientName(shipment))
		err := p.Merger.Merge(ctx,
			p.Store.Path(labelRef(index, shipment)),
			p.Store.Path(noteRef(index, shipment)),
			p.Store.Path(mergedRef(index, shipment)),
		)
		if err != nil {
			return &MergeError{Index: index, Err: err}
		}
	}
	return nil
}
