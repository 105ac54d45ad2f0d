package pipeline

import (
	"fmt"

	"github.com/kingrea/postpress/internal/easypost"
	"github.com/kingrea/postpress/internal/note"
	"github.com/kingrea/postpress/internal/rows"
)

// renderNotes produces one note document per row, re-reading the source so
// row i pairs with purchased shipment i by construction. Notes are keyed by
// tracking code, which only exists after purchase, so this stage runs last
// of the two.
func (p *Pipeline) renderNotes(purchased []*easypost.Shipment) error {
	layout := note.Layout{
		Font:     p.Config.Run.Note.Font,
		FontSize: p.Config.Run.Note.FontSize,
	}
	return p.Source.Each(func(index int, row rows.Row) error {
		if index >= len(purchased) {
			// The input grew between passes; refuse to guess the pairing.
			return &RenderError{Index: index,
				Err: fmt.Errorf("row %d has no purchased shipment", index)}
		}
		shipment := purchased[index]
		p.sayf("Generating note for %s", recipientName(shipment))
		data, err := note.Render(note.Content{
			Primary:   row.Get("CBI Message"),
			Sender:    row.Get("SendingFrom"),
			Secondary: row.Get("Generic Message"),
		}, layout)
		if err != nil {
			return &RenderError{Index: index, Err: err}
		}
		if err := p.Store.Write(noteRef(index, shipment), data); err != nil {
			return &RenderError{Index: index, Err: err}
		}
		return nil
	})
}
