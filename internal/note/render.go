// internal/note/render.go
//
// Renders the printed note that accompanies each label: a single fixed-size
// page with three free-text lines at fixed coordinates.

package note

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Page geometry in inches. The note is a 3.5x5.5 card printed portrait.
const (
	pageWidth  = 3.5
	pageHeight = 5.5
	textX      = 1.0
)

// Baselines from the top of the page for the three text lines.
var lineY = [3]float64{1.0, 3.0, 4.0}

// Layout selects the typeface for the note body.
type Layout struct {
	Font     string
	FontSize float64
}

// Content carries the three free-text fields placed on the page.
type Content struct {
	// Primary is the main message (the "CBI Message" input field).
	Primary string
	// Sender is the attribution line (the "SendingFrom" input field).
	Sender string
	// Secondary is the closing message (the "Generic Message" input field).
	Secondary string
}

// Render produces the one-page note document.
func Render(content Content, layout Layout) ([]byte, error) {
	font := layout.Font
	if font == "" {
		font = "Helvetica"
	}
	size := layout.FontSize
	if size == 0 {
		size = 10
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "in",
		Size:           fpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetFont(font, "", size)
	pdf.Text(textX, lineY[0], content.Primary)
	pdf.Text(textX, lineY[1], content.Sender)
	pdf.Text(textX, lineY[2], content.Secondary)
	if pdf.Err() {
		return nil, fmt.Errorf("note: render: %w", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("note: encode: %w", err)
	}
	return buf.Bytes(), nil
}
