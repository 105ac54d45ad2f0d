// internal/merge/pdfjam.go
//
// The merge step is an external collaborator: pdfjam places the label and
// note side by side on one landscape page. A non-zero exit is a failure.

package merge

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// PDFJam shells out to the pdfjam tool.
type PDFJam struct {
	// Binary overrides the executable name; tests point it at a stub.
	Binary string
}

// Merge combines labelPath and notePath into a 2-up landscape page at outPath.
func (p *PDFJam) Merge(ctx context.Context, labelPath, notePath, outPath string) error {
	binary := p.Binary
	if binary == "" {
		binary = "pdfjam"
	}
	args := []string{
		"--landscape",
		"--offset", "1cm 0cm",
		"--nup", "2x1",
		labelPath, notePath,
		"--outfile", outPath,
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("merge: %s: %w: %s", outPath, err, detail)
		}
		return fmt.Errorf("merge: %s: %w", outPath, err)
	}
	return nil
}
