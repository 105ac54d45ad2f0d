package pipeline

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	stepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00BFFF"))
	refundStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD93D"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
)

// sayf narrates normal per-row progress and mirrors it to the logbook.
func (p *Pipeline) sayf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	p.Log.Info("%s", message)
	if p.Out != nil {
		fmt.Fprintln(p.Out, stepStyle.Render(message))
	}
}

// warnf narrates non-fatal problems, such as a failed refund attempt.
func (p *Pipeline) warnf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	p.Log.Warn("%s", message)
	if p.Out != nil {
		fmt.Fprintln(p.Out, refundStyle.Render(message))
	}
}

// failf narrates the error that aborted the run.
func (p *Pipeline) failf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	p.Log.Error("%s", message)
	if p.Out != nil {
		fmt.Fprintln(p.Out, failStyle.Render(message))
	}
}
