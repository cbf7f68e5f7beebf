package ui

import (
	"fmt"
	"strings"

	"github.com/rescp17/ticketShare/internal/session"
	"github.com/rescp17/ticketShare/internal/style"
	"github.com/rescp17/ticketShare/internal/util"
)

const barWidth = 40

// renderBar draws a fixed-width bar. Byte counts are shown once a real total is known.
func renderBar(p session.Progress, width int) string {
	pct := p.Percent()
	filled := int(float64(width) * pct / 100)
	bar := style.BarFilledStyle.Render(strings.Repeat("█", filled)) +
		style.BarEmptyStyle.Render(strings.Repeat("░", width-filled))

	line := bar + " " + util.FormatPercent(pct)
	if p.Total > 0 && p.Total != session.DefaultTotal {
		line += fmt.Sprintf("  %s / %s", util.FormatSize(min(p.Done, p.Total)), util.FormatSize(p.Total))
	}
	return line
}
