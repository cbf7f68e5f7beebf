package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// PadRight pads or truncates a string to a fixed width.
func PadRight(str string, width int) string {
	w := runewidth.StringWidth(str)
	if w > width {
		return runewidth.Truncate(str, width, "...")
	}
	return str + strings.Repeat(" ", width-w)
}

// TruncateMiddle keeps the head and tail of str so that it fits in width cells.
// Tickets and paths stay recognisable from both ends.
func TruncateMiddle(str string, width int) string {
	if runewidth.StringWidth(str) <= width {
		return str
	}
	const sep = "…"
	if width <= 1 {
		return runewidth.Truncate(str, width, "")
	}
	keep := width - runewidth.StringWidth(sep)
	head := runewidth.Truncate(str, keep-keep/2, "")
	return head + sep + tailWidth(str, keep/2)
}

func tailWidth(str string, width int) string {
	runes := []rune(str)
	w, i := 0, len(runes)
	for i > 0 {
		rw := runewidth.RuneWidth(runes[i-1])
		if w+rw > width {
			break
		}
		w += rw
		i--
	}
	return string(runes[i:])
}
