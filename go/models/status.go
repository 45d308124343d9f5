package models

import (
	"fmt"
	"io"

	"github.com/mgutz/ansi"
)

var (
	colorRegion = ansi.ColorCode("cyan")
	colorAddr   = ansi.ColorCode("yellow")
	colorEmpty  = ansi.ColorCode("black+h")
	colorBad    = ansi.ColorCode("red+b")
)

func paint(s, color string, on bool) string {
	if !on {
		return s
	}
	return color + s + ansi.Reset
}

// PrintLayout writes one line per region of l.
func PrintLayout(w io.Writer, l *Layout, color bool) {
	for _, r := range l.Regions() {
		name := paint(fmt.Sprintf("%-10s", r.Name), colorRegion, color)
		span := fmt.Sprintf("0x%08x-0x%08x", r.Start, r.End)
		switch {
		case r.Valid() != nil:
			span = paint(span, colorBad, color)
		case r.Empty():
			span = paint(span, colorEmpty, color)
		default:
			span = paint(span, colorAddr, color)
		}
		fmt.Fprintf(w, "  %s %s %#x\n", name, span, r.Len())
	}
}

// Paint colours s like the given ansi style when color is set.
func Paint(s, style string, color bool) string {
	return paint(s, ansi.ColorCode(style), color)
}
