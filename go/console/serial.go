package console

import (
	"io"

	"github.com/mgutz/ansi"
)

// Serial is a line to the host terminal.
type Serial struct {
	w     io.Writer
	color string
}

// NewSerial writes to w, in the given ansi style if style is not empty.
func NewSerial(w io.Writer, style string) *Serial {
	s := &Serial{w: w}
	if style != "" {
		s.color = ansi.ColorCode(style)
	}
	return s
}

func (s *Serial) Write(p []byte) (int, error) {
	if s.color == "" {
		return s.w.Write(p)
	}
	if _, err := io.WriteString(s.w, s.color+string(p)+ansi.Reset); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Multi writes to every sink and ignores the ones that fail.
type Multi []io.Writer

func (m Multi) Write(p []byte) (int, error) {
	for _, w := range m {
		if w != nil {
			w.Write(p)
		}
	}
	return len(p), nil
}
