// Package console has the diagnostic sinks early boot code can print to.
package console

import (
	"fmt"
	"strings"

	"github.com/lunixbochs/vtclean"
)

const (
	VGA_BASE = 0xB8000
	VGA_COLS = 80
	VGA_ROWS = 25
	VGA_SIZE = VGA_COLS * VGA_ROWS * 2

	// light grey on black
	DefaultAttr = 0x07
)

// Memory is the physical memory holding the text buffer.
type Memory interface {
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error
}

// VGA renders text into a colour text mode buffer: one character byte and
// one attribute byte per cell.
type VGA struct {
	mem      Memory
	base     uint64
	row, col int
	Attr     byte
}

func NewVGA(m Memory, base uint64) *VGA {
	return &VGA{mem: m, base: base, Attr: DefaultAttr}
}

func (v *VGA) cell(row, col int) uint64 {
	return v.base + uint64(row*VGA_COLS+col)*2
}

func (v *VGA) Clear() error {
	blank := make([]byte, VGA_SIZE)
	for i := 1; i < len(blank); i += 2 {
		blank[i] = v.Attr
	}
	v.row, v.col = 0, 0
	return v.mem.MemWrite(v.base, blank)
}

func (v *VGA) scroll() error {
	rest := make([]byte, (VGA_ROWS-1)*VGA_COLS*2)
	if err := v.mem.MemReadInto(rest, v.cell(1, 0)); err != nil {
		return err
	}
	if err := v.mem.MemWrite(v.base, rest); err != nil {
		return err
	}
	last := make([]byte, VGA_COLS*2)
	for i := 1; i < len(last); i += 2 {
		last[i] = v.Attr
	}
	v.row = VGA_ROWS - 1
	return v.mem.MemWrite(v.cell(v.row, 0), last)
}

func (v *VGA) newline() error {
	v.col = 0
	v.row++
	if v.row == VGA_ROWS {
		return v.scroll()
	}
	return nil
}

func (v *VGA) putc(c byte) error {
	switch c {
	case '\n':
		return v.newline()
	case '\r':
		v.col = 0
		return nil
	case '\t':
		for v.col%8 != 7 {
			if err := v.putc(' '); err != nil {
				return err
			}
		}
		c = ' '
	}
	if c < 0x20 || c > 0x7e {
		c = '?'
	}
	if err := v.mem.MemWrite(v.cell(v.row, v.col), []byte{c, v.Attr}); err != nil {
		return err
	}
	v.col++
	if v.col == VGA_COLS {
		return v.newline()
	}
	return nil
}

// Write strips terminal escapes and renders what is left.
func (v *VGA) Write(p []byte) (int, error) {
	lines := strings.Split(string(p), "\n")
	for i, line := range lines {
		line = vtclean.Clean(line, false)
		for j := 0; j < len(line); j++ {
			if err := v.putc(line[j]); err != nil {
				return 0, err
			}
		}
		if i < len(lines)-1 {
			if err := v.newline(); err != nil {
				return 0, err
			}
		}
	}
	return len(p), nil
}

func (v *VGA) Puts(s string) error {
	_, err := v.Write([]byte(s))
	return err
}

func (v *VGA) PutHex(n uint32) error {
	return v.Puts(fmt.Sprintf("0x%08x", n))
}

// Lines returns the screen contents with trailing blanks trimmed.
func (v *VGA) Lines() ([]string, error) {
	buf := make([]byte, VGA_SIZE)
	if err := v.mem.MemReadInto(buf, v.base); err != nil {
		return nil, err
	}
	lines := make([]string, VGA_ROWS)
	row := make([]byte, VGA_COLS)
	for r := 0; r < VGA_ROWS; r++ {
		for c := 0; c < VGA_COLS; c++ {
			ch := buf[(r*VGA_COLS+c)*2]
			if ch == 0 {
				ch = ' '
			}
			row[c] = ch
		}
		lines[r] = strings.TrimRight(string(row), " ")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}
