// Package loader turns a kernel image or a layout profile into the boot
// image the machine places in memory.
package loader

import (
	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/models/mem"
)

// Segment is a block of bytes placed at a physical address.
type Segment struct {
	Addr uint64
	Data []byte
	Prot int
	Desc string
}

func (s Segment) End() uint64 {
	return s.Addr + uint64(len(s.Data))
}

// Image is everything the boot loader needs to start a kernel.
type Image struct {
	Source   string
	Entry    uint64
	Symbols  map[string]uint64
	Segments []Segment
	Cmdline  string
}

// Layout resolves the linker symbols into a validated memory layout.
func (i *Image) Layout() (*models.Layout, error) {
	l, err := models.LayoutFromSymbols(i.Symbols)
	if err != nil {
		return nil, err
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func segmentProt(r, w, x bool) int {
	prot := mem.PROT_NONE
	if r {
		prot |= mem.PROT_READ
	}
	if w {
		prot |= mem.PROT_WRITE
	}
	if x {
		prot |= mem.PROT_EXEC
	}
	return prot
}
