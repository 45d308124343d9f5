package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// Region is a half-open physical address range [Start, End).
type Region struct {
	Name       string
	Start, End uint64
}

func (r Region) Len() uint64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

func (r Region) Empty() bool {
	return r.Len() == 0
}

func (r Region) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

// ContainsRange reports whether [addr, addr+size) lies inside the region.
func (r Region) ContainsRange(addr, size uint64) bool {
	end := addr + size
	return end >= addr && addr >= r.Start && end <= r.End
}

// Overlaps is false when either region is empty.
func (r Region) Overlaps(o Region) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.Start < o.End && o.Start < r.End
}

func (r Region) Valid() error {
	if r.Start > r.End {
		return errors.Errorf("%s: start %#x is past end %#x", r.Name, r.Start, r.End)
	}
	return nil
}

func (r Region) String() string {
	return fmt.Sprintf("%-10s 0x%08x-0x%08x (%#x bytes)", r.Name, r.Start, r.End, r.Len())
}

// linker symbols naming the boot memory image
const (
	SymDataLoad  = "__data_load"
	SymDataStart = "__data_start"
	SymDataEnd   = "__data_end"
	SymBSSStart  = "__bss_start"
	SymBSSEnd    = "__bss_end"
	SymHeapStart = "__heap_start"
	SymHeapEnd   = "__heap_end"
)

var LayoutSymbols = []string{
	SymDataLoad, SymDataStart, SymDataEnd,
	SymBSSStart, SymBSSEnd,
	SymHeapStart, SymHeapEnd,
}

// Layout is the link-time memory image the boot runtime works on.
type Layout struct {
	DataLoad Region // .data image in read-only storage
	Data     Region // .data at its runtime address
	BSS      Region
	Heap     Region
}

func (l *Layout) Regions() []Region {
	return []Region{l.DataLoad, l.Data, l.BSS, l.Heap}
}

// Validate checks start <= end for every region, that no two regions
// overlap and that both sides of the .data copy have the same size.
func (l *Layout) Validate() error {
	regions := l.Regions()
	for _, r := range regions {
		if err := r.Valid(); err != nil {
			return err
		}
	}
	for i, a := range regions {
		for _, b := range regions[i+1:] {
			if a.Overlaps(b) {
				return errors.Errorf("%s overlaps %s", a.Name, b.Name)
			}
		}
	}
	if l.Data.Len() != l.DataLoad.Len() {
		return errors.Errorf(".data size mismatch: load %#x, runtime %#x", l.DataLoad.Len(), l.Data.Len())
	}
	return nil
}

// LayoutFromSymbols builds a Layout from resolved linker symbols. The link
// step only exports where the .data image starts, so its end is derived
// from the runtime .data size.
func LayoutFromSymbols(syms map[string]uint64) (*Layout, error) {
	for _, name := range LayoutSymbols {
		if _, ok := syms[name]; !ok {
			return nil, errors.Errorf("missing linker symbol %s", name)
		}
	}
	l := &Layout{
		Data: Region{".data", syms[SymDataStart], syms[SymDataEnd]},
		BSS:  Region{".bss", syms[SymBSSStart], syms[SymBSSEnd]},
		Heap: Region{"heap", syms[SymHeapStart], syms[SymHeapEnd]},
	}
	load := syms[SymDataLoad]
	l.DataLoad = Region{".data.load", load, load + l.Data.Len()}
	if l.DataLoad.End < load {
		return nil, errors.Errorf("%s + .data size overflows", SymDataLoad)
	}
	return l, nil
}
