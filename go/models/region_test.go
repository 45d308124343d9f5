package models

import (
	"strings"
	"testing"
)

func testSymbols() map[string]uint64 {
	return map[string]uint64{
		SymDataLoad:  0x100000,
		SymDataStart: 0x200000,
		SymDataEnd:   0x200040,
		SymBSSStart:  0x200040,
		SymBSSEnd:    0x201000,
		SymHeapStart: 0x300000,
		SymHeapEnd:   0x400000,
	}
}

func TestRegion(t *testing.T) {
	r := Region{"heap", 0x1000, 0x2000}
	if r.Len() != 0x1000 {
		t.Errorf("Len() = %#x", r.Len())
	}
	if !r.Contains(0x1000) || !r.Contains(0x1fff) || r.Contains(0x2000) || r.Contains(0xfff) {
		t.Error("Contains() failed")
	}
	if !r.ContainsRange(0x1000, 0x1000) || r.ContainsRange(0x1800, 0x1000) || r.ContainsRange(0xffffffffffffff00, 0x1000) {
		t.Error("ContainsRange() failed")
	}
	if !r.Overlaps(Region{"", 0x1fff, 0x3000}) || r.Overlaps(Region{"", 0x2000, 0x3000}) {
		t.Error("Overlaps() failed")
	}
	if r.Overlaps(Region{"", 0x1800, 0x1800}) {
		t.Error("empty region overlaps")
	}
	if err := (Region{"bad", 2, 1}).Valid(); err == nil {
		t.Error("inverted region validated")
	}
}

func TestLayoutFromSymbols(t *testing.T) {
	l, err := LayoutFromSymbols(testSymbols())
	if err != nil {
		t.Fatal(err)
	}
	if l.DataLoad.Start != 0x100000 || l.DataLoad.End != 0x100040 {
		t.Errorf("bad derived load range: %v", l.DataLoad)
	}
	if err := l.Validate(); err != nil {
		t.Errorf("valid layout rejected: %v", err)
	}

	syms := testSymbols()
	delete(syms, SymHeapEnd)
	if _, err := LayoutFromSymbols(syms); err == nil || !strings.Contains(err.Error(), SymHeapEnd) {
		t.Errorf("missing symbol not reported: %v", err)
	}
}

func TestLayoutValidate(t *testing.T) {
	cases := []struct {
		name string
		edit func(l *Layout)
	}{
		{"inverted bss", func(l *Layout) { l.BSS.Start, l.BSS.End = l.BSS.End, l.BSS.Start }},
		{"heap over bss", func(l *Layout) { l.Heap.Start = l.BSS.Start + 8 }},
		{"data over load", func(l *Layout) { l.DataLoad = Region{".data.load", 0x200000, 0x200040} }},
		{"size mismatch", func(l *Layout) { l.DataLoad.End-- }},
	}
	for _, c := range cases {
		l, _ := LayoutFromSymbols(testSymbols())
		c.edit(l)
		if err := l.Validate(); err == nil {
			t.Errorf("%s: layout validated", c.name)
		}
	}
}
