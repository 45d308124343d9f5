package segment

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/models/mem"
)

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + i/251)
	}
	return p
}

func newMem(t *testing.T, regions ...models.Region) *mem.Mem {
	m := mem.NewMem(32, binary.LittleEndian)
	for _, r := range regions {
		if err := m.MemMap(r.Start, r.Len(), mem.PROT_RW, r.Name); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func TestRelocateData(t *testing.T) {
	for _, size := range []uint64{0, 1, 7, 0xfff, 0x1000, 0x1001, 0x2345} {
		l := &models.Layout{
			DataLoad: models.Region{Name: ".data.load", Start: 0x10000, End: 0x10000 + size},
			Data:     models.Region{Name: ".data", Start: 0x40000, End: 0x40000 + size},
		}
		m := newMem(t, models.Region{Name: "rom", Start: 0x10000, End: 0x20000}, models.Region{Name: "ram", Start: 0x40000, End: 0x50000})
		src := pattern(int(size))
		if err := m.MemWrite(l.DataLoad.Start, src); err != nil {
			t.Fatal(err)
		}
		// bytes just past .data must survive the copy
		m.MemWrite(l.Data.End, []byte{0xaa})

		if err := RelocateData(m, l); err != nil {
			t.Fatalf("size %#x: %v", size, err)
		}
		dst, err := m.MemRead(l.Data.Start, size)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(dst, src) {
			t.Errorf("size %#x: .data differs from its image", size)
		}
		if tail, _ := m.MemRead(l.Data.End, 1); tail[0] != 0xaa {
			t.Errorf("size %#x: copy ran past .data end", size)
		}
	}
}

func TestRelocateDataErrors(t *testing.T) {
	m := newMem(t, models.Region{Name: "ram", Start: 0x40000, End: 0x50000})
	l := &models.Layout{
		DataLoad: models.Region{Name: ".data.load", Start: 0x40000, End: 0x40100},
		Data:     models.Region{Name: ".data", Start: 0x48000, End: 0x48101},
	}
	if err := RelocateData(m, l); errors.Cause(err) != ErrSizeMismatch {
		t.Errorf("size mismatch: %v", err)
	}

	l.Data.End = 0x48100
	l.DataLoad = models.Region{Name: ".data.load", Start: 0x80000, End: 0x80100}
	err := RelocateData(m, l)
	if _, ok := errors.Cause(err).(*mem.MemError); !ok {
		t.Errorf("unmapped load image: expected MemError, got %v", err)
	}

	l.DataLoad = models.Region{Name: ".data.load", Start: 0x48080, End: 0x48180}
	if err := RelocateData(m, l); err == nil {
		t.Error("overlapping copy accepted")
	}
}

func TestZeroBSS(t *testing.T) {
	for _, size := range []uint64{0, 1, 0x800, 0x1000, 0x3003} {
		bss := models.Region{Name: ".bss", Start: 0x20010, End: 0x20010 + size}
		m := newMem(t, models.Region{Name: "ram", Start: 0x20000, End: 0x30000})
		Fill(m, models.Region{Name: "ram", Start: 0x20000, End: 0x30000}, 0xcc)

		if err := ZeroBSS(m, &models.Layout{BSS: bss}); err != nil {
			t.Fatalf("size %#x: %v", size, err)
		}
		got, _ := m.MemRead(bss.Start, size)
		if !bytes.Equal(got, make([]byte, size)) {
			t.Errorf("size %#x: .bss not zeroed", size)
		}
		edge, _ := m.MemRead(bss.Start-1, 1)
		after, _ := m.MemRead(bss.End, 1)
		if edge[0] != 0xcc || after[0] != 0xcc {
			t.Errorf("size %#x: zeroing leaked outside .bss", size)
		}
	}
}

func TestZeroBSSUnmapped(t *testing.T) {
	m := newMem(t, models.Region{Name: "ram", Start: 0x20000, End: 0x21000})
	l := &models.Layout{BSS: models.Region{Name: ".bss", Start: 0x20800, End: 0x21800}}
	if err := ZeroBSS(m, l); err == nil {
		t.Error("zeroing past mapped memory succeeded")
	}
}
