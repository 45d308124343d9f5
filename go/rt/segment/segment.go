// Package segment builds the writable memory image: it copies .data from
// its load address and zero-fills .bss.
package segment

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/models"
)

// chunk bounds the staging buffer used for copies and fills
const chunk = 0x1000

var ErrSizeMismatch = errors.New("segment: .data load and runtime sizes differ")

// Memory is the physical memory the segments live in.
type Memory interface {
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error
}

// RelocateData copies the .data image from l.DataLoad to l.Data in
// ascending address order. The two ranges must not overlap.
func RelocateData(m Memory, l *models.Layout) error {
	size := l.Data.Len()
	if size != l.DataLoad.Len() {
		return errors.Wrapf(ErrSizeMismatch, "load %#x, runtime %#x", l.DataLoad.Len(), size)
	}
	if l.Data.Overlaps(l.DataLoad) {
		return errors.Errorf("segment: %s overlaps %s", l.Data.Name, l.DataLoad.Name)
	}
	buf := make([]byte, chunk)
	for off := uint64(0); off < size; off += chunk {
		p := buf
		if size-off < chunk {
			p = buf[:size-off]
		}
		if err := m.MemReadInto(p, l.DataLoad.Start+off); err != nil {
			return errors.Wrap(err, "reading .data image")
		}
		if err := m.MemWrite(l.Data.Start+off, p); err != nil {
			return errors.Wrap(err, "writing .data")
		}
	}
	return nil
}

// ZeroBSS writes zero to every byte of l.BSS.
func ZeroBSS(m Memory, l *models.Layout) error {
	return Fill(m, l.BSS, 0)
}

// Fill sets every byte of r to b.
func Fill(m Memory, r models.Region, b byte) error {
	if err := r.Valid(); err != nil {
		return err
	}
	buf := make([]byte, chunk)
	if b != 0 {
		for i := range buf {
			buf[i] = b
		}
	}
	size := r.Len()
	for off := uint64(0); off < size; off += chunk {
		p := buf
		if size-off < chunk {
			p = buf[:size-off]
		}
		if err := m.MemWrite(r.Start+off, p); err != nil {
			return errors.Wrapf(err, "filling %s", r.Name)
		}
	}
	return nil
}
