// Package alloc provides the early boot heap: a bump allocator over one
// fixed region that never reclaims memory.
package alloc

import (
	"fmt"
	"math/bits"
)

// Layout describes one allocation request.
type Layout struct {
	Size  uint64
	Align uint64
}

func (l Layout) String() string {
	return fmt.Sprintf("Layout { size: %d, align: %d }", l.Size, l.Align)
}

// Allocator is anything that can take over from the boot heap. See
// rt.Runtime.Supersede.
type Allocator interface {
	Alloc(size, align uint64) (uint64, error)
	Free(addr, size uint64)
}

type Stats struct {
	Start, Next, End uint64
	Allocs           uint64
}

func (s Stats) Used() uint64      { return s.Next - s.Start }
func (s Stats) Remaining() uint64 { return s.End - s.Next }

func (s Stats) String() string {
	return fmt.Sprintf("heap 0x%x-0x%x next=0x%x used=%#x free=%#x allocs=%d",
		s.Start, s.End, s.Next, s.Used(), s.Remaining(), s.Allocs)
}

// Bump hands out addresses by advancing a cursor from the heap start to
// the heap end. The zero value is uninitialized; Init makes it ready
// exactly once.
//
// Bump does no locking. Boot runs in a single execution context; callers
// that share a Bump between goroutines must serialize access themselves.
type Bump struct {
	start, next, end uint64
	ready            bool
	allocs           uint64
}

var _ Allocator = (*Bump)(nil)

// Init points the allocator at [start, end). It fails without side effects
// if called twice or with start > end.
func (b *Bump) Init(start, end uint64) error {
	if b.ready {
		return ErrAlreadyInit
	}
	if start > end {
		return ErrBadRange
	}
	b.start, b.next, b.end = start, start, end
	b.ready = true
	return nil
}

func (b *Bump) Ready() bool { return b.ready }

// roundUp rounds addr up to a multiple of align, which must be a power of
// two. ok is false if the result does not fit in 64 bits.
func roundUp(addr, align uint64) (uint64, bool) {
	mask := align - 1
	sum, carry := bits.Add64(addr, mask, 0)
	return sum &^ mask, carry == 0
}

// Alloc reserves size bytes aligned to align and returns their address.
// A failed request leaves the allocator untouched, so repeating it fails
// the same way.
func (b *Bump) Alloc(size, align uint64) (uint64, error) {
	if !b.ready {
		return 0, ErrNotReady
	}
	if align == 0 || align&(align-1) != 0 {
		return 0, ErrBadAlign
	}
	addr, ok := roundUp(b.next, align)
	if !ok {
		return 0, ErrExhausted
	}
	next, carry := bits.Add64(addr, size, 0)
	if carry != 0 || next > b.end {
		return 0, ErrExhausted
	}
	b.next = next
	b.allocs++
	return addr, nil
}

// Free does nothing: the boot heap is never reclaimed, only superseded.
func (b *Bump) Free(addr, size uint64) {}

func (b *Bump) Cursor() uint64    { return b.next }
func (b *Bump) Limit() uint64     { return b.end }
func (b *Bump) Used() uint64      { return b.next - b.start }
func (b *Bump) Remaining() uint64 { return b.end - b.next }

func (b *Bump) Stats() Stats {
	return Stats{Start: b.start, Next: b.next, End: b.end, Allocs: b.allocs}
}
