package alloc

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
)

func newBump(t testing.TB, start, end uint64) *Bump {
	b := &Bump{}
	if err := b.Init(start, end); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestBumpScenario(t *testing.T) {
	b := newBump(t, 0x1000, 0x2000)
	steps := []struct {
		size, align uint64
		addr, next  uint64
		err         error
	}{
		{100, 16, 0x1000, 0x1064, nil},
		{50, 16, 0x1070, 0x10a2, nil},
		{4000, 16, 0, 0x10a2, ErrExhausted},
		{4000, 16, 0, 0x10a2, ErrExhausted},
	}
	for i, s := range steps {
		addr, err := b.Alloc(s.size, s.align)
		if errors.Cause(err) != s.err {
			t.Fatalf("step %d: err = %v, want %v", i, err, s.err)
		}
		if err == nil && addr != s.addr {
			t.Errorf("step %d: addr = %#x, want %#x", i, addr, s.addr)
		}
		if b.Cursor() != s.next {
			t.Errorf("step %d: cursor = %#x, want %#x", i, b.Cursor(), s.next)
		}
	}
	if st := b.Stats(); st.Allocs != 2 || st.Used() != 0xa2 || st.Remaining() != 0x2000-0x10a2 {
		t.Errorf("bad stats: %v", st)
	}
}

func TestBumpLifecycle(t *testing.T) {
	var b Bump
	if b.Ready() {
		t.Fatal("zero value reports ready")
	}
	if _, err := b.Alloc(1, 1); err != ErrNotReady {
		t.Errorf("alloc before init: %v", err)
	}
	if err := b.Init(0x2000, 0x1000); err != ErrBadRange {
		t.Errorf("inverted init: %v", err)
	}
	if b.Ready() {
		t.Fatal("failed init left allocator ready")
	}
	if err := b.Init(0x1000, 0x2000); err != nil {
		t.Fatal(err)
	}
	if err := b.Init(0x3000, 0x4000); err != ErrAlreadyInit {
		t.Errorf("second init: %v", err)
	}
	if b.Cursor() != 0x1000 || b.Limit() != 0x2000 {
		t.Errorf("second init changed state: cursor=%#x limit=%#x", b.Cursor(), b.Limit())
	}
}

func TestBumpBadAlign(t *testing.T) {
	b := newBump(t, 0x1000, 0x2000)
	for _, align := range []uint64{0, 3, 6, 24, 0x1001} {
		if _, err := b.Alloc(8, align); err != ErrBadAlign {
			t.Errorf("align %d: %v", align, err)
		}
	}
	if b.Cursor() != 0x1000 {
		t.Errorf("bad align moved cursor to %#x", b.Cursor())
	}
}

func TestBumpOverflow(t *testing.T) {
	top := ^uint64(0)
	b := newBump(t, top-0x100, top)

	// rounding up past the top of the address space
	if _, err := b.Alloc(1, 1<<63); err != ErrExhausted {
		t.Errorf("align overflow: %v", err)
	}
	// candidate + size wraps around
	if _, err := b.Alloc(top, 1); err != ErrExhausted {
		t.Errorf("size overflow: %v", err)
	}
	if b.Cursor() != top-0x100 {
		t.Errorf("overflow moved cursor to %#x", b.Cursor())
	}
	// exactly filling the heap is fine
	if addr, err := b.Alloc(0x100, 1); err != nil || addr != top-0x100 {
		t.Errorf("exact fill: %#x, %v", addr, err)
	}
	if _, err := b.Alloc(1, 1); err != ErrExhausted {
		t.Errorf("alloc on full heap: %v", err)
	}
	// zero-sized requests still fit on a full heap
	if _, err := b.Alloc(0, 1); err != nil {
		t.Errorf("zero-sized alloc on full heap: %v", err)
	}
}

func TestBumpFreeIsNoop(t *testing.T) {
	b := newBump(t, 0x1000, 0x2000)
	addr, _ := b.Alloc(0x100, 8)
	b.Free(addr, 0x100)
	if next, _ := b.Alloc(0x10, 8); next != 0x1100 {
		t.Errorf("free reclaimed memory: next alloc at %#x", next)
	}
}

// Random requests: every success is aligned, inside the heap and disjoint
// from every earlier success; every failure leaves the cursor alone.
func TestBumpProperties(t *testing.T) {
	const start, end = 0x10000, 0x20000
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 20; round++ {
		b := newBump(t, start+uint64(rng.Intn(64)), end)
		type span struct{ lo, hi uint64 }
		var spans []span
		for i := 0; i < 500; i++ {
			size := uint64(rng.Intn(0x800))
			align := uint64(1) << uint(rng.Intn(13))
			before := b.Cursor()
			addr, err := b.Alloc(size, align)
			if err != nil {
				if err != ErrExhausted {
					t.Fatalf("unexpected error: %v", err)
				}
				if b.Cursor() != before {
					t.Fatalf("failed alloc moved cursor %#x -> %#x", before, b.Cursor())
				}
				if _, again := b.Alloc(size, align); again != err || b.Cursor() != before {
					t.Fatalf("repeated failure differs: %v", again)
				}
				continue
			}
			if addr%align != 0 {
				t.Fatalf("addr %#x not aligned to %#x", addr, align)
			}
			if addr < start || addr+size > end {
				t.Fatalf("[%#x, %#x) outside heap", addr, addr+size)
			}
			for _, s := range spans {
				if size > 0 && s.hi > s.lo && addr < s.hi && s.lo < addr+size {
					t.Fatalf("[%#x, %#x) overlaps [%#x, %#x)", addr, addr+size, s.lo, s.hi)
				}
			}
			spans = append(spans, span{addr, addr + size})
		}
	}
}

func BenchmarkBumpAlloc(b *testing.B) {
	heap := newBump(b, 0, ^uint64(0))
	for i := 0; i < b.N; i++ {
		heap.Alloc(24, 8)
	}
}
