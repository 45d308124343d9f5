// Package rt is the first code to run after the boot loader. Start takes
// the handoff from the entry stub, builds the writable memory image,
// brings up the boot heap and jumps into the kernel.
package rt

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/models/trace"
	"github.com/lunixbochs/bootcorn/go/rt/alloc"
	"github.com/lunixbochs/bootcorn/go/rt/fault"
	"github.com/lunixbochs/bootcorn/go/rt/handoff"
	"github.com/lunixbochs/bootcorn/go/rt/segment"
)

// Entry is the kernel entry point. It must never return.
type Entry func(magic uint32, mbi uint64)

type Stage int

const (
	StageReset Stage = iota
	StageValidated
	StageRelocated
	StageZeroed
	StageHeapReady
	StageKernel
)

var stageNames = []string{"reset", "validated", "relocated", "zeroed", "heap-ready", "kernel"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Runtime owns the boot heap and the order in which the machine is
// brought up. It is not safe for concurrent use: boot has exactly one
// execution context.
type Runtime struct {
	Mem    segment.Memory
	Layout *models.Layout
	Heap   *alloc.Bump
	Fault  *fault.Handler
	Kernel Entry

	// Trace, if set, receives every boot event.
	Trace func(trace.Op)

	Output  io.Writer
	Verbose bool

	stage    Stage
	failures uint64
	// later, once set, serves every allocation instead of Heap
	later alloc.Allocator
}

func (r *Runtime) Stage() Stage { return r.stage }

// Failures counts allocation requests the heap turned down.
func (r *Runtime) Failures() uint64 { return r.failures }

func (r *Runtime) printf(format string, args ...interface{}) {
	if r.Verbose && r.Output != nil {
		fmt.Fprintf(r.Output, format, args...)
	}
}

func (r *Runtime) trace(op trace.Op) {
	if r.Trace != nil {
		r.Trace(op)
	}
}

// die hands a fatal error to the panic handler, which does not return.
func (r *Runtime) die(err error, what string) {
	r.Fault.Panic(fault.Here(1, "%s: %v", what, err))
}

// Start runs the boot sequence. It never returns: it either ends in the
// kernel or halts in the panic handler.
func (r *Runtime) Start(magic uint32, mbi uint64) {
	r.trace(&trace.OpHandoff{Magic: magic, Info: mbi})
	if err := handoff.Validate(magic); err != nil {
		r.die(err, "handoff")
	}
	r.stage = StageValidated

	l := r.Layout
	r.printf("[relocate .data 0x%x -> 0x%x (%#x bytes)]\n", l.DataLoad.Start, l.Data.Start, l.Data.Len())
	if err := segment.RelocateData(r.Mem, l); err != nil {
		r.die(err, "relocate")
	}
	r.trace(&trace.OpCopy{Src: l.DataLoad.Start, Dst: l.Data.Start, Size: l.Data.Len()})
	r.stage = StageRelocated

	r.printf("[zero .bss 0x%x (%#x bytes)]\n", l.BSS.Start, l.BSS.Len())
	if err := segment.ZeroBSS(r.Mem, l); err != nil {
		r.die(err, "zero bss")
	}
	r.trace(&trace.OpZero{Addr: l.BSS.Start, Size: l.BSS.Len()})
	r.stage = StageZeroed

	r.printf("[heap 0x%x-0x%x]\n", l.Heap.Start, l.Heap.End)
	if err := r.Heap.Init(l.Heap.Start, l.Heap.End); err != nil {
		r.die(err, "heap init")
	}
	r.trace(&trace.OpHeapInit{Start: l.Heap.Start, End: l.Heap.End})
	r.stage = StageHeapReady

	r.printf("[kernel entry magic=%#x mbi=%#x]\n", magic, mbi)
	r.trace(&trace.OpKernel{Magic: magic, Info: mbi})
	r.stage = StageKernel
	r.Kernel(magic, mbi)

	r.die(errors.New("entry point must not return"), "kernel")
}

// Alloc is the fallible allocation path. Exhaustion is returned to the
// caller; calling it before the heap is up is fatal.
func (r *Runtime) Alloc(size, align uint64) (uint64, error) {
	if r.stage < StageHeapReady {
		r.die(errors.Errorf("allocation during %s", r.stage), "ordering")
	}
	addr, err := r.allocator().Alloc(size, align)
	if err != nil {
		r.failures++
		r.trace(&trace.OpAllocFail{Size: size, Align: align})
		return 0, err
	}
	r.trace(&trace.OpAlloc{Addr: addr, Size: size, Align: align})
	return addr, nil
}

// MustAlloc is the infallible path: any failure ends in the
// allocation-failure handler.
func (r *Runtime) MustAlloc(size, align uint64) uint64 {
	addr, err := r.Alloc(size, align)
	if err != nil {
		if errors.Cause(err) != alloc.ErrExhausted {
			r.die(err, "alloc")
		}
		r.Fault.AllocError(alloc.Layout{Size: size, Align: align})
	}
	return addr
}

// Free forwards to whichever allocator is current. The boot heap ignores it.
func (r *Runtime) Free(addr, size uint64) {
	r.allocator().Free(addr, size)
}

// Supersede hands allocation over to a later-stage allocator. The boot
// heap keeps what it already gave out and serves nothing more.
func (r *Runtime) Supersede(a alloc.Allocator) {
	if r.stage < StageHeapReady {
		r.die(errors.Errorf("allocator handover during %s", r.stage), "ordering")
	}
	r.later = a
}

func (r *Runtime) allocator() alloc.Allocator {
	if r.later != nil {
		return r.later
	}
	return r.Heap
}
