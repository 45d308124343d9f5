package rt

import (
	"bytes"
	"encoding/binary"
	"runtime"
	"strings"
	"testing"

	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/models/mem"
	"github.com/lunixbochs/bootcorn/go/models/trace"
	"github.com/lunixbochs/bootcorn/go/rt/alloc"
	"github.com/lunixbochs/bootcorn/go/rt/fault"
	"github.com/lunixbochs/bootcorn/go/rt/handoff"
)

type stopCPU struct{ halts int }

func (c *stopCPU) Halt() {
	c.halts++
	runtime.Goexit()
}

var testLayout = models.Layout{
	DataLoad: models.Region{Name: ".data.load", Start: 0x10000, End: 0x10010},
	Data:     models.Region{Name: ".data", Start: 0x20000, End: 0x20010},
	BSS:      models.Region{Name: ".bss", Start: 0x20010, End: 0x20100},
	Heap:     models.Region{Name: "heap", Start: 0x30000, End: 0x31000},
}

var dataImage = []byte("initialized data")

type testMachine struct {
	rt      *Runtime
	mem     *mem.Mem
	cpu     *stopCPU
	console bytes.Buffer
	ops     []trace.Op
	faults  []fault.Info
}

func newTestMachine(t *testing.T, kernel Entry) *testMachine {
	tm := &testMachine{cpu: &stopCPU{}}
	m := mem.NewMem(32, binary.LittleEndian)
	m.MemMap(0x10000, 0x1000, mem.PROT_READ, "rom")
	m.MemMap(0x20000, 0x1000, mem.PROT_RW, "ram")
	m.MemMap(0x30000, 0x1000, mem.PROT_RW, "heap")
	if err := m.MemWrite(0x10000, dataImage); err != nil {
		t.Fatal(err)
	}
	m.MemWrite(0x20010, bytes.Repeat([]byte{0xcc}, 0xf0))
	tm.mem = m

	l := testLayout
	tm.rt = &Runtime{
		Mem:    m,
		Layout: &l,
		Heap:   &alloc.Bump{},
		Fault: &fault.Handler{
			Console: &tm.console,
			CPU:     tm.cpu,
			OnFault: func(i fault.Info) { tm.faults = append(tm.faults, i) },
		},
		Kernel: kernel,
		Trace:  func(op trace.Op) { tm.ops = append(tm.ops, op) },
	}
	return tm
}

// boot runs Start on its own goroutine, which ends when the CPU halts.
func (tm *testMachine) boot(magic uint32) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		tm.rt.Start(magic, 0x9000)
	}()
	<-done
}

func TestStartSequence(t *testing.T) {
	var tm *testMachine
	var gotMagic uint32
	var gotInfo uint64
	var heapAddr uint64
	tm = newTestMachine(t, func(magic uint32, mbi uint64) {
		gotMagic, gotInfo = magic, mbi
		heapAddr = tm.rt.MustAlloc(64, 16)
		tm.rt.Fault.CPU.Halt()
	})
	tm.boot(handoff.Magic)

	if tm.rt.Stage() != StageKernel {
		t.Fatalf("stage = %s, want kernel", tm.rt.Stage())
	}
	if gotMagic != handoff.Magic || gotInfo != 0x9000 {
		t.Errorf("kernel got magic=%#x mbi=%#x", gotMagic, gotInfo)
	}
	if heapAddr != 0x30000 {
		t.Errorf("first heap allocation at %#x", heapAddr)
	}
	if data, _ := tm.mem.MemRead(0x20000, 0x10); !bytes.Equal(data, dataImage) {
		t.Errorf(".data = %q", data)
	}
	if bss, _ := tm.mem.MemRead(0x20010, 0xf0); !bytes.Equal(bss, make([]byte, 0xf0)) {
		t.Error(".bss not zeroed")
	}
	kinds := []byte{trace.OP_HANDOFF, trace.OP_COPY, trace.OP_ZERO, trace.OP_HEAP_INIT, trace.OP_KERNEL, trace.OP_ALLOC}
	if len(tm.ops) != len(kinds) {
		t.Fatalf("trace has %d ops, want %d", len(tm.ops), len(kinds))
	}
	for i, k := range kinds {
		if tm.ops[i].Kind() != k {
			t.Errorf("op %d is %s", i, tm.ops[i])
		}
	}
	if len(tm.faults) != 0 {
		t.Errorf("unexpected faults: %v", tm.faults)
	}
}

func TestStartBadMagic(t *testing.T) {
	var tm *testMachine
	entered := false
	tm = newTestMachine(t, func(uint32, uint64) { entered = true })
	tm.boot(0)

	if entered {
		t.Fatal("kernel ran after bad magic")
	}
	if tm.rt.Stage() != StageReset {
		t.Errorf("stage = %s after bad magic", tm.rt.Stage())
	}
	if tm.rt.Heap.Ready() {
		t.Error("heap initialized after bad magic")
	}
	if bss, _ := tm.mem.MemRead(0x20010, 1); bss[0] != 0xcc {
		t.Error(".bss touched after bad magic")
	}
	if data, _ := tm.mem.MemRead(0x20000, 1); data[0] != 0 {
		t.Error(".data touched after bad magic")
	}
	if !strings.HasPrefix(tm.console.String(), "PANIC: handoff: bad multiboot magic: 0x0") {
		t.Errorf("console got %q", tm.console.String())
	}
	if tm.cpu.halts != 1 {
		t.Errorf("cpu halted %d times", tm.cpu.halts)
	}
}

func TestStartBadLayout(t *testing.T) {
	tm := newTestMachine(t, func(uint32, uint64) { t.Error("kernel ran") })
	tm.rt.Layout.BSS.End = 0x21100 // past mapped ram
	tm.boot(handoff.Magic)
	if tm.rt.Stage() != StageRelocated {
		t.Errorf("stage = %s", tm.rt.Stage())
	}
	if len(tm.faults) != 1 || !strings.HasPrefix(tm.faults[0].Message, "zero bss: ") {
		t.Errorf("faults: %v", tm.faults)
	}
}

func TestKernelReturn(t *testing.T) {
	tm := newTestMachine(t, func(uint32, uint64) {})
	tm.boot(handoff.Magic)
	if len(tm.faults) != 1 || !strings.Contains(tm.faults[0].Message, "must not return") {
		t.Errorf("faults: %v", tm.faults)
	}
}

func TestMustAllocExhausted(t *testing.T) {
	var tm *testMachine
	var first uint64
	var soft error
	tm = newTestMachine(t, func(uint32, uint64) {
		first = tm.rt.MustAlloc(100, 16)
		_, soft = tm.rt.Alloc(0x2000, 16)
		tm.rt.MustAlloc(0x2000, 16)
		t.Error("MustAlloc returned on exhaustion")
	})
	tm.boot(handoff.Magic)

	if first != 0x30000 {
		t.Errorf("first alloc at %#x", first)
	}
	if soft != alloc.ErrExhausted {
		t.Errorf("fallible alloc: %v", soft)
	}
	if tm.rt.Failures() != 2 {
		t.Errorf("failures = %d", tm.rt.Failures())
	}
	if !strings.Contains(tm.console.String(), "allocation error: Layout { size: 8192, align: 16 }") {
		t.Errorf("console got %q", tm.console.String())
	}
	if tm.rt.Heap.Cursor() != 0x30064 {
		t.Errorf("cursor moved to %#x", tm.rt.Heap.Cursor())
	}
}

func TestAllocBeforeHeap(t *testing.T) {
	tm := newTestMachine(t, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		tm.rt.MustAlloc(8, 8)
		t.Error("early allocation returned")
	}()
	<-done
	if len(tm.faults) != 1 || !strings.Contains(tm.faults[0].Message, "allocation during reset") {
		t.Errorf("faults: %v", tm.faults)
	}
}

func TestSupersede(t *testing.T) {
	later := &alloc.Bump{}
	if err := later.Init(0x40000, 0x40100); err != nil {
		t.Fatal(err)
	}
	var tm *testMachine
	var addrs []uint64
	tm = newTestMachine(t, func(uint32, uint64) {
		addrs = append(addrs, tm.rt.MustAlloc(16, 16))
		tm.rt.Supersede(later)
		addrs = append(addrs, tm.rt.MustAlloc(16, 16))
		tm.rt.Free(addrs[1], 16)
		tm.rt.MustAlloc(0x200, 1)
		t.Error("MustAlloc returned on exhaustion")
	})
	tm.boot(handoff.Magic)

	if len(addrs) != 2 || addrs[0] != 0x30000 || addrs[1] != 0x40000 {
		t.Errorf("allocations at %#x", addrs)
	}
	if tm.rt.Heap.Cursor() != 0x30010 || tm.rt.Heap.Stats().Allocs != 1 {
		t.Errorf("boot heap served after handover: %s", tm.rt.Heap.Stats())
	}
	if later.Stats().Allocs != 1 || tm.rt.Failures() != 1 {
		t.Errorf("later %s failures %d", later.Stats(), tm.rt.Failures())
	}
	if !strings.Contains(tm.console.String(), "allocation error: Layout { size: 512, align: 1 }") {
		t.Errorf("console got %q", tm.console.String())
	}
}

func TestSupersedeBeforeHeap(t *testing.T) {
	tm := newTestMachine(t, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		tm.rt.Supersede(&alloc.Bump{})
		t.Error("early handover returned")
	}()
	<-done
	if len(tm.faults) != 1 || !strings.Contains(tm.faults[0].Message, "allocator handover during reset") {
		t.Errorf("faults: %v", tm.faults)
	}
}
