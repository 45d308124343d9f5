package fault

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/lunixbochs/bootcorn/go/rt/alloc"
)

// stopCPU ends the calling goroutine after n halts, so a test can watch a
// handler that never returns.
type stopCPU struct {
	n, halts int
}

func (c *stopCPU) Halt() {
	c.halts++
	if c.halts >= c.n {
		runtime.Goexit()
	}
}

// run calls fn on its own goroutine and reports whether fn returned.
func run(fn func()) (returned bool) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
		returned = true
	}()
	<-done
	return returned
}

type brokenConsole struct{}

func (brokenConsole) Write(p []byte) (int, error) { panic("console on fire") }

func TestPanicHalts(t *testing.T) {
	var console bytes.Buffer
	cpu := &stopCPU{n: 3}
	h := &Handler{Console: &console, CPU: cpu}
	if run(func() { h.Panic(Info{Message: "bad multiboot magic: 0x0"}) }) {
		t.Fatal("Panic returned")
	}
	if cpu.halts != 3 {
		t.Errorf("expected the handler to keep halting, got %d halts", cpu.halts)
	}
	if got := console.String(); got != "PANIC: bad multiboot magic: 0x0\n" {
		t.Errorf("console got %q", got)
	}
}

func TestPanicBrokenConsole(t *testing.T) {
	cpu := &stopCPU{n: 1}
	h := &Handler{Console: brokenConsole{}, CPU: cpu}
	if run(func() { h.Panic(Info{Message: "x"}) }) {
		t.Fatal("Panic returned")
	}
	if cpu.halts != 1 {
		t.Error("broken console kept the CPU from halting")
	}
}

func TestPanicNoConsole(t *testing.T) {
	var seen []Info
	cpu := &stopCPU{n: 1}
	h := &Handler{CPU: cpu, OnFault: func(i Info) { seen = append(seen, i) }}
	run(func() { h.Panic(Info{Message: "x"}) })
	if len(seen) != 1 || cpu.halts != 1 {
		t.Errorf("fault hook saw %d faults, cpu halted %d times", len(seen), cpu.halts)
	}
}

func TestAllocError(t *testing.T) {
	var console bytes.Buffer
	h := &Handler{Console: &console, CPU: &stopCPU{n: 1}}
	if run(func() { h.AllocError(alloc.Layout{Size: 4000, Align: 16}) }) {
		t.Fatal("AllocError returned")
	}
	out := console.String()
	if !strings.HasPrefix(out, "PANIC: allocation error: Layout { size: 4000, align: 16 } at fault_test.go:") {
		t.Errorf("console got %q", out)
	}
}

func TestHere(t *testing.T) {
	info := Here(0, "value %d", 7)
	if info.Message != "value 7" || info.File != "fault_test.go" || info.Line == 0 {
		t.Errorf("bad info: %+v", info)
	}
}
