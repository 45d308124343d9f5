// Package bootcorn is a small simulated PC: physical memory, a text mode
// console, a multiboot boot loader and a CPU that can halt. It loads a
// kernel image and hands control to the boot runtime exactly as a real
// boot loader would.
package bootcorn

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"runtime"

	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/console"
	"github.com/lunixbochs/bootcorn/go/loader"
	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/models/mem"
	"github.com/lunixbochs/bootcorn/go/models/trace"
	"github.com/lunixbochs/bootcorn/go/multiboot"
	"github.com/lunixbochs/bootcorn/go/rt"
	"github.com/lunixbochs/bootcorn/go/rt/alloc"
	"github.com/lunixbochs/bootcorn/go/rt/fault"
	"github.com/lunixbochs/bootcorn/go/rt/handoff"
	"github.com/lunixbochs/bootcorn/go/rt/segment"
)

const (
	LOW_MEM_BASE = 0x1000
	HIGH_MEM     = 0x100000
)

// Status is what is left of a boot once the CPU has stopped.
type Status struct {
	Stage    rt.Stage
	Halts    uint64
	Fault    *fault.Info
	Heap     alloc.Stats
	Failures uint64
}

func (s Status) String() string {
	state := "halted"
	if s.Fault != nil {
		state = "PANIC: " + s.Fault.String()
	}
	return fmt.Sprintf("stage=%s halts=%d %s\nheap: %s failures=%d", s.Stage, s.Halts, state, s.Heap, s.Failures)
}

type Machine struct {
	Config  *models.Config
	Image   *loader.Image
	Layout  *models.Layout
	Mem     *mem.Mem
	Runtime *rt.Runtime

	VGA *console.VGA
	// Console is where the kernel prints: the host terminal and the screen.
	Console io.Writer

	// Hang, if set, is halted on instead of stopping the boot goroutine.
	Hang fault.Halter

	infoAddr uint64
	magic    uint32

	halts  uint64
	fault  *fault.Info
	ops    []trace.Op
	tracew *trace.TraceWriter
	err    error
}

// machineCPU ends the boot goroutine on its first halt. Nothing can wake a
// simulated CPU, so this is the same as halting forever.
type machineCPU struct{ m *Machine }

func (c machineCPU) Halt() {
	m := c.m
	m.halts++
	m.record(&trace.OpHalt{Count: m.halts})
	if m.Hang != nil {
		m.Hang.Halt()
		return
	}
	runtime.Goexit()
}

// NewMachine builds the memory image of img the way a boot loader leaves
// it: segments and layout regions mapped, .bss holding garbage, the boot
// information written to low memory.
func NewMachine(config *models.Config, img *loader.Image) (*Machine, error) {
	config = config.Init()
	l, err := img.Layout()
	if err != nil {
		return nil, err
	}
	m := &Machine{
		Config:   config,
		Image:    img,
		Layout:   l,
		Mem:      mem.NewMem(32, binary.LittleEndian),
		infoAddr: config.InfoAddr,
		magic:    handoff.Magic,
	}
	if config.UseMagic {
		m.magic = config.Magic
	}
	if err := m.mapMemory(); err != nil {
		return nil, err
	}
	if err := m.writeBootInfo(); err != nil {
		return nil, err
	}

	panicStyle := ""
	if config.Color {
		panicStyle = "red+b"
	}
	out := console.Multi{console.NewSerial(config.Output, "")}
	panicOut := console.Multi{console.NewSerial(config.Output, panicStyle)}
	if m.VGA != nil {
		out = append(out, m.VGA)
		panicOut = append(panicOut, m.VGA)
	}
	m.Console = out
	m.Mem.Hooks().HookFault(func(err *mem.MemError) {
		m.record(&trace.OpMemFault{Addr: err.Addr, Size: uint32(err.Size), Enum: uint32(err.Enum)})
	})
	handler := &fault.Handler{
		Console: panicOut,
		CPU:     machineCPU{m},
		OnFault: func(info fault.Info) {
			m.fault = &info
			m.record(&trace.OpFault{Msg: info.String()})
		},
	}
	m.Runtime = &rt.Runtime{
		Mem:     m.Mem,
		Layout:  l,
		Heap:    &alloc.Bump{},
		Fault:   handler,
		Trace:   m.record,
		Output:  config.Output,
		Verbose: config.Verbose,
	}
	return m, nil
}

func (m *Machine) printf(format string, args ...interface{}) {
	if m.Config.Verbose {
		fmt.Fprintf(m.Config.Output, format, args...)
	}
}

func (m *Machine) mapMemory() error {
	c := m.Config
	lowEnd := uint64(c.MemLowerKB) * 1024
	if lowEnd > LOW_MEM_BASE {
		if err := m.Mem.MemMap(LOW_MEM_BASE, lowEnd-LOW_MEM_BASE, mem.PROT_RW, "low"); err != nil {
			return err
		}
	}
	for _, seg := range m.Image.Segments {
		if len(seg.Data) == 0 {
			continue
		}
		m.printf("[load %s 0x%08x-0x%08x]\n", seg.Desc, seg.Addr, seg.End())
		if err := m.Mem.MemMap(seg.Addr, uint64(len(seg.Data)), seg.Prot, seg.Desc); err != nil {
			return errors.Wrap(err, "mapping segment")
		}
		if err := m.Mem.MemWrite(seg.Addr, seg.Data); err != nil {
			return errors.Wrap(err, "loading segment")
		}
	}
	// regions take over whatever the segments put there
	for _, r := range m.Layout.Regions() {
		if r.Empty() {
			continue
		}
		if err := m.Mem.MemMap(r.Start, r.Len(), mem.PROT_RW, r.Name); err != nil {
			return errors.Wrapf(err, "mapping %s", r.Name)
		}
	}
	// the load image is ROM once loaded
	if dl := m.Layout.DataLoad; !dl.Empty() {
		if err := m.Mem.MemProt(dl.Start, dl.Len(), mem.PROT_READ); err != nil {
			return errors.Wrapf(err, "protecting %s", dl.Name)
		}
	}
	if c.BSSFill != 0 {
		if err := segment.Fill(m.Mem, m.Layout.BSS, c.BSSFill); err != nil {
			return err
		}
	}
	if c.VGA {
		if err := m.Mem.MemMap(console.VGA_BASE, 0x8000, mem.PROT_RW, "vga"); err != nil {
			return err
		}
		m.VGA = console.NewVGA(m.Mem, console.VGA_BASE)
		if err := m.VGA.Clear(); err != nil {
			return err
		}
	}
	if m.Config.Verbose {
		models.PrintLayout(c.Output, m.Layout, c.Color)
	}
	return nil
}

func (m *Machine) writeBootInfo() error {
	c := m.Config
	info := &multiboot.Info{
		Flags:    multiboot.FLAG_MEMORY,
		MemLower: c.MemLowerKB,
		MemUpper: c.MemUpperKB,
	}
	mmap := []multiboot.MmapEntry{
		{Base: 0, Length: uint64(c.MemLowerKB) * 1024, Type: multiboot.MMAP_AVAILABLE},
		{Base: 0xA0000, Length: HIGH_MEM - 0xA0000, Type: multiboot.MMAP_RESERVED},
		{Base: HIGH_MEM, Length: uint64(c.MemUpperKB) * 1024, Type: multiboot.MMAP_AVAILABLE},
	}
	end, err := multiboot.Write(m.Mem, m.infoAddr, info, mmap, m.Image.Cmdline)
	if err != nil {
		return err
	}
	written := models.Region{Name: "bootinfo", Start: m.infoAddr, End: end}
	for _, r := range m.Layout.Regions() {
		if written.Overlaps(r) {
			return errors.Errorf("boot information at %s overlaps %s", written, r.Name)
		}
	}
	m.printf("[boot info 0x%08x-0x%08x]\n", written.Start, written.End)
	return nil
}

func (m *Machine) record(op trace.Op) {
	m.ops = append(m.ops, op)
	if m.tracew != nil && m.err == nil {
		m.err = m.tracew.Pack(op)
	}
}

// CPU is the processor the kernel halts on.
func (m *Machine) CPU() fault.Halter { return machineCPU{m} }

func (m *Machine) Magic() uint32    { return m.magic }
func (m *Machine) InfoAddr() uint64 { return m.infoAddr }
func (m *Machine) Ops() []trace.Op  { return m.ops }

func (m *Machine) Status() Status {
	return Status{
		Stage:    m.Runtime.Stage(),
		Halts:    m.halts,
		Fault:    m.fault,
		Heap:     m.Runtime.Heap.Stats(),
		Failures: m.Runtime.Failures(),
	}
}

// Boot runs the boot runtime into kernel on its own goroutine and waits
// until the CPU halts. The returned error only reports problems writing the
// trace or snapshot.
func (m *Machine) Boot(kernel rt.Entry) (Status, error) {
	if m.Config.TraceFile != "" {
		f, err := os.Create(m.Config.TraceFile)
		if err != nil {
			return Status{}, errors.WithStack(err)
		}
		tw, err := trace.NewWriter(f)
		if err != nil {
			f.Close()
			return Status{}, err
		}
		m.tracew = tw
	}
	m.Runtime.Kernel = kernel

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Runtime.Start(m.magic, m.infoAddr)
	}()
	<-done

	status := m.Status()
	if m.tracew != nil {
		if err := m.tracew.Close(); err != nil && m.err == nil {
			m.err = err
		}
		m.tracew = nil
	}
	if m.err != nil {
		return status, errors.Wrap(m.err, "trace")
	}
	if m.Config.SaveFile != "" {
		p, err := models.Save(m.Mem)
		if err != nil {
			return status, err
		}
		if err := ioutil.WriteFile(m.Config.SaveFile, p, 0644); err != nil {
			return status, errors.WithStack(err)
		}
	}
	return status, nil
}
