// Package kernel is a demo kernel for the boot runtime. It reports what
// the boot loader handed over, exercises the heap and halts.
package kernel

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/models/mem"
	"github.com/lunixbochs/bootcorn/go/multiboot"
	"github.com/lunixbochs/bootcorn/go/rt"
	"github.com/lunixbochs/bootcorn/go/rt/alloc"
	"github.com/lunixbochs/bootcorn/go/rt/fault"
)

// Memory is the physical memory the kernel reads and fills. Kernel writes
// honor page protections.
type Memory interface {
	multiboot.Memory
	WriteProt(addr uint64, p []byte, prot int) error
}

type Demo struct {
	Runtime *rt.Runtime
	Mem     Memory
	Console io.Writer
	CPU     fault.Halter

	// Allocs are served in order. Must makes exhaustion fatal.
	Allocs []alloc.Layout
	Must   bool

	// Filled records every allocation the kernel got.
	Filled []uint64
}

// ParseAllocs reads "size:align,size:align,...". Align defaults to 1, and
// both accept 0x prefixes.
func ParseAllocs(s string) ([]alloc.Layout, error) {
	var out []alloc.Layout
	if s == "" {
		return nil, nil
	}
	for _, req := range strings.Split(s, ",") {
		parts := strings.SplitN(strings.TrimSpace(req), ":", 2)
		size, err := strconv.ParseUint(parts[0], 0, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad allocation size %q", parts[0])
		}
		align := uint64(1)
		if len(parts) == 2 {
			if align, err = strconv.ParseUint(parts[1], 0, 64); err != nil {
				return nil, errors.Wrapf(err, "bad allocation align %q", parts[1])
			}
		}
		out = append(out, alloc.Layout{Size: size, Align: align})
	}
	return out, nil
}

// pattern is what allocation i is filled with.
func pattern(i int, size uint64) []byte {
	p := make([]byte, size)
	for j := range p {
		p[j] = byte(i + 1)
	}
	return p
}

func (d *Demo) printf(format string, args ...interface{}) {
	fmt.Fprintf(d.Console, format, args...)
}

// Entry is the kernel entry point. It never returns.
func (d *Demo) Entry(magic uint32, mbi uint64) {
	d.printf("kernel: magic=%#x mbi=%#x\n", magic, mbi)
	if info, err := multiboot.Read(d.Mem, mbi); err == nil && info.Flags&multiboot.FLAG_MEMORY != 0 {
		d.printf("kernel: mem_lower=%dKB mem_upper=%dKB\n", info.MemLower, info.MemUpper)
	}
	l := d.Runtime.Layout
	if data := make([]byte, l.Data.Len()); len(data) > 0 {
		if err := d.Mem.MemReadInto(data, l.Data.Start); err == nil {
			d.printf("kernel: .data %q\n", strings.TrimRight(string(data), "\x00"))
		}
	}
	if l.BSS.Len() > 0 {
		bss := make([]byte, l.BSS.Len())
		if err := d.Mem.MemReadInto(bss, l.BSS.Start); err == nil {
			for _, b := range bss {
				if b != 0 {
					d.Runtime.Fault.Panic(fault.Here(0, ".bss is not zero"))
				}
			}
		}
	}

	for i, req := range d.Allocs {
		var addr uint64
		if d.Must {
			addr = d.Runtime.MustAlloc(req.Size, req.Align)
		} else {
			var err error
			if addr, err = d.Runtime.Alloc(req.Size, req.Align); err != nil {
				d.printf("kernel: alloc %s: %v\n", req, err)
				continue
			}
		}
		d.printf("kernel: alloc %s = %#x\n", req, addr)
		if err := d.Mem.WriteProt(addr, pattern(i, req.Size), mem.PROT_WRITE); err != nil {
			d.Runtime.Fault.Panic(fault.Here(0, "filling %#x: %v", addr, err))
		}
		d.Filled = append(d.Filled, addr)
	}
	d.printf("kernel: heap %s\n", d.Runtime.Heap.Stats())
	d.printf("kernel: halting\n")
	for {
		d.CPU.Halt()
	}
}
