package repl

import (
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/models"
)

type Command struct {
	Name string
	Desc string
	Args string
	Run  func(r *Repl, args []string) error
}

var Commands = make(map[string]*Command)

func cmd(c *Command) *Command {
	Commands[c.Name] = c
	return c
}

var errHalt = errors.New("halt")

// maxExamine caps a single x dump.
const maxExamine = 0x10000

// checkRange rejects [addr, addr+size) if it wraps or runs past the top of
// physical memory.
func checkRange(r *Repl, addr, size uint64) error {
	end := addr + size
	if end < addr {
		return errors.Errorf("range %#x+%#x wraps", addr, size)
	}
	if bits := r.Mem.Bits(); bits < 64 && end > 1<<bits {
		return errors.Errorf("range %#x+%#x past end of %d-bit memory", addr, size, bits)
	}
	return nil
}

func parseUint(args []string, i int, def uint64) (uint64, error) {
	if i >= len(args) {
		return def, nil
	}
	n, err := strconv.ParseUint(args[i], 0, 64)
	return n, errors.Wrapf(err, "bad number %q", args[i])
}

var HelpCmd = cmd(&Command{
	Name: "help",
	Desc: "List commands.",
	Run: func(r *Repl, args []string) error {
		names := make([]string, 0, len(Commands))
		for name := range Commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c := Commands[name]
			r.Printf("  %-8s %-16s %s\n", c.Name, c.Args, c.Desc)
		}
		return nil
	},
})

var RegionsCmd = cmd(&Command{
	Name: "regions",
	Desc: "Show the boot memory layout.",
	Run: func(r *Repl, args []string) error {
		models.PrintLayout(r.Out, r.Runtime.Layout, r.Color)
		return nil
	},
})

var MapsCmd = cmd(&Command{
	Name: "maps",
	Desc: "Display memory mappings.",
	Run: func(r *Repl, args []string) error {
		for _, m := range r.Mem.Mappings() {
			r.Printf("  %v\n", m)
		}
		return nil
	},
})

var ExamineCmd = cmd(&Command{
	Name: "x",
	Desc: "Dump memory.",
	Args: "<addr> [size]",
	Run: func(r *Repl, args []string) error {
		if len(args) < 1 {
			return errors.New("usage: x <addr> [size]")
		}
		addr, err := parseUint(args, 0, 0)
		if err != nil {
			return err
		}
		size, err := parseUint(args, 1, 64)
		if err != nil {
			return err
		}
		if size > maxExamine {
			return errors.Errorf("size %#x over limit %#x", size, maxExamine)
		}
		if err := checkRange(r, addr, size); err != nil {
			return err
		}
		mem, err := r.Mem.MemRead(addr, size)
		if err != nil {
			return err
		}
		for _, line := range models.HexDump(addr, mem) {
			r.Printf("  %s\n", line)
		}
		return nil
	},
})

var PeekCmd = cmd(&Command{
	Name: "peek",
	Desc: "Read an integer.",
	Args: "<addr> [size]",
	Run: func(r *Repl, args []string) error {
		if len(args) < 1 {
			return errors.New("usage: peek <addr> [size]")
		}
		addr, err := parseUint(args, 0, 0)
		if err != nil {
			return err
		}
		size, err := parseUint(args, 1, 4)
		if err != nil {
			return err
		}
		if err := checkRange(r, addr, size); err != nil {
			return err
		}
		val, err := r.Mem.ReadUint(addr, int(size))
		if err != nil {
			return err
		}
		r.Printf("%#x\n", val)
		return nil
	},
})

var PokeCmd = cmd(&Command{
	Name: "poke",
	Desc: "Write an integer.",
	Args: "<addr> <val> [size]",
	Run: func(r *Repl, args []string) error {
		if len(args) < 2 {
			return errors.New("usage: poke <addr> <val> [size]")
		}
		addr, err := parseUint(args, 0, 0)
		if err != nil {
			return err
		}
		val, err := parseUint(args, 1, 0)
		if err != nil {
			return err
		}
		size, err := parseUint(args, 2, 4)
		if err != nil {
			return err
		}
		if err := checkRange(r, addr, size); err != nil {
			return err
		}
		return r.Mem.WriteUint(addr, int(size), val)
	},
})

var AllocCmd = cmd(&Command{
	Name: "alloc",
	Desc: "Allocate from the boot heap.",
	Args: "<size> [align]",
	Run: func(r *Repl, args []string) error {
		if len(args) < 1 {
			return errors.New("usage: alloc <size> [align]")
		}
		size, err := parseUint(args, 0, 0)
		if err != nil {
			return err
		}
		align, err := parseUint(args, 1, 1)
		if err != nil {
			return err
		}
		addr, err := r.Runtime.Alloc(size, align)
		if err != nil {
			return err
		}
		r.Printf("%#x\n", addr)
		return nil
	},
})

var StatsCmd = cmd(&Command{
	Name: "stats",
	Desc: "Show heap usage.",
	Run: func(r *Repl, args []string) error {
		r.Printf("%s failures=%d\n", r.Runtime.Heap.Stats(), r.Runtime.Failures())
		return nil
	},
})

var HaltCmd = cmd(&Command{
	Name: "halt",
	Desc: "Halt the CPU.",
	Run: func(r *Repl, args []string) error {
		return errHalt
	},
})
