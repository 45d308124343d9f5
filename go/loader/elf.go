package loader

import (
	"bytes"
	"debug/elf"
	"io"
	"io/ioutil"

	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/models"
)

// multiboot kernels are x86, loaded either as 32 or 64-bit ELF
var machineMap = map[elf.Machine]string{
	elf.EM_386:    "x86",
	elf.EM_X86_64: "x86_64",
}

var elfMagic = []byte{0x7f, 0x45, 0x4c, 0x46}

func MatchElf(r io.ReaderAt) bool {
	return bytes.Equal(getMagic(r), elfMagic)
}

// LoadElf reads the layout symbols and the loadable segments of a kernel.
// Segments are placed at their physical address, like a boot loader does.
func LoadElf(r io.ReaderAt) (*Image, error) {
	file, err := elf.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, "elf")
	}
	switch file.Class {
	case elf.ELFCLASS32, elf.ELFCLASS64:
	default:
		return nil, errors.New("unknown ELF class")
	}
	if _, ok := machineMap[file.Machine]; !ok {
		return nil, errors.Errorf("unsupported machine: %s", file.Machine)
	}
	img := &Image{Entry: file.Entry, Symbols: make(map[string]uint64)}

	syms, err := file.Symbols()
	if err != nil {
		return nil, errors.Wrap(err, "elf symbols")
	}
	want := make(map[string]bool, len(models.LayoutSymbols))
	for _, name := range models.LayoutSymbols {
		want[name] = true
	}
	for _, sym := range syms {
		if want[sym.Name] {
			img.Symbols[sym.Name] = sym.Value
		}
	}

	for _, prog := range file.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		data, err := ioutil.ReadAll(prog.Open())
		if err != nil {
			return nil, errors.Wrapf(err, "reading segment at %#x", prog.Paddr)
		}
		img.Segments = append(img.Segments, Segment{
			Addr: prog.Paddr,
			Data: padTo(data, prog.Memsz),
			Prot: segmentProt(prog.Flags&elf.PF_R != 0, prog.Flags&elf.PF_W != 0, prog.Flags&elf.PF_X != 0),
			Desc: "elf",
		})
	}
	return img, nil
}
