// Package multiboot writes the multiboot v1 boot information structure the
// way a boot loader leaves it for the kernel.
package multiboot

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

const (
	FLAG_MEMORY  = 1 << 0
	FLAG_CMDLINE = 1 << 2
	FLAG_MMAP    = 1 << 6
)

// memory map entry types
const (
	MMAP_AVAILABLE = 1
	MMAP_RESERVED  = 2
)

var options = &struc.Options{Order: binary.LittleEndian}

type Info struct {
	Flags      uint32
	MemLower   uint32
	MemUpper   uint32
	BootDevice uint32
	Cmdline    uint32
	ModsCount  uint32
	ModsAddr   uint32
	Syms       [4]uint32
	MmapLength uint32
	MmapAddr   uint32
}

// MmapEntry is one memory map record. Size counts the bytes after itself.
type MmapEntry struct {
	Size   uint32
	Base   uint64
	Length uint64
	Type   uint32
}

const mmapEntrySize = 24

// Memory is where the structure is written.
type Memory interface {
	MemWrite(addr uint64, p []byte) error
	MemReadInto(p []byte, addr uint64) error
}

func InfoSize() int {
	n, _ := struc.Sizeof(&Info{})
	return n
}

// Write places info at addr followed by the memory map and the command
// line, fixing up the pointers and flags in info. It returns the first
// address past what it wrote.
func Write(m Memory, addr uint64, info *Info, mmap []MmapEntry, cmdline string) (uint64, error) {
	next := addr + uint64(InfoSize())
	var tail bytes.Buffer
	if len(mmap) > 0 {
		for i := range mmap {
			mmap[i].Size = mmapEntrySize - 4
			if err := struc.PackWithOptions(&tail, &mmap[i], options); err != nil {
				return 0, errors.Wrap(err, "packing memory map")
			}
		}
		info.Flags |= FLAG_MMAP
		info.MmapAddr = uint32(next)
		info.MmapLength = uint32(tail.Len())
	}
	if cmdline != "" {
		info.Flags |= FLAG_CMDLINE
		info.Cmdline = uint32(next) + uint32(tail.Len())
		tail.WriteString(cmdline)
		tail.WriteByte(0)
	}
	if next+uint64(tail.Len()) > 1<<32 {
		return 0, errors.Errorf("boot information at %#x does not fit below 4GiB", addr)
	}
	var buf bytes.Buffer
	if err := struc.PackWithOptions(&buf, info, options); err != nil {
		return 0, errors.Wrap(err, "packing boot information")
	}
	buf.Write(tail.Bytes())
	if err := m.MemWrite(addr, buf.Bytes()); err != nil {
		return 0, errors.Wrap(err, "writing boot information")
	}
	return addr + uint64(buf.Len()), nil
}

// Read unpacks the fixed part of the structure at addr.
func Read(m Memory, addr uint64) (*Info, error) {
	p := make([]byte, InfoSize())
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	info := &Info{}
	if err := struc.UnpackWithOptions(bytes.NewReader(p), info, options); err != nil {
		return nil, err
	}
	return info, nil
}

// ReadMmap unpacks the memory map described by info.
func ReadMmap(m Memory, info *Info) ([]MmapEntry, error) {
	if info.Flags&FLAG_MMAP == 0 {
		return nil, nil
	}
	p := make([]byte, info.MmapLength)
	if err := m.MemReadInto(p, uint64(info.MmapAddr)); err != nil {
		return nil, err
	}
	r := bytes.NewReader(p)
	var out []MmapEntry
	for r.Len() >= mmapEntrySize {
		var e MmapEntry
		if err := struc.UnpackWithOptions(r, &e, options); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
