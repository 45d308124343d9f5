package mem

import (
	"fmt"
	"sort"
)

type MemError struct {
	Addr uint64
	Size int
	Enum int
}

func (m *MemError) Error() string {
	reason := "memory error"
	switch m.Enum {
	case MEM_WRITE_UNMAPPED:
		reason = "unmapped write"
	case MEM_READ_UNMAPPED:
		reason = "unmapped read"
	case MEM_WRITE_PROT:
		reason = "protected write"
	case MEM_READ_PROT:
		reason = "protected read"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, m.Addr, m.Size)
}

// MemSim is a sorted, non-overlapping list of mapped pages.
type MemSim struct {
	Mem Pages
}

// RangeValid reports whether [addr, addr+size) is fully mapped and, if
// prot > 0, whether every page covering it grants all bits of prot.
func (m *MemSim) RangeValid(addr, size uint64, prot int) (mapGood bool, protGood bool) {
	if size == 0 {
		return true, true
	}
	first := m.Mem.bsearch(addr)
	if first == -1 {
		return false, false
	}
	protGood = true
	end := addr + size
	if end < addr {
		return false, false
	}
	for _, mm := range m.Mem[first:] {
		if !mm.Contains(addr) {
			break
		}
		if prot > 0 && mm.Prot&prot != prot {
			protGood = false
		}
		addr = mm.End()
		if addr >= end {
			break
		}
	}
	return addr >= end, protGood
}

// Map maps [addr, addr+size) with prot. Existing mappings in the range
// are replaced; unless zero is set their contents carry over into the new
// page.
func (m *MemSim) Map(addr, size uint64, prot int, zero bool, desc string) *Page {
	data := make([]byte, size)
	if !zero {
		for _, mm := range m.Mem.FindRange(addr, size) {
			start, n, _ := mm.Intersect(addr, size)
			copy(data[start-addr:], mm.Data[start-mm.Addr:start-mm.Addr+n])
		}
	}
	m.Unmap(addr, size)
	page := &Page{Addr: addr, Size: size, Prot: prot, Data: data, Desc: desc}
	m.Mem = append(m.Mem, page)
	sort.Sort(m.Mem)
	return page
}

// split rebuilds the page list with [addr, addr+size) cut out of every
// overlapping page. keep decides what happens to each cut-out middle.
func (m *MemSim) split(addr, size uint64, keep func(mid *Page) bool) {
	tmp := make(Pages, 0, len(m.Mem))
	for _, mm := range m.Mem {
		if !mm.Overlaps(addr, size) {
			tmp = append(tmp, mm)
			continue
		}
		left, right := mm.Split(addr, size)
		if left != nil {
			tmp = append(tmp, left)
		}
		if keep(mm) {
			tmp = append(tmp, mm)
		}
		if right != nil {
			tmp = append(tmp, right)
		}
	}
	m.Mem = tmp
}

func (m *MemSim) Prot(addr, size uint64, prot int) {
	m.split(addr, size, func(mid *Page) bool {
		mid.Prot = prot
		return true
	})
}

func (m *MemSim) Unmap(addr, size uint64) {
	m.split(addr, size, func(*Page) bool { return false })
}

func (m *MemSim) Read(addr uint64, p []byte, prot int) error {
	if gmap, gprot := m.RangeValid(addr, uint64(len(p)), prot); !gmap {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_READ_UNMAPPED}
	} else if !gprot {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_READ_PROT}
	}
	for i := m.Mem.bsearch(addr); len(p) > 0 && i < len(m.Mem); i++ {
		mm := m.Mem[i]
		n := copy(p, mm.Data[addr-mm.Addr:])
		addr, p = addr+uint64(n), p[n:]
	}
	return nil
}

func (m *MemSim) Write(addr uint64, p []byte, prot int) error {
	if gmap, gprot := m.RangeValid(addr, uint64(len(p)), prot); !gmap {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_WRITE_UNMAPPED}
	} else if !gprot {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_WRITE_PROT}
	}
	for i := m.Mem.bsearch(addr); len(p) > 0 && i < len(m.Mem); i++ {
		mm := m.Mem[i]
		n := copy(mm.Data[addr-mm.Addr:], p)
		addr, p = addr+uint64(n), p[n:]
	}
	return nil
}
