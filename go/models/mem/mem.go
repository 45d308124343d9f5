package mem

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Mem is the physical memory of a simulated machine. Reads and writes go
// through the page list, so touching an unmapped address is an error
// instead of silent corruption.
type Mem struct {
	bits uint
	// addresses above mask are rejected by MemMap
	mask uint64
	sim  *MemSim

	order binary.ByteOrder
	hooks *Hooks
}

func NewMem(bits uint, order binary.ByteOrder) *Mem {
	return &Mem{
		bits:  bits,
		mask:  ^uint64(0) >> (64 - bits),
		sim:   &MemSim{},
		order: order,
	}
}

func (m *Mem) Bits() uint { return m.bits }

// Hooks returns the hook set observing this memory, creating it on first use.
func (m *Mem) Hooks() *Hooks {
	if m.hooks == nil {
		m.hooks = &Hooks{}
	}
	return m.hooks
}

func (m *Mem) inRange(addr, size uint64) bool {
	if size == 0 {
		return addr&m.mask == addr
	}
	last := addr + size - 1
	return last >= addr && last&m.mask == last
}

// MemMap maps [addr, addr+size) with prot. Newly mapped bytes read as zero;
// bytes that were already mapped keep their contents.
func (m *Mem) MemMap(addr, size uint64, prot int, desc string) error {
	if !m.inRange(addr, size) {
		return errors.Errorf("region %#x+%#x outside %d-bit memory", addr, size, m.bits)
	}
	m.sim.Map(addr, size, prot, false, desc)
	return nil
}

// MemProt changes the protection of an already mapped range.
func (m *Mem) MemProt(addr, size uint64, prot int) error {
	if mapped, _ := m.sim.RangeValid(addr, size, 0); !mapped {
		return errors.New("range not mapped")
	}
	m.sim.Prot(addr, size, prot)
	return nil
}

// Mappings returns the current page list, sorted by address.
func (m *Mem) Mappings() Pages {
	out := make(Pages, len(m.sim.Mem))
	copy(out, m.sim.Mem)
	return out
}

// MemReadInto ignores page protections: this is the bus view the boot
// code has before any protection is enforced.
func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	if err := m.sim.Read(addr, p, 0); err != nil {
		m.fault(err)
		return err
	}
	return nil
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	if err := m.sim.Write(addr, p, 0); err != nil {
		m.fault(err)
		return err
	}
	return nil
}

// WriteProt writes only if every page in range grants prot.
func (m *Mem) WriteProt(addr uint64, p []byte, prot int) error {
	if err := m.sim.Write(addr, p, prot); err != nil {
		m.fault(err)
		return err
	}
	return nil
}

func (m *Mem) fault(err error) {
	if merr, ok := err.(*MemError); ok && m.hooks != nil {
		m.hooks.OnFault(merr)
	}
}

func (m *Mem) ReadUint(addr uint64, size int) (uint64, error) {
	var buf [8]byte
	if size <= 0 || size > 8 {
		return 0, errors.Errorf("ReadUint size out of range: %d", size)
	}
	if err := m.MemReadInto(buf[:size], addr); err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(m.order.Uint16(buf[:])), nil
	case 4:
		return uint64(m.order.Uint32(buf[:])), nil
	case 8:
		return m.order.Uint64(buf[:]), nil
	}
	return 0, errors.Errorf("unsupported uint size: %d", size)
}

func (m *Mem) WriteUint(addr uint64, size int, val uint64) error {
	var buf [8]byte
	switch size {
	case 1:
		buf[0] = byte(val)
	case 2:
		m.order.PutUint16(buf[:], uint16(val))
	case 4:
		m.order.PutUint32(buf[:], uint32(val))
	case 8:
		m.order.PutUint64(buf[:], val)
	default:
		return errors.Errorf("unsupported uint size: %d", size)
	}
	return m.MemWrite(addr, buf[:size])
}
