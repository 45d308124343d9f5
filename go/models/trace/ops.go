package trace

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

var order = binary.LittleEndian

const (
	OP_HANDOFF    = 1
	OP_COPY       = 2
	OP_ZERO       = 3
	OP_HEAP_INIT  = 4
	OP_ALLOC      = 5
	OP_ALLOC_FAIL = 6
	OP_KERNEL     = 7
	OP_FAULT      = 8
	OP_HALT       = 9
	OP_MEM_FAULT  = 10
)

// MaxMsg is the longest fault message a trace can carry.
const MaxMsg = 0xffff

// Op is one boot event.
type Op interface {
	Kind() byte
	String() string
}

func newOp(kind byte) (Op, error) {
	switch kind {
	case OP_HANDOFF:
		return &OpHandoff{}, nil
	case OP_COPY:
		return &OpCopy{}, nil
	case OP_ZERO:
		return &OpZero{}, nil
	case OP_HEAP_INIT:
		return &OpHeapInit{}, nil
	case OP_ALLOC:
		return &OpAlloc{}, nil
	case OP_ALLOC_FAIL:
		return &OpAllocFail{}, nil
	case OP_KERNEL:
		return &OpKernel{}, nil
	case OP_FAULT:
		return &OpFault{}, nil
	case OP_HALT:
		return &OpHalt{}, nil
	case OP_MEM_FAULT:
		return &OpMemFault{}, nil
	}
	return nil, errors.Errorf("unknown op: %d", kind)
}

// Pack writes the op kind followed by the packed op. Fault messages longer
// than MaxMsg are cut to fit their length field.
func Pack(w io.Writer, op Op) error {
	if f, ok := op.(*OpFault); ok && len(f.Msg) > MaxMsg {
		op = &OpFault{Msg: f.Msg[:MaxMsg]}
	}
	if _, err := w.Write([]byte{op.Kind()}); err != nil {
		return err
	}
	return struc.PackWithOptions(w, op, &struc.Options{Order: order})
}

func Unpack(r io.Reader) (Op, error) {
	var kind [1]byte
	if _, err := io.ReadFull(r, kind[:]); err != nil {
		return nil, err
	}
	op, err := newOp(kind[0])
	if err != nil {
		return nil, err
	}
	if err := struc.UnpackWithOptions(r, op, &struc.Options{Order: order}); err != nil {
		return nil, errors.Wrapf(err, "unpacking op %d", kind[0])
	}
	return op, nil
}

type OpHandoff struct {
	Magic uint32
	Info  uint64
}

func (o *OpHandoff) Kind() byte { return OP_HANDOFF }
func (o *OpHandoff) String() string {
	return fmt.Sprintf("handoff magic=%#x mbi=%#x", o.Magic, o.Info)
}

type OpCopy struct {
	Src, Dst, Size uint64
}

func (o *OpCopy) Kind() byte { return OP_COPY }
func (o *OpCopy) String() string {
	return fmt.Sprintf("copy %#x -> %#x (%#x bytes)", o.Src, o.Dst, o.Size)
}

type OpZero struct {
	Addr, Size uint64
}

func (o *OpZero) Kind() byte { return OP_ZERO }
func (o *OpZero) String() string {
	return fmt.Sprintf("zero %#x (%#x bytes)", o.Addr, o.Size)
}

type OpHeapInit struct {
	Start, End uint64
}

func (o *OpHeapInit) Kind() byte { return OP_HEAP_INIT }
func (o *OpHeapInit) String() string {
	return fmt.Sprintf("heap %#x-%#x", o.Start, o.End)
}

type OpAlloc struct {
	Addr, Size, Align uint64
}

func (o *OpAlloc) Kind() byte { return OP_ALLOC }
func (o *OpAlloc) String() string {
	return fmt.Sprintf("alloc %#x size=%#x align=%#x", o.Addr, o.Size, o.Align)
}

type OpAllocFail struct {
	Size, Align uint64
}

func (o *OpAllocFail) Kind() byte { return OP_ALLOC_FAIL }
func (o *OpAllocFail) String() string {
	return fmt.Sprintf("alloc failed size=%#x align=%#x", o.Size, o.Align)
}

type OpKernel struct {
	Magic uint32
	Info  uint64
}

func (o *OpKernel) Kind() byte { return OP_KERNEL }
func (o *OpKernel) String() string {
	return fmt.Sprintf("kernel magic=%#x mbi=%#x", o.Magic, o.Info)
}

type OpFault struct {
	MsgLen int `struc:"uint16,sizeof=Msg"`
	Msg    string
}

func (o *OpFault) Kind() byte     { return OP_FAULT }
func (o *OpFault) String() string { return "fault " + o.Msg }

type OpHalt struct {
	Count uint64
}

func (o *OpHalt) Kind() byte     { return OP_HALT }
func (o *OpHalt) String() string { return fmt.Sprintf("halt #%d", o.Count) }

// OpMemFault is a memory access the bus refused.
type OpMemFault struct {
	Addr uint64
	Size uint32
	Enum uint32
}

func (o *OpMemFault) Kind() byte { return OP_MEM_FAULT }
func (o *OpMemFault) String() string {
	return fmt.Sprintf("memory fault kind=%d %#x (%d bytes)", o.Enum, o.Addr, o.Size)
}
