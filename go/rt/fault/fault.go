// Package fault holds the terminal handlers of the boot runtime. Both
// handlers try to print a diagnostic and then halt the CPU for good; they
// never return to their caller.
package fault

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"github.com/lunixbochs/bootcorn/go/rt/alloc"
)

// Halter is a CPU that can wait in low-power mode. A single Halt may
// return (an interrupt or NMI wakes real hardware), so callers that need
// the CPU stopped must halt in a loop.
type Halter interface {
	Halt()
}

// Info is the diagnostic handed to Panic.
type Info struct {
	Message string
	File    string
	Line    int
}

func (i Info) String() string {
	if i.File == "" {
		return i.Message
	}
	return fmt.Sprintf("%s at %s:%d", i.Message, i.File, i.Line)
}

// Here builds an Info for the caller skip frames above Here.
func Here(skip int, format string, args ...interface{}) Info {
	info := Info{Message: fmt.Sprintf(format, args...)}
	if _, file, line, ok := runtime.Caller(skip + 1); ok {
		info.File, info.Line = filepath.Base(file), line
	}
	return info
}

// Handler implements the panic and allocation-failure paths. Console is
// optional.
type Handler struct {
	Console io.Writer
	CPU     Halter

	// OnFault, if set, sees each diagnostic before the CPU halts.
	OnFault func(Info)
}

// Panic prints info and halts forever.
func (h *Handler) Panic(info Info) {
	if h.OnFault != nil {
		h.OnFault(info)
	}
	h.emit("PANIC: " + info.String() + "\n")
	h.halt()
}

// AllocError is the escalation path of infallible allocations.
func (h *Handler) AllocError(l alloc.Layout) {
	h.Panic(Here(1, "allocation error: %s", l))
}

// emit is best-effort: a console that fails or panics is ignored, it must
// not turn one fault into two.
func (h *Handler) emit(msg string) {
	if h.Console == nil {
		return
	}
	defer func() { recover() }()
	io.WriteString(h.Console, msg)
}

func (h *Handler) halt() {
	for {
		h.CPU.Halt()
	}
}
