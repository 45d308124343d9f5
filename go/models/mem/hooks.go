package mem

// FaultCb observes a failed access.
type FaultCb func(err *MemError)

type Hooks struct {
	fault []FaultCb
}

func (h *Hooks) HookFault(cb FaultCb) {
	h.fault = append(h.fault, cb)
}

func (h *Hooks) OnFault(err *MemError) {
	for _, cb := range h.fault {
		cb(err)
	}
}
