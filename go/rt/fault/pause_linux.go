package fault

import "golang.org/x/sys/unix"

// PauseCPU halts the host thread the closest way a process can: it sleeps
// until a signal arrives.
type PauseCPU struct{}

func (PauseCPU) Halt() { unix.Pause() }
