//go:build !linux

package fault

import "time"

// PauseCPU halts the host thread by sleeping.
type PauseCPU struct{}

func (PauseCPU) Halt() { time.Sleep(time.Hour) }
