// Package handoff checks that a multiboot boot loader handed over control.
package handoff

import "fmt"

// Magic is the value a multiboot compliant loader leaves in EAX.
const Magic uint32 = 0x2BADB002

// MismatchError carries the magic value that was actually received.
type MismatchError struct {
	Got uint32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("bad multiboot magic: %#x", e.Got)
}

// Validate returns a *MismatchError unless magic is the multiboot magic.
func Validate(magic uint32) error {
	if magic != Magic {
		return &MismatchError{Got: magic}
	}
	return nil
}
