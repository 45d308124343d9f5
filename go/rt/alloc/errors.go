package alloc

import "github.com/pkg/errors"

var (
	// ErrExhausted means the request does not fit below the heap limit,
	// or computing its end overflowed the address space.
	ErrExhausted = errors.New("alloc: heap exhausted")

	// ErrNotReady means Alloc was called before Init.
	ErrNotReady = errors.New("alloc: heap not initialized")

	// ErrAlreadyInit means Init was called a second time.
	ErrAlreadyInit = errors.New("alloc: heap already initialized")

	// ErrBadRange means Init got start > end.
	ErrBadRange = errors.New("alloc: heap start is past heap end")

	// ErrBadAlign means align is zero or not a power of two.
	ErrBadAlign = errors.New("alloc: alignment must be a power of two")
)
