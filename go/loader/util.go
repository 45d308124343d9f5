package loader

import (
	"io"
)

func getMagic(r io.ReaderAt) []byte {
	ret := make([]byte, 4)
	r.ReadAt(ret, 0)
	return ret
}

func padTo(p []byte, size uint64) []byte {
	if uint64(len(p)) >= size {
		return p
	}
	out := make([]byte, size)
	copy(out, p)
	return out
}
