package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const hexLine = 16

func printable(p []byte) string {
	o := make([]byte, len(p))
	for i, c := range p {
		if c >= 0x20 && c <= 0x7e {
			o[i] = c
		} else {
			o[i] = '.'
		}
	}
	return string(o)
}

// HexDump formats mem as lines of four 4-byte groups followed by the
// printable characters.
func HexDump(base uint64, mem []byte) []string {
	var out []string
	for i := 0; i < len(mem); i += hexLine {
		line := mem[i:]
		if len(line) > hexLine {
			line = line[:hexLine]
		}
		blocks := make([]string, 0, 4)
		for j := 0; j < hexLine; j += 4 {
			switch {
			case j >= len(line):
				blocks = append(blocks, "        ")
			case j+4 > len(line):
				b := hex.EncodeToString(line[j:])
				blocks = append(blocks, b+strings.Repeat(" ", 8-len(b)))
			default:
				blocks = append(blocks, hex.EncodeToString(line[j:j+4]))
			}
		}
		out = append(out, fmt.Sprintf("0x%08x: %s  %s", base+uint64(i), strings.Join(blocks, " "), printable(line)))
	}
	return out
}
