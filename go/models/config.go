package models

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const (
	// where the simulated boot loader leaves the boot information
	DefaultInfoAddr = 0x9000
	// fill pattern for .bss before boot, so zeroing is observable
	DefaultBSSFill = 0xcc

	DefaultMemLowerKB = 640
	DefaultMemUpperKB = 64 * 1024
)

type Config struct {
	Color   bool
	Verbose bool
	Output  io.Writer

	// Magic replaces the value the boot loader hands over if UseMagic is set.
	Magic    uint32
	UseMagic bool

	BSSFill    byte
	InfoAddr   uint64
	MemLowerKB uint32
	MemUpperKB uint32
	// VGA maps a text mode buffer and mirrors diagnostics into it
	VGA bool

	TraceFile string
	SaveFile  string
}

// NewConfig returns defaults for a terminal on stderr.
func NewConfig() *Config {
	c := &Config{
		Output:     os.Stderr,
		BSSFill:    DefaultBSSFill,
		InfoAddr:   DefaultInfoAddr,
		MemLowerKB: DefaultMemLowerKB,
		MemUpperKB: DefaultMemUpperKB,
		VGA:        true,
	}
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		c.Color = true
		c.Output = colorable.NewColorableStderr()
	}
	return c
}

func (c *Config) Init() *Config {
	if c.Output == nil {
		c.Output = os.Stderr
	}
	if c.InfoAddr == 0 {
		c.InfoAddr = DefaultInfoAddr
	}
	if c.MemLowerKB == 0 {
		c.MemLowerKB = DefaultMemLowerKB
	}
	if c.MemUpperKB == 0 {
		c.MemUpperKB = DefaultMemUpperKB
	}
	return c
}
