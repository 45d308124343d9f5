// Package repl is a kernel entry that hands the booted machine to an
// interactive shell.
package repl

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/mattn/go-shellwords"
	"github.com/shibukawa/configdir"

	"github.com/lunixbochs/bootcorn/go/models/mem"
	"github.com/lunixbochs/bootcorn/go/rt"
	"github.com/lunixbochs/bootcorn/go/rt/fault"
)

type Repl struct {
	Runtime *rt.Runtime
	Mem     *mem.Mem
	CPU     fault.Halter
	Out     io.Writer
	Color   bool
}

func (r *Repl) Printf(format string, a ...interface{}) {
	fmt.Fprintf(r.Out, format, a...)
}

// Exec runs one command line. It reports whether the line asked to halt.
func (r *Repl) Exec(line string) bool {
	args, err := shellwords.Parse(line)
	if err != nil {
		r.Printf("parse error: %v\n", err)
		return false
	}
	if len(args) == 0 {
		return false
	}
	name, args := args[0], args[1:]
	c, ok := Commands[name]
	if !ok {
		r.Printf("command not found.\n")
		return false
	}
	if err := c.Run(r, args); err == errHalt {
		return true
	} else if err != nil {
		r.Printf("error: %v\n", err)
	}
	return false
}

func historyPath() string {
	cacheDir := configdir.New("bootcorn", "repl").QueryCacheFolder()
	if err := cacheDir.MkdirAll(); err != nil {
		return ""
	}
	return filepath.Join(cacheDir.Path, "history")
}

// Run reads commands until halt or end of input.
func (r *Repl) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bootcorn> ",
		InterruptPrompt: "\n",
		HistoryFile:     historyPath(),
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	if r.Out == nil {
		r.Out = rl.Stderr()
	}
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err != nil {
			return nil
		}
		if r.Exec(line) {
			return nil
		}
	}
}

// Entry is the kernel entry point: the shell, then a halted CPU.
func (r *Repl) Entry(magic uint32, mbi uint64) {
	r.Printf("magic=%#x mbi=%#x, type help for commands\n", magic, mbi)
	if err := r.Run(); err != nil {
		r.Printf("repl: %v\n", err)
	}
	for {
		r.CPU.Halt()
	}
}
