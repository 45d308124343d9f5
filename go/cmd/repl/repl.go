package repl

import (
	"os"

	bootcorn "github.com/lunixbochs/bootcorn/go"
	"github.com/lunixbochs/bootcorn/go/cmd"
	"github.com/lunixbochs/bootcorn/go/repl"
	"github.com/lunixbochs/bootcorn/go/rt"
)

func Main(args []string) {
	c := cmd.NewBootCmd()
	c.MakeKernel = func(m *bootcorn.Machine) (rt.Entry, error) {
		r := &repl.Repl{
			Runtime: m.Runtime,
			Mem:     m.Mem,
			CPU:     m.CPU(),
			Out:     m.Console,
			Color:   m.Config.Color,
		}
		return r.Entry, nil
	}
	os.Exit(c.Run(args))
}

func init() { cmd.Register("repl", "boot into an interactive shell", Main) }
