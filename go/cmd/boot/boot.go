package boot

import (
	"os"

	bootcorn "github.com/lunixbochs/bootcorn/go"
	"github.com/lunixbochs/bootcorn/go/cmd"
	"github.com/lunixbochs/bootcorn/go/kernel"
	"github.com/lunixbochs/bootcorn/go/rt"
)

func Main(args []string) {
	c := cmd.NewBootCmd()
	allocs := c.Flags.String("alloc", "", "allocations the demo kernel makes, as size:align[,size:align...]")
	must := c.Flags.Bool("must", false, "use infallible allocations: exhaustion panics")
	c.MakeKernel = func(m *bootcorn.Machine) (rt.Entry, error) {
		reqs, err := kernel.ParseAllocs(*allocs)
		if err != nil {
			return nil, err
		}
		d := &kernel.Demo{
			Runtime: m.Runtime,
			Mem:     m.Mem,
			Console: m.Console,
			CPU:     m.CPU(),
			Allocs:  reqs,
			Must:    *must,
		}
		return d.Entry, nil
	}
	os.Exit(c.Run(args))
}

func init() { cmd.Register("boot", "boot an image into the demo kernel", Main) }
