package cmd

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"

	bootcorn "github.com/lunixbochs/bootcorn/go"
	"github.com/lunixbochs/bootcorn/go/loader"
	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/rt"
	"github.com/lunixbochs/bootcorn/go/rt/fault"
)

const defaultProfile = "default.toml"

type BootCmd struct {
	Config *models.Config

	SetupFlags func() error
	// MakeKernel returns the kernel entry the machine boots into.
	MakeKernel func(m *bootcorn.Machine) (rt.Entry, error)
	Teardown   func()

	Machine *bootcorn.Machine
	Flags   *flag.FlagSet
}

func NewBootCmd() *BootCmd {
	fs := flag.NewFlagSet("cli", flag.ExitOnError)
	return &BootCmd{Flags: fs}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func (c *BootCmd) PrintError(err error) {
	// print an error, and a stacktrace if available
	fmt.Fprintf(os.Stderr, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	if err, ok := err.(stackTracer); ok {
		var frames [][2]string
		width := 0
		for _, f := range err.StackTrace() {
			fileline := fmt.Sprintf("%s:%d", f, f)
			method := fmt.Sprintf("%n", f)
			frames = append(frames, [2]string{fileline, method})
			if len(fileline) > width {
				width = len(fileline)
			}
			if method == "main" {
				break
			}
		}
		for _, f := range frames {
			fmt.Fprintf(os.Stderr, "%-*s | %s()\n", width, f[0], f[1])
		}
	}
}

// LoadImage loads path, or without a path the user's default profile from
// the config dir, falling back to the built-in profile.
func LoadImage(path string) (*loader.Image, error) {
	if path != "" {
		return loader.LoadFile(path)
	}
	dirs := configdir.New("bootcorn", "")
	if folder := dirs.QueryFolderContainsFile(defaultProfile); folder != nil {
		return loader.LoadProfile(filepath.Join(folder.Path, defaultProfile))
	}
	return loader.Default()
}

func parseMagic(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	return uint32(n), errors.Wrapf(err, "bad magic %q", s)
}

// Run parses argv, boots the machine and returns the exit code.
func (c *BootCmd) Run(argv []string) int {
	fs := c.Flags
	verbose := fs.Bool("v", false, "verbose output: layout, loader and runtime steps")
	nocolor := fs.Bool("nocolor", false, "disable color output")
	outfile := fs.String("o", "", "redirect machine output to file (default stderr)")
	magic := fs.String("magic", "", "hand this magic to the runtime instead of 0x2BADB002")
	infoAddr := fs.Uint64("info", models.DefaultInfoAddr, "address of the boot information structure")
	memUpper := fs.Uint("mem-upper", models.DefaultMemUpperKB, "upper memory size in KB reported to the kernel")
	bssFill := fs.Uint("bss-fill", models.DefaultBSSFill, "byte written over .bss before boot (0 leaves it zero)")
	novga := fs.Bool("novga", false, "don't map a VGA text buffer")
	screen := fs.Bool("screen", false, "print the VGA screen after the CPU halts")
	tracefile := fs.String("to", "", "write a binary boot trace to file")
	save := fs.String("save", "", "snapshot memory to file after the CPU halts")
	hang := fs.Bool("hang", false, "halt the host process like real hardware instead of exiting")
	cpuprofile := fs.String("cpuprofile", "", "write cpu profile to <file>")
	memprofile := fs.String("memprofile", "", "write mem profile to <file>")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [image.elf|profile.toml]\n\nOptions:\n", argv[0])
		var flags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
		models.PrintFlags(os.Stderr, flags)
		fmt.Fprintf(os.Stderr, "\nWithout an image, %s from the bootcorn config dir or a built-in profile is used.\n", defaultProfile)
	}
	if c.SetupFlags != nil {
		if err := c.SetupFlags(); err != nil {
			c.PrintError(err)
			return 1
		}
	}
	fs.Parse(argv[1:])
	if fs.NArg() > 1 {
		fs.Usage()
		return 1
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			c.PrintError(errors.WithStack(err))
			return 1
		}
		pprof.StartCPUProfile(f)
	}
	teardown := func() {
		if *cpuprofile != "" {
			pprof.StopCPUProfile()
		}
		if *memprofile != "" {
			f, err := os.Create(*memprofile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not write heap profile: %s\n", err)
			} else {
				pprof.WriteHeapProfile(f)
				f.Close()
			}
		}
		if c.Teardown != nil {
			c.Teardown()
		}
	}
	defer teardown()

	if *bssFill > 0xff {
		c.PrintError(errors.Errorf("-bss-fill %#x does not fit in a byte", *bssFill))
		return 1
	}

	config := models.NewConfig()
	config.Verbose = *verbose
	config.InfoAddr = *infoAddr
	config.MemUpperKB = uint32(*memUpper)
	config.BSSFill = byte(*bssFill)
	config.VGA = !*novga
	config.TraceFile = *tracefile
	config.SaveFile = *save
	if *nocolor {
		config.Color = false
	}
	if *magic != "" {
		m, err := parseMagic(*magic)
		if err != nil {
			c.PrintError(err)
			return 1
		}
		config.Magic, config.UseMagic = m, true
	}
	if *outfile != "" {
		out, err := os.OpenFile(*outfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			c.PrintError(errors.WithStack(err))
			return 1
		}
		defer out.Close()
		config.Output = out
		config.Color = false
	}
	c.Config = config

	img, err := LoadImage(fs.Arg(0))
	if err != nil {
		c.PrintError(err)
		return 1
	}
	m, err := bootcorn.NewMachine(config, img)
	if err != nil {
		c.PrintError(err)
		return 1
	}
	c.Machine = m
	if *hang {
		m.Hang = fault.PauseCPU{}
	}
	kernel, err := c.MakeKernel(m)
	if err != nil {
		c.PrintError(err)
		return 1
	}
	if config.Verbose {
		fmt.Fprintf(config.Output, "[booting %s entry=%#x]\n", img.Source, img.Entry)
	}
	status, err := m.Boot(kernel)
	if err != nil {
		c.PrintError(err)
		return 1
	}
	if *screen && m.VGA != nil {
		lines, _ := m.VGA.Lines()
		fmt.Fprintf(config.Output, "%s\n", strings.Repeat("=", 80))
		for _, line := range lines {
			fmt.Fprintln(config.Output, line)
		}
		fmt.Fprintf(config.Output, "%s\n", strings.Repeat("=", 80))
	}
	style := "green"
	if status.Fault != nil {
		style = "red+b"
	}
	fmt.Fprintln(config.Output, models.Paint(status.String(), style, config.Color))
	if status.Fault != nil {
		return 1
	}
	return 0
}
