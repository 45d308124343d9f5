package trace

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/cmd"
	"github.com/lunixbochs/bootcorn/go/models/trace"
)

func PrintJson(w io.Writer, tf *trace.TraceReader) error {
	out, err := json.Marshal(&tf.Header)
	if err != nil {
		return errors.Wrap(err, "error printing header")
	}
	fmt.Fprintf(w, "%s\n", out)
	for {
		op, err := tf.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrap(err, "error reading next trace operation")
		}
		out, _ := json.Marshal(op)
		fmt.Fprintf(w, "{\"kind\":%d,\"op\":%s}\n", op.Kind(), out)
	}
	return nil
}

func PrintPretty(w io.Writer, tf *trace.TraceReader) error {
	fmt.Fprintf(w, "trace %s v%d\n", tf.Header.Magic, tf.Header.Version)
	for i := 0; ; i++ {
		op, err := tf.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrap(err, "error reading next trace operation")
		}
		fmt.Fprintf(w, "%4d %s\n", i, op)
	}
	return nil
}

func Main(args []string) {
	fs := flag.NewFlagSet("args", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output trace as line-delimited JSON objects")
	fs.Usage = func() {
		fmt.Printf("Usage: %s [options] <tracefile>\n", args[0])
		fs.PrintDefaults()
	}

	fs.Parse(args[1:])
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}
	args = fs.Args()

	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open: %s %v\n", args[0], err)
		os.Exit(1)
	}
	tf, err := trace.NewReader(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening trace file: %v\n", err)
		os.Exit(1)
	}
	defer tf.Close()
	if *jsonFlag {
		err = PrintJson(os.Stdout, tf)
	} else {
		err = PrintPretty(os.Stdout, tf)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error printing trace: %v\n", err)
		os.Exit(1)
	}
}

func init() { cmd.Register("trace", "print a saved boot trace", Main) }
