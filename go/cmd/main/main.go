package main

import (
	"github.com/lunixbochs/bootcorn/go/cmd"

	_ "github.com/lunixbochs/bootcorn/go/cmd/boot"
	_ "github.com/lunixbochs/bootcorn/go/cmd/repl"
	_ "github.com/lunixbochs/bootcorn/go/cmd/trace"
)

func main() { cmd.Main() }
