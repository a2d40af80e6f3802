// Command enginectl is the Engine toolchain's command-line front end: it
// drives the lexer, parser, analyzer, and one of the three back-ends
// (tree-walking interpreter, bytecode emitter+VM, or C99 transpiler)
// against a source file.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
