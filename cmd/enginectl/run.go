package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"engine/internal/analyzer"
	"engine/internal/ast"
	"engine/internal/emitter"
	"engine/internal/interpreter"
	"engine/internal/lexer"
	"engine/internal/parser"
	"engine/internal/transpiler"
	"engine/internal/vm"
)

// runCmd is the toolchain's sole command: it lexes, parses, and
// type-checks a source file, then dispatches to whichever back-end the
// flags select. Absent any flag it interprets the program directly.
type runCmd struct {
	executable bool
	byteCode   bool
	useVM      bool
}

func (*runCmd) Name() string { return "run" }
func (*runCmd) Synopsis() string {
	return "Lex, parse, and execute (or compile) an Engine source file"
}
func (*runCmd) Usage() string {
	return `run [-executable|-e] [-byte-code|-b] [-vm] <file>:
  Execute an Engine program. Absent any flag, the program is interpreted
  directly. -e transpiles to C99, -b emits bytecode, and -vm emits
  bytecode and immediately runs it on the virtual machine.
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.executable, "executable", false, "transpile to a C99 source file instead of interpreting")
	f.BoolVar(&r.executable, "e", false, "shorthand for -executable")
	f.BoolVar(&r.byteCode, "byte-code", false, "emit the bytecode representation instead of interpreting")
	f.BoolVar(&r.byteCode, "b", false, "shorthand for -byte-code")
	f.BoolVar(&r.useVM, "vm", false, "emit bytecode and run it on the virtual machine")
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if r.executable && r.byteCode {
		fmt.Fprintln(os.Stderr, "💥 -executable and -byte-code are mutually exclusive")
		return subcommands.ExitUsageError
	}
	if r.executable && r.useVM {
		fmt.Fprintln(os.Stderr, "💥 -executable and -vm are mutually exclusive")
		return subcommands.ExitUsageError
	}

	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "💥 file not provided")
		return subcommands.ExitUsageError
	}
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	statements, err := frontend(string(data))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	base := strings.TrimSuffix(path, ext(path))

	switch {
	case r.executable:
		return runTranspile(base, statements)
	case r.byteCode:
		return runEmit(base, statements)
	case r.useVM:
		return runVM(statements)
	default:
		return runInterpret(statements)
	}
}

func ext(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ""
}

// frontend runs the lexer, parser, and analyzer, returning the checked
// statement tree every back-end operates on.
func frontend(source string) ([]ast.Statement, error) {
	lex := lexer.New(source)
	tokens, err := lex.Scan()
	if err != nil {
		return nil, err
	}
	significant := parser.Significant(tokens)
	p := parser.New(significant)
	statements, parseErrs := p.Parse()
	if len(parseErrs) > 0 {
		var b strings.Builder
		for _, e := range parseErrs {
			fmt.Fprintln(&b, e)
		}
		return nil, fmt.Errorf("%s", strings.TrimRight(b.String(), "\n"))
	}
	if err := analyzer.New().Analyze(statements); err != nil {
		return nil, err
	}
	return statements, nil
}

func runInterpret(statements []ast.Statement) subcommands.ExitStatus {
	it := interpreter.New(os.Stdout, os.Stdin)
	if err := it.Run(statements); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func runEmit(base string, statements []ast.Statement) subcommands.ExitStatus {
	outPath := base + ".ebc"
	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to create bytecode file: %v\n", err)
		return subcommands.ExitFailure
	}
	defer f.Close()

	em, err := emitter.New(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := em.Emit(statements); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func runVM(statements []ast.Statement) subcommands.ExitStatus {
	tmp, err := os.CreateTemp("", "engine-*.ebc")
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to create temporary bytecode file: %v\n", err)
		return subcommands.ExitFailure
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	em, err := emitter.New(tmp)
	if err != nil {
		tmp.Close()
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := em.Emit(statements); err != nil {
		tmp.Close()
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	tmp.Close()

	in, err := os.Open(tmpPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to reopen bytecode file: %v\n", err)
		return subcommands.ExitFailure
	}
	defer in.Close()

	machine, err := vm.New(in, os.Stdout, os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := machine.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func runTranspile(base string, statements []ast.Statement) subcommands.ExitStatus {
	outPath := base + ".c"
	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to create C source file: %v\n", err)
		return subcommands.ExitFailure
	}
	defer f.Close()

	tp := transpiler.New(f)
	if err := tp.Transpile(statements); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
