// cmd/bt is BT's command-line driver: run a script, drop into a REPL, or
// compile a script to a standalone bytecode dump.
//
// Grounded on the teacher's cmd/sentra/main.go: the alias-map dispatch and
// recover-based error printing carry over; the optimization-tier flags
// (--production/--fast/--hotfix/--super/...) and the sprawl of
// fmt/lsp/debug/watch subcommands do not, since SPEC_FULL.md names no JIT
// tiers and no IDE-tooling surface for this language core.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"bullettrain/internal/bterrors"
	"bullettrain/internal/btcontext"
	"bullettrain/internal/compiler"
	"bullettrain/internal/vm"
)

var commandAliases = map[string]string{
	"r": "run",
	"i": "repl",
	"c": "compile",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Println("bt 0.1.0")
	case "run":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "run: no filename provided")
			os.Exit(1)
		}
		runFile(args[1])
	case "repl":
		startRepl()
	case "compile":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "compile: no filename provided")
			os.Exit(1)
		}
		compileFile(args[1])
	default:
		showUsage()
		os.Exit(1)
	}
}

func runFile(filename string) {
	ctx := btcontext.New()
	fn, err := compiler.CompileFile(ctx, filename)
	if err != nil {
		reportError(err)
		os.Exit(1)
	}

	th := vm.NewThread()
	if err := th.Run(fn, ctx.RootShape, ctx.Heap); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func compileFile(filename string) {
	ctx := btcontext.New()
	fn, err := compiler.CompileFile(ctx, filename)
	if err != nil {
		reportError(err)
		os.Exit(1)
	}

	for i, instr := range fn.Program {
		fmt.Printf("%04d  %s\n", i, instr.String())
	}
}

// startRepl evaluates each line as an independent program: BT's compiler
// has no notion of a persistent global scope (spec §3.6 locals live only
// for the Function that declares them), so unlike the teacher's REPL this
// one cannot carry a variable across lines — only its registered side
// effects (prints, in practice) are visible line to line.
func startRepl() {
	fmt.Println("bt repl | type 'exit' to quit")
	scanner := bufio.NewScanner(os.Stdin)
	ctx := btcontext.New()

	for {
		fmt.Print(">>> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "exit" {
			break
		}
		if line == "" {
			continue
		}

		fn, err := compiler.Compile(ctx, line)
		if err != nil {
			reportError(err)
			continue
		}

		th := vm.NewThread()
		if err := th.Run(fn, ctx.RootShape, ctx.Heap); err != nil {
			reportError(err)
		}
	}
}

func reportError(err error) {
	var buf bytes.Buffer
	if be, ok := err.(*bterrors.Error); ok {
		fmt.Fprintf(&buf, "%s\n", be.Error())
	} else {
		fmt.Fprintf(&buf, "error: %v\n", err)
	}
	os.Stderr.Write(buf.Bytes())
}

func showUsage() {
	fmt.Println(`bt - the BT language compiler and runtime

Usage:
  bt run <file>      compile and execute a script
  bt repl            start an interactive session
  bt compile <file>  print the compiled bytecode for a script
  bt version         print the version
  bt help            print this message`)
}
