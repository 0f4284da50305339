package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oper8/oper8/emulator"
	"github.com/oper8/oper8/harness"
	"github.com/oper8/oper8/translate"
)

const defaultLoadAddr = 0x0200

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("oper8", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		debugPath  string
		singleStep string
		testFile   string
		interact   bool
		verbose    bool
	)
	fs.StringVar(&debugPath, "d", "", translate.From("single-step through <path>, dumping state after each instruction"))
	fs.StringVar(&singleStep, "ss", "", translate.From("run one single-step test string and report pass/fail"))
	fs.StringVar(&testFile, "t", "", translate.From("run every single-step test in <path>"))
	fs.BoolVar(&interact, "i", false, translate.From("start an interactive REPL"))
	fs.BoolVar(&verbose, "v", false, translate.From("trace every instruction to stderr"))

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] [path.asm|path.bin]\n", fs.Name())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	switch {
	case singleStep != "":
		return runSingleStepTest(singleStep)
	case testFile != "":
		return runTestFile(testFile)
	case debugPath != "":
		return runDebug(debugPath, verbose)
	case interact:
		var path string
		if fs.NArg() > 0 {
			path = fs.Arg(0)
		}
		return runRepl(path, verbose)
	case fs.NArg() == 1:
		return runProgram(fs.Arg(0), verbose)
	default:
		fs.Usage()
		return 2
	}
}

func runSingleStepTest(testString string) int {
	passed, mismatches, err := harness.RunString(testString)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	for _, m := range mismatches {
		fmt.Fprintf(os.Stderr, "%s\n", m)
	}
	if !passed {
		return 1
	}
	return 0
}

func runTestFile(path string) int {
	inf, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	defer inf.Close()

	results, allPassed, err := harness.RunFile(inf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	for _, r := range results {
		if r.Passed() {
			continue
		}
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "%s:%d: %v\n", path, r.LineNo, r.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "%s:%d: FAIL %s\n", path, r.LineNo, r.Source)
		for _, m := range r.Mismatches {
			fmt.Fprintf(os.Stderr, "    %s\n", m)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

func newLoadedEmulator(verbose bool) *emulator.Emulator {
	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	emu.SetInput(os.Stdin)
	return emu
}

func loadProgramFile(emu *emulator.Emulator, path string) error {
	inf, err := os.Open(path)
	if err != nil {
		return &emulator.ErrLoad{Path: path, Err: err}
	}
	defer inf.Close()

	if isBinaryPath(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return &emulator.ErrLoad{Path: path, Err: err}
		}
		emu.LoadBinary(data, defaultLoadAddr)
		return nil
	}

	if err := emu.LoadSource(inf); err != nil {
		return &emulator.ErrLoad{Path: path, Err: err}
	}
	return nil
}

func isBinaryPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".bin")
}

func runProgram(path string, verbose bool) int {
	emu := newLoadedEmulator(verbose)
	emu.Output = os.Stdout

	if err := loadProgramFile(emu, path); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	if _, err := emu.Run(1_000_000_000); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if !emu.Cpu.Halted {
		fmt.Fprintf(os.Stderr, "%s\n", translate.From("program did not halt"))
		return 1
	}
	return 0
}

func runDebug(path string, verbose bool) int {
	emu := newLoadedEmulator(verbose)
	emu.Output = os.Stdout

	if err := loadProgramFile(emu, path); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	for !emu.Cpu.Halted {
		line := emu.CurrentLine()
		code, ok := emu.CurrentCode()
		if ok {
			fmt.Fprintf(os.Stderr, "%4d %04X: %s\n", line, emu.Cpu.PC, code)
		} else {
			fmt.Fprintf(os.Stderr, "     %04X: ???\n", emu.Cpu.PC)
		}

		if err := emu.Step(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		dumpState(os.Stderr, emu)
	}
	return 0
}

func dumpState(w *os.File, emu *emulator.Emulator) {
	fmt.Fprintf(w, "     PC:%04X Z:%s C:%s N:%s", emu.Cpu.PC,
		boolDigit(emu.Cpu.Flags.Z), boolDigit(emu.Cpu.Flags.C), boolDigit(emu.Cpu.Flags.N))
	for i, v := range emu.Cpu.Register {
		fmt.Fprintf(w, " R%d:%02X", i, v)
	}
	fmt.Fprintln(w)
}

func runRepl(path string, verbose bool) int {
	emu := newLoadedEmulator(verbose)
	emu.Output = os.Stdout

	if path != "" {
		if err := loadProgramFile(emu, path); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 2
		}
	}

	r := newRepl(os.Stdout, emu)
	if err := r.Run(os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}
