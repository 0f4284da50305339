// Package emulator binds a cpu.Cpu to host I/O (component I of the
// design: run loop and I/O wiring). It owns the PRINT/INPUT callbacks,
// the optional memory-mapped-I/O convention at 0x00FA/0x00FB, and the
// run-to-halt loop an interactive host polls for output.
package emulator

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/oper8/oper8/cpu"
)

// Emulator wraps one cpu.Cpu with the host-side I/O it needs to run a
// loaded program: where PRINT/STORZ-to-0x00FA output goes, where
// INPUT/LOADZ-from-0x00FB input comes from, and the currently loaded
// Program (kept for disassembly and line-number lookups by the debugger
// and REPL).
type Emulator struct {
	Verbose bool

	Cpu     *cpu.Cpu
	Program *cpu.Program

	Output io.Writer

	input *bufio.Reader

	// OnYield mirrors cpu.Cpu.OnYield: called every 1,000 steps of Run so
	// an interactive host can service buffered keystrokes.
	OnYield func()
}

// NewEmulator constructs an Emulator with its Cpu's PRINT/INPUT
// callbacks wired to Output/SetInput, Output defaulting to os.Stdout.
func NewEmulator(opts ...cpu.Option) *Emulator {
	e := &Emulator{
		Cpu:     cpu.NewCpu(opts...),
		Program: &cpu.Program{},
		Output:  os.Stdout,
	}
	e.Cpu.OnCharOutput = e.writeChar
	e.Cpu.OnCharInput = e.readChar
	e.Cpu.OnYield = func() {
		if e.OnYield != nil {
			e.OnYield()
		}
	}
	return e
}

func (e *Emulator) writeChar(b byte) {
	if e.Verbose {
		fmt.Fprintf(os.Stderr, "PRINT: %02X %q\n", b, rune(b))
	}
	if e.Output != nil {
		e.Output.Write([]byte{b})
	}
}

func (e *Emulator) readChar() byte {
	if e.input == nil {
		return 0
	}
	b, err := e.input.ReadByte()
	if err != nil {
		return 0
	}
	return b
}

// SetInput wires r as the byte source INPUT and LOADZ-from-0x00FB drain.
// A byte is consumed at most once; once r is exhausted, further reads
// return 0 (per spec.md §4.I: INPUT never blocks).
func (e *Emulator) SetInput(r io.Reader) {
	e.input = bufio.NewReader(r)
}

// LoadSource assembles r and loads the resulting program, resetting the
// machine first and positioning PC at the program's start address.
func (e *Emulator) LoadSource(r io.Reader) error {
	asm := cpu.NewAssembler()
	prog, err := asm.Parse(r)
	if err != nil {
		return err
	}
	e.Program = prog
	e.Cpu.Reset()
	e.Cpu.Load(prog)
	e.Cpu.PC = prog.StartAddr()
	return nil
}

// LoadBinary loads a raw byte image at addr, resetting the machine
// first. No Program is recorded, so line-number lookups report 0.
func (e *Emulator) LoadBinary(data []byte, addr uint16) {
	e.Cpu.Reset()
	e.Cpu.LoadProgram(data, addr)
	e.Cpu.PC = addr
	e.Program = &cpu.Program{}
}

// Run steps the machine to halt or until maxSteps is exhausted.
func (e *Emulator) Run(maxSteps int) (int, error) {
	e.Cpu.Verbose = e.Verbose
	return e.Cpu.Run(maxSteps)
}

// Step executes exactly one instruction.
func (e *Emulator) Step() error {
	e.Cpu.Verbose = e.Verbose
	return e.Cpu.Step()
}

// CurrentLine returns the source line number of the instruction at PC,
// or 0 if none is recorded (e.g. a raw binary load).
func (e *Emulator) CurrentLine() int {
	return e.Program.LineAt(e.Cpu.PC)
}

// CurrentCode returns the decoded instruction at PC, if the loaded
// program records one there.
func (e *Emulator) CurrentCode() (cpu.Code, bool) {
	return e.Program.CodeAt(e.Cpu.PC)
}
