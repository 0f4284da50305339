package main

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"maps"
	"strconv"
	"strings"

	"github.com/beevik/prefixtree"

	"github.com/oper8/oper8/emulator"
	"github.com/oper8/oper8/internal"
	"github.com/oper8/oper8/translate"
)

var tf = translate.From

// replCommand is one REPL verb. name is matched by unambiguous prefix via
// a prefixtree.Tree, the way beevik-go6502's debugger resolves
// abbreviated commands (r[egisters], s[tep], ...).
type replCommand struct {
	name    string
	help    string
	handler func(r *repl, args []string) error
}

var errQuit = fmt.Errorf("quit")

var replCommands []replCommand

func init() {
	replCommands = []replCommand{
		{"registers", "show registers, PC and flags", (*repl).cmdRegisters},
		{"step", "execute one instruction [n]", (*repl).cmdStep},
		{"memory", "dump memory: memory <addr> [count]", (*repl).cmdMemory},
		{"assemble", "(re)assemble a source file: assemble <path>", (*repl).cmdAssemble},
		{"run", "run to halt", (*repl).cmdRun},
		{"help", "list commands", (*repl).cmdHelp},
		{"quit", "exit the REPL", (*repl).cmdQuit},
	}
}

// repl is the interactive host for oper8 -i. Its command table is
// resolved through a prefixtree.Tree so "re", "reg", ... all reach
// cmdRegisters as long as the prefix is unambiguous ("r" alone also
// matches "run" and is reported as ambiguous).
type repl struct {
	out   io.Writer
	emu   *emulator.Emulator
	tree  *prefixtree.Tree
	byKey map[string]replCommand
}

func newRepl(out io.Writer, emu *emulator.Emulator) *repl {
	r := &repl{out: out, emu: emu, byKey: map[string]replCommand{}}
	r.tree = prefixtree.New()
	for _, c := range replCommands {
		r.byKey[c.name] = c
		r.tree.Add(c.name, c.name)
	}
	return r
}

// Run drives the REPL's read-eval-print loop over in until EOF, a "quit"
// command, or an unrecoverable read error.
func (r *repl) Run(in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprintf(r.out, "%04X> ", r.emu.Cpu.PC)
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if err := r.dispatch(line); err != nil {
			if err == errQuit {
				return nil
			}
			fmt.Fprintf(r.out, "%v\n", err)
		}
	}
}

func (r *repl) dispatch(line string) error {
	fields := strings.Fields(line)
	name, err := r.tree.Find(fields[0])
	switch err {
	case nil:
	case prefixtree.ErrPrefixNotFound:
		return fmt.Errorf("%s", tf("%s: command not found", fields[0]))
	case prefixtree.ErrPrefixAmbiguous:
		return fmt.Errorf("%s", tf("%s: ambiguous command", fields[0]))
	default:
		return err
	}

	cmd := r.byKey[name.(string)]
	return cmd.handler(r, fields[1:])
}

func (r *repl) cmdQuit(args []string) error {
	return errQuit
}

func (r *repl) cmdHelp(args []string) error {
	for _, c := range replCommands {
		fmt.Fprintf(r.out, "%-10s %s\n", c.name, c.help)
	}
	return nil
}

// registerValues returns an iterator over "Rn" -> "HH" for all sixteen
// registers, for use alongside flagValues in a single merged dump.
func (r *repl) registerValues() iter.Seq2[string, string] {
	m := map[string]string{}
	for i, v := range r.emu.Cpu.Register {
		m[fmt.Sprintf("R%d", i)] = fmt.Sprintf("%02X", v)
	}
	return maps.All(m)
}

func (r *repl) flagValues() iter.Seq2[string, string] {
	m := map[string]string{
		"Z": boolDigit(r.emu.Cpu.Flags.Z),
		"C": boolDigit(r.emu.Cpu.Flags.C),
		"N": boolDigit(r.emu.Cpu.Flags.N),
	}
	return maps.All(m)
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (r *repl) cmdRegisters(args []string) error {
	fmt.Fprintf(r.out, "PC:%04X\n", r.emu.Cpu.PC)
	for name, value := range internal.IterSeq2Concat(r.registerValues(), r.flagValues()) {
		fmt.Fprintf(r.out, "%-4s %s\n", name, value)
	}
	return nil
}

func (r *repl) cmdStep(args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%s", tf("%s: not a number", args[0]))
		}
		n = v
	}

	for i := 0; i < n && !r.emu.Cpu.Halted; i++ {
		if err := r.emu.Step(); err != nil {
			return err
		}
		if code, ok := r.emu.CurrentCode(); ok {
			fmt.Fprintf(r.out, "%04X: %s\n", r.emu.Cpu.PC, code)
		}
	}
	return nil
}

func (r *repl) cmdRun(args []string) error {
	_, err := r.emu.Run(1_000_000)
	if err != nil {
		return err
	}
	if r.emu.Cpu.Halted {
		fmt.Fprintf(r.out, "%s\n", tf("halted"))
	}
	return nil
}

func (r *repl) cmdMemory(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%s", tf("usage: memory <addr> [count]"))
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "$"), 16, 16)
	if err != nil {
		return fmt.Errorf("%s", tf("%s: not a hex address", args[0]))
	}
	count := uint64(16)
	if len(args) > 1 {
		count, err = strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return fmt.Errorf("%s", tf("%s: not a number", args[1]))
		}
	}

	for i := uint64(0); i < count; i += 8 {
		fmt.Fprintf(r.out, "%04X:", uint16(addr)+uint16(i))
		for j := uint64(0); j < 8 && i+j < count; j++ {
			fmt.Fprintf(r.out, " %02X", r.emu.Cpu.Memory.Get(uint16(addr)+uint16(i+j)))
		}
		fmt.Fprintln(r.out)
	}
	return nil
}

func (r *repl) cmdAssemble(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%s", tf("usage: assemble <path>"))
	}
	return loadProgramFile(r.emu, args[0])
}
