// Package harness implements the OPER-8 single-step test format: a
// declarative triple of preconditions, instructions, and postconditions
// that probes one instruction (or a short sequence) in isolation.
package harness

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/oper8/oper8/cpu"
	"github.com/oper8/oper8/translate"
)

var f = translate.From

type conditionKind int

const (
	condRegister conditionKind = iota
	condPC
	condZ
	condC
	condN
	condMemory
)

// condition is one parsed NAME:VALUE token from a precondition or
// postcondition group.
type condition struct {
	kind  conditionKind
	reg   byte
	addr  uint16
	byte8 byte
	word  uint16
	flag  bool
	raw   string
}

// parseCondition parses one whitespace-delimited NAME:VALUE token per the
// grammar in spec.md §4.H.
func parseCondition(tok string) (condition, error) {
	i := strings.IndexByte(tok, ':')
	if i < 0 {
		return condition{}, cpu.ErrBadTestLine
	}
	name, value := tok[:i], tok[i+1:]

	switch {
	case name == "PC":
		v, err := strconv.ParseUint(value, 16, 16)
		if err != nil {
			return condition{}, fmt.Errorf("%w: %s", cpu.ErrBadTestLine, tok)
		}
		return condition{kind: condPC, word: uint16(v), raw: tok}, nil

	case name == "Z" || name == "C" || name == "N":
		if value != "0" && value != "1" {
			return condition{}, fmt.Errorf("%w: %s", cpu.ErrBadTestLine, tok)
		}
		kind := map[string]conditionKind{"Z": condZ, "C": condC, "N": condN}[name]
		return condition{kind: kind, flag: value == "1", raw: tok}, nil

	case strings.HasPrefix(name, "R"):
		n, err := strconv.Atoi(name[1:])
		if err != nil || n < 0 || n > 15 {
			return condition{}, fmt.Errorf("%w: %s", cpu.ErrBadTestLine, tok)
		}
		v, err := strconv.ParseUint(value, 16, 8)
		if err != nil {
			return condition{}, fmt.Errorf("%w: %s", cpu.ErrBadTestLine, tok)
		}
		return condition{kind: condRegister, reg: byte(n), byte8: byte(v), raw: tok}, nil

	case strings.HasPrefix(name, "M[") && strings.HasSuffix(name, "]"):
		addr, err := strconv.ParseUint(name[2:len(name)-1], 16, 16)
		if err != nil {
			return condition{}, fmt.Errorf("%w: %s", cpu.ErrBadTestLine, tok)
		}
		v, err := strconv.ParseUint(value, 16, 8)
		if err != nil {
			return condition{}, fmt.Errorf("%w: %s", cpu.ErrBadTestLine, tok)
		}
		return condition{kind: condMemory, addr: uint16(addr), byte8: byte(v), raw: tok}, nil

	default:
		return condition{}, fmt.Errorf("%w: %s", cpu.ErrBadTestLine, tok)
	}
}

func parseConditionGroup(group string) ([]condition, error) {
	fields := strings.Fields(group)
	conds := make([]condition, 0, len(fields))
	for _, tok := range fields {
		c, err := parseCondition(tok)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func (c condition) apply(m *cpu.Cpu) {
	switch c.kind {
	case condRegister:
		m.Register[c.reg] = c.byte8
	case condPC:
		m.PC = c.word
	case condZ:
		m.Flags.Z = c.flag
	case condC:
		m.Flags.C = c.flag
	case condN:
		m.Flags.N = c.flag
	case condMemory:
		m.Memory.Set(c.addr, c.byte8)
	}
}

// name renders the token's NAME portion for diff reporting.
func (c condition) name() string {
	if i := strings.IndexByte(c.raw, ':'); i >= 0 {
		return c.raw[:i]
	}
	return c.raw
}

func (c condition) check(m *cpu.Cpu) (got string, want string, ok bool) {
	switch c.kind {
	case condRegister:
		return fmt.Sprintf("%02X", m.Register[c.reg]), fmt.Sprintf("%02X", c.byte8), m.Register[c.reg] == c.byte8
	case condPC:
		return fmt.Sprintf("%04X", m.PC), fmt.Sprintf("%04X", c.word), m.PC == c.word
	case condZ:
		return boolDigit(m.Flags.Z), boolDigit(c.flag), m.Flags.Z == c.flag
	case condC:
		return boolDigit(m.Flags.C), boolDigit(c.flag), m.Flags.C == c.flag
	case condN:
		return boolDigit(m.Flags.N), boolDigit(c.flag), m.Flags.N == c.flag
	case condMemory:
		got := m.Memory.Get(c.addr)
		return fmt.Sprintf("%02X", got), fmt.Sprintf("%02X", c.byte8), got == c.byte8
	}
	return "", "", false
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// testOrigin is the fixed address the harness assembles and loads every
// single-step test's instructions at, per spec.md §4.H.
const testOrigin uint16 = 0x0100

// Test is one parsed single-step test: preconditions to apply, the raw
// instruction source lines to assemble and execute, and postconditions
// to verify.
type Test struct {
	Source       string
	Pre          []condition
	Instructions []string
	Post         []condition
}

// Mismatch describes one postcondition that did not hold after Run.
type Mismatch struct {
	Name string
	Want string
	Got  string
}

func (m Mismatch) String() string {
	return f("%s: want %s, got %s", m.Name, m.Want, m.Got)
}

// Parse parses one single-step test string: "preconds ; instr ; ... ;
// postconds". There must be at least one instruction, so Parse requires
// at least three ';'-separated groups; every group between the first and
// the last is a separate instruction line.
func Parse(testString string) (*Test, error) {
	groups := strings.Split(testString, ";")
	if len(groups) < 3 {
		return nil, fmt.Errorf("%w: %s", cpu.ErrBadTestLine, testString)
	}

	pre, err := parseConditionGroup(groups[0])
	if err != nil {
		return nil, err
	}
	post, err := parseConditionGroup(groups[len(groups)-1])
	if err != nil {
		return nil, err
	}

	instructions := make([]string, 0, len(groups)-2)
	for _, ins := range groups[1 : len(groups)-1] {
		ins = strings.TrimSpace(ins)
		if ins == "" {
			return nil, fmt.Errorf("%w: empty instruction in %s", cpu.ErrBadTestLine, testString)
		}
		instructions = append(instructions, ins)
	}

	return &Test{Source: testString, Pre: pre, Instructions: instructions, Post: post}, nil
}

// Run builds a fresh machine, assembles Instructions at the fixed test
// origin, applies preconditions (which may relocate PC), steps once per
// instruction, then checks every postcondition. It reports every
// mismatch rather than stopping at the first.
func (t *Test) Run() ([]Mismatch, error) {
	asm := cpu.NewAssembler()
	var src strings.Builder
	fmt.Fprintf(&src, ".org $%04X\n", testOrigin)
	for _, ins := range t.Instructions {
		src.WriteString(ins)
		src.WriteByte('\n')
	}

	prog, err := asm.Parse(strings.NewReader(src.String()))
	if err != nil {
		return nil, err
	}

	m := cpu.NewCpu()
	m.Load(prog)
	m.PC = testOrigin

	for _, pre := range t.Pre {
		pre.apply(m)
	}

	for range t.Instructions {
		if err := m.Step(); err != nil {
			return nil, err
		}
	}

	var mismatches []Mismatch
	for _, post := range t.Post {
		got, want, ok := post.check(m)
		if !ok {
			mismatches = append(mismatches, Mismatch{Name: post.name(), Want: want, Got: got})
		}
	}
	return mismatches, nil
}

// RunString parses and runs a single single-step test string, returning
// whether it passed and any mismatches found.
func RunString(testString string) (bool, []Mismatch, error) {
	test, err := Parse(testString)
	if err != nil {
		return false, nil, err
	}
	mismatches, err := test.Run()
	if err != nil {
		return false, nil, err
	}
	return len(mismatches) == 0, mismatches, nil
}

// FileResult is the outcome of running one test line from a test file.
type FileResult struct {
	LineNo     int
	Source     string
	Mismatches []Mismatch
	Err        error
}

// Passed reports whether this line's test succeeded.
func (r FileResult) Passed() bool {
	return r.Err == nil && len(r.Mismatches) == 0
}

// RunFile reads a line-oriented single-step test file - blank lines and
// "//"-prefixed comment lines are ignored - and runs every test line,
// returning one FileResult per test and whether every test in the file
// passed.
func RunFile(r io.Reader) (results []FileResult, allPassed bool, err error) {
	allPassed = true
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		res := FileResult{LineNo: lineNo, Source: line}
		test, perr := Parse(line)
		if perr != nil {
			res.Err = perr
			allPassed = false
			results = append(results, res)
			continue
		}

		mismatches, rerr := test.Run()
		if rerr != nil {
			res.Err = rerr
			allPassed = false
		} else if len(mismatches) > 0 {
			res.Mismatches = mismatches
			allPassed = false
		}
		results = append(results, res)
	}
	if sc.Err() != nil {
		return results, false, sc.Err()
	}
	return results, allPassed, nil
}
