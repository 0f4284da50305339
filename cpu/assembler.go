package cpu

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"go.starlark.net/starlark"
)

// mnemonicShape classifies the operand grammar a mnemonic expects.
type mnemonicShape int

const (
	shapeNone  mnemonicShape = iota // no operands
	shapeRxRy                      // two registers
	shapeRx                        // one register
	shapeImm8                      // one byte-sized value or label operator
	shapeBranch                    // one label/offset, resolved relative to PC+2
)

type mnemonicSpec struct {
	op    Op
	shape mnemonicShape
}

var mnemonicSpecs = buildMnemonicSpecs()

func buildMnemonicSpecs() map[string]mnemonicSpec {
	specs := map[string]mnemonicSpec{
		"NOP": {OpNOP, shapeNone},
		"MOV": {OpMOV, shapeRxRy}, "SWAP": {OpSWAP, shapeRxRy},
		"LOAD": {OpLOAD, shapeRxRy}, "STOR": {OpSTOR, shapeRxRy},
		"LOADZ": {OpLOADZ, shapeImm8}, "STORZ": {OpSTORZ, shapeImm8},
		"ADD": {OpADD, shapeRxRy}, "ADC": {OpADC, shapeRxRy},
		"SUB": {OpSUB, shapeRxRy}, "SBC": {OpSBC, shapeRxRy},
		"INC": {OpINC, shapeRx}, "DEC": {OpDEC, shapeRx},
		"CMP": {OpCMP, shapeRxRy}, "MUL": {OpMUL, shapeRxRy}, "DIV": {OpDIV, shapeRxRy},
		"AND": {OpAND, shapeRxRy}, "OR": {OpOR, shapeRxRy}, "XOR": {OpXOR, shapeRxRy},
		"NOT": {OpNOT, shapeRx}, "SHL": {OpSHL, shapeRx}, "SHR": {OpSHR, shapeRx},
		"TEST": {OpTEST, shapeRxRy},
		"JMP":  {OpJMP, shapeBranch}, "JZ": {OpJZ, shapeBranch}, "JNZ": {OpJNZ, shapeBranch},
		"JC": {OpJC, shapeBranch}, "JNC": {OpJNC, shapeBranch}, "JN": {OpJN, shapeBranch},
		"CALL": {OpCALL, shapeBranch},
		"JMPL": {OpJMPL, shapeRxRy}, "CALLL": {OpCALLL, shapeRxRy},
		"RET": {OpRET, shapeNone},
		"PUSH": {OpPUSH, shapeRxRy}, "POP": {OpPOP, shapeRxRy},
		"PRINT": {OpPRINT, shapeRx}, "INPUT": {OpINPUT, shapeRx},
		"HLT": {OpHLT, shapeNone},
	}
	for n := byte(0); n < 16; n++ {
		specs[fmt.Sprintf("LDI%d", n)] = mnemonicSpec{OpLDI0 + Op(n), shapeImm8}
	}
	return specs
}

// item is one instruction line recorded by pass 1, awaiting operand
// resolution in pass 2. Data lines are resolved in pass 1 and kept as
// dataSegment values instead.
type item struct {
	lineNo int
	addr   uint16
	line   string // raw instruction/source text, trimmed of comments
}

// Assembler translates OPER-8 source text into an assembled Program. It
// is a two-pass translator: Parse resolves labels and segment layout in
// pass 1, then emits bytes for every recorded instruction in pass 2.
type Assembler struct {
	Verbose bool

	Label  map[string]uint16
	Equate map[string]string
}

// NewAssembler returns an Assembler ready to Parse source text.
func NewAssembler() *Assembler {
	return &Assembler{
		Label:  map[string]uint16{},
		Equate: map[string]string{},
	}
}

type dataSegment struct {
	addr uint16
	data []byte
}

// Parse runs both assembler passes over r and returns the assembled
// Program, or the first ErrSyntax encountered.
func (a *Assembler) Parse(r io.Reader) (*Program, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}

	var instructions []item
	var segments []dataSegment
	addr := ResetPC
	haveOrg := false

	for lineNo, raw := range lines {
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(strings.ToUpper(line), ".ORG"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, ErrSyntax{lineNo + 1, raw, ErrBadDirective}
			}
			v, err := a.resolveNumber(strings.Join(fields[1:], " "))
			if err != nil {
				return nil, ErrSyntax{lineNo + 1, raw, err}
			}
			addr = uint16(v)
			haveOrg = true

		case strings.HasPrefix(strings.ToUpper(line), ".EQU"):
			fields := strings.Fields(line)
			if len(fields) != 3 {
				return nil, ErrSyntax{lineNo + 1, raw, ErrBadDirective}
			}
			a.Equate[strings.ToUpper(fields[1])] = fields[2]

		case strings.HasPrefix(strings.ToUpper(line), ".DATA"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, ErrSyntax{lineNo + 1, raw, ErrBadDirective}
			}
			bytes, err := a.assembleData(fields[1:])
			if err != nil {
				return nil, ErrSyntax{lineNo + 1, raw, err}
			}
			segments = append(segments, dataSegment{addr, bytes})
			addr += uint16(len(bytes))

		case strings.HasSuffix(line, ":"):
			name := strings.ToUpper(strings.TrimSuffix(line, ":"))
			if _, exists := a.Label[name]; exists {
				return nil, ErrSyntax{lineNo + 1, raw, ErrDuplicateLabel}
			}
			a.Label[name] = addr

		default:
			instructions = append(instructions, item{lineNo + 1, addr, line})
			addr += 2
		}
	}

	if !haveOrg && len(instructions) == 0 && len(segments) == 0 {
		return &Program{}, nil
	}

	var debug []Instruction
	var codeSegments []Segment
	var cur []byte
	var curAddr uint16
	expectNext := uint16(0)

	flush := func() {
		if len(cur) > 0 {
			codeSegments = append(codeSegments, Segment{Addr: curAddr, Data: cur})
		}
	}

	for n, it := range instructions {
		code, size, err := a.assembleInstruction(it)
		if err != nil {
			return nil, ErrSyntax{it.lineNo, it.line, err}
		}
		if n == 0 || it.addr != expectNext {
			flush()
			cur = nil
			curAddr = it.addr
		}
		b := code.Bytes()
		cur = append(cur, b[:size]...)
		expectNext = it.addr + uint16(size)
		debug = append(debug, Instruction{LineNo: it.lineNo, Addr: it.addr, Code: code})
	}
	flush()

	prog := &Program{Instructions: debug, Segments: codeSegments}
	prog.Segments = append(prog.Segments, segmentsFrom(segments)...)

	return prog, nil
}

func segmentsFrom(raw []dataSegment) []Segment {
	out := make([]Segment, 0, len(raw))
	for _, seg := range raw {
		out = append(out, Segment{Addr: seg.addr, Data: seg.data})
	}
	return out
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func stripComment(line string) string {
	if i := strings.Index(line, ";"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return line
}

func splitOperands(rest string) []string {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil
	}
	parts := strings.Split(rest, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func (a *Assembler) assembleInstruction(it item) (Code, int, error) {
	fields := strings.Fields(it.line)
	mnemonic := strings.ToUpper(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(it.line), fields[0]))
	operands := splitOperands(rest)

	spec, ok := mnemonicSpecs[mnemonic]
	if !ok {
		return Code{}, 0, ErrUnknownMnemonic
	}

	switch spec.shape {
	case shapeNone:
		if len(operands) != 0 {
			return Code{}, 0, ErrWrongOperandCount
		}
		return Code{Op: spec.op}, 2, nil

	case shapeRx:
		if len(operands) != 1 {
			return Code{}, 0, ErrWrongOperandCount
		}
		rx, ok := registerName(a.expand(operands[0]))
		if !ok {
			return Code{}, 0, ErrBadRegister
		}
		return Code{Op: spec.op, Arg: rx << 4}, 2, nil

	case shapeRxRy:
		if len(operands) != 2 {
			return Code{}, 0, ErrWrongOperandCount
		}
		rx, ok := registerName(a.expand(operands[0]))
		if !ok {
			return Code{}, 0, ErrBadRegister
		}
		ry, ok := registerName(a.expand(operands[1]))
		if !ok {
			return Code{}, 0, ErrBadRegister
		}
		return Code{Op: spec.op, Arg: (rx << 4) | ry}, 2, nil

	case shapeImm8:
		if len(operands) != 1 {
			return Code{}, 0, ErrWrongOperandCount
		}
		v, err := a.resolveByteOperand(a.expand(operands[0]), it.addr, false)
		if err != nil {
			return Code{}, 0, err
		}
		return Code{Op: spec.op, Arg: v}, 2, nil

	case shapeBranch:
		if len(operands) != 1 {
			return Code{}, 0, ErrWrongOperandCount
		}
		v, err := a.resolveByteOperand(a.expand(operands[0]), it.addr, true)
		if err != nil {
			return Code{}, 0, err
		}
		return Code{Op: spec.op, Arg: v}, 2, nil
	}

	return Code{}, 0, ErrUnknownMnemonic
}

// expand substitutes a token for its .equ definition, if any, repeating
// until a fixed point (a small, bounded number of substitutions) so
// equates may reference other equates.
func (a *Assembler) expand(tok string) string {
	for i := 0; i < 8; i++ {
		key := strings.ToUpper(tok)
		v, ok := a.Equate[key]
		if !ok {
			return tok
		}
		tok = v
	}
	return tok
}

// evalExpr evaluates a compile-time `$( ... )` expression against the
// labels resolved so far, for use in .org, .equ values and .data operands
// that need arithmetic over label addresses (e.g. "$(SCREEN+40)"). The
// .org operand may contain spaces; .equ values and .data operands are
// split on whitespace, so an expression there must be one token.
func (a *Assembler) evalExpr(expr string) (int64, error) {
	predeclared := starlark.StringDict{}
	for name, addr := range a.Label {
		predeclared[strings.ToLower(name)] = starlark.MakeInt(int(addr))
	}

	thread := &starlark.Thread{Name: "oper8-equ"}
	v, err := starlark.Eval(thread, "equ", expr, predeclared)
	if err != nil {
		return 0, ErrParseExpression(expr)
	}
	n, ok := v.(starlark.Int)
	if !ok {
		return 0, ErrParseExpression(expr)
	}
	val, ok := n.Int64()
	if !ok {
		return 0, ErrParseExpression(expr)
	}
	return val, nil
}

// resolveNumber parses tok as a plain numeric literal, or as a
// starlark-evaluated `$( ... )` compile-time expression.
func (a *Assembler) resolveNumber(tok string) (uint64, error) {
	if strings.HasPrefix(tok, "$(") && strings.HasSuffix(tok, ")") {
		v, err := a.evalExpr(tok[2 : len(tok)-1])
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}
	return parseNumber(tok)
}

func (a *Assembler) resolveByteOperand(tok string, pc uint16, branch bool) (byte, error) {
	ident, kind := splitLabelOperator(tok)

	if kind != operandPlain {
		addr, ok := a.Label[strings.ToUpper(ident)]
		if !ok {
			return 0, ErrLabelMissing(ident)
		}
		return resolveLabelOperand(addr, kind), nil
	}

	if branch {
		if addr, ok := a.Label[strings.ToUpper(tok)]; ok {
			offset := int32(addr) - int32(pc+2)
			if offset < -128 || offset > 127 {
				return 0, ErrOffsetRange
			}
			return byte(int8(offset)), nil
		}

		negative := strings.HasPrefix(tok, "-")
		magnitude := tok
		if negative {
			magnitude = tok[1:]
		}
		v, err := a.resolveNumber(magnitude)
		if err != nil {
			return 0, ErrUndefinedLabel
		}
		signed := int64(v)
		if negative {
			signed = -signed
		}
		if signed < -128 || signed > 127 {
			return 0, ErrOffsetRange
		}
		return byte(int8(signed)), nil
	}

	if addr, ok := a.Label[strings.ToUpper(tok)]; ok {
		return byte(addr), nil
	}
	if strings.HasPrefix(tok, "'") {
		b, err := parseCharLiteral(strings.Trim(tok, "'"))
		return b, err
	}
	v, err := a.resolveNumber(tok)
	if err != nil {
		return 0, ErrUndefinedLabel
	}
	if v > 0xFF {
		return 0, ErrBadOperand
	}
	return byte(v), nil
}

func (a *Assembler) assembleData(tokens []string) ([]byte, error) {
	var out []byte
	for _, tok := range tokens {
		if lit, isLit, err := parseDataLiteral(tok); isLit {
			if err != nil {
				return nil, err
			}
			out = append(out, lit...)
			continue
		}
		v, err := a.resolveNumber(a.expand(tok))
		if err != nil {
			return nil, err
		}
		switch {
		case v <= 0xFF:
			out = append(out, byte(v))
		case v <= 0xFFFF:
			out = append(out, byte(v>>8), byte(v))
		default:
			return nil, ErrBadOperand
		}
	}
	return out, nil
}
