package cpu

import "fmt"

//go:generate go tool stringer -linecomment -type=Op

// Op is a single OPER-8 opcode byte.
type Op byte

const (
	OpNOP Op = 0x00 // NOP

	OpLDI0  Op = 0x10 // LDI0
	OpLDI1  Op = 0x11 // LDI1
	OpLDI2  Op = 0x12 // LDI2
	OpLDI3  Op = 0x13 // LDI3
	OpLDI4  Op = 0x14 // LDI4
	OpLDI5  Op = 0x15 // LDI5
	OpLDI6  Op = 0x16 // LDI6
	OpLDI7  Op = 0x17 // LDI7
	OpLDI8  Op = 0x18 // LDI8
	OpLDI9  Op = 0x19 // LDI9
	OpLDI10 Op = 0x1A // LDI10
	OpLDI11 Op = 0x1B // LDI11
	OpLDI12 Op = 0x1C // LDI12
	OpLDI13 Op = 0x1D // LDI13
	OpLDI14 Op = 0x1E // LDI14
	OpLDI15 Op = 0x1F // LDI15

	OpMOV   Op = 0x20 // MOV
	OpSWAP  Op = 0x21 // SWAP
	OpLOAD  Op = 0x22 // LOAD
	OpSTOR  Op = 0x23 // STOR
	OpLOADZ Op = 0x24 // LOADZ
	OpSTORZ Op = 0x25 // STORZ

	OpADD Op = 0x30 // ADD
	OpADC Op = 0x31 // ADC
	OpSUB Op = 0x32 // SUB
	OpSBC Op = 0x33 // SBC
	OpINC Op = 0x34 // INC
	OpDEC Op = 0x35 // DEC
	OpCMP Op = 0x36 // CMP
	OpMUL Op = 0x37 // MUL
	OpDIV Op = 0x38 // DIV

	OpAND  Op = 0x40 // AND
	OpOR   Op = 0x41 // OR
	OpXOR  Op = 0x42 // XOR
	OpNOT  Op = 0x43 // NOT
	OpSHL  Op = 0x44 // SHL
	OpSHR  Op = 0x45 // SHR
	OpTEST Op = 0x46 // TEST

	OpJMP   Op = 0x50 // JMP
	OpJMPL  Op = 0x51 // JMPL
	OpJZ    Op = 0x52 // JZ
	OpJNZ   Op = 0x53 // JNZ
	OpJC    Op = 0x54 // JC
	OpJNC   Op = 0x55 // JNC
	OpJN    Op = 0x56 // JN
	OpCALL  Op = 0x57 // CALL
	OpCALLL Op = 0x58 // CALLL
	OpRET   Op = 0x59 // RET

	OpPUSH Op = 0x60 // PUSH
	OpPOP  Op = 0x61 // POP

	OpPRINT Op = 0x70 // PRINT
	OpINPUT Op = 0x71 // INPUT

	OpHLT Op = 0xFF // HLT
)

// String renders the mnemonic for op, or "???" if op is not assigned.
// Hand-authored in the shape `go tool stringer -linecomment` would emit;
// see mnemonicTable below for the backing data.
func (op Op) String() string {
	if name, ok := mnemonicTable[op]; ok {
		return name
	}
	return "???"
}

// IsLDI reports whether op is one of the sixteen LDI0..LDI15 opcodes, and
// if so which register it loads.
func (op Op) IsLDI() (register byte, ok bool) {
	if op >= OpLDI0 && op <= OpLDI15 {
		return byte(op - OpLDI0), true
	}
	return 0, false
}

var mnemonicTable = buildMnemonicTable()

func buildMnemonicTable() map[Op]string {
	t := map[Op]string{
		OpNOP: "NOP",
		OpMOV: "MOV", OpSWAP: "SWAP", OpLOAD: "LOAD", OpSTOR: "STOR",
		OpLOADZ: "LOADZ", OpSTORZ: "STORZ",
		OpADD: "ADD", OpADC: "ADC", OpSUB: "SUB", OpSBC: "SBC",
		OpINC: "INC", OpDEC: "DEC", OpCMP: "CMP", OpMUL: "MUL", OpDIV: "DIV",
		OpAND: "AND", OpOR: "OR", OpXOR: "XOR", OpNOT: "NOT",
		OpSHL: "SHL", OpSHR: "SHR", OpTEST: "TEST",
		OpJMP: "JMP", OpJMPL: "JMPL", OpJZ: "JZ", OpJNZ: "JNZ",
		OpJC: "JC", OpJNC: "JNC", OpJN: "JN",
		OpCALL: "CALL", OpCALLL: "CALLL", OpRET: "RET",
		OpPUSH: "PUSH", OpPOP: "POP",
		OpPRINT: "PRINT", OpINPUT: "INPUT",
		OpHLT: "HLT",
	}
	for n := byte(0); n < 16; n++ {
		t[OpLDI0+Op(n)] = fmt.Sprintf("LDI%d", n)
	}
	return t
}

// Code is one decoded (or ready-to-encode) instruction: an opcode byte and
// its operand byte.
type Code struct {
	Op  Op
	Arg byte
}

// DecodeCode builds a Code from its two wire bytes.
func DecodeCode(op, arg byte) Code {
	return Code{Op: Op(op), Arg: arg}
}

// Bytes returns the two-byte wire encoding of c.
func (c Code) Bytes() [2]byte {
	return [2]byte{byte(c.Op), c.Arg}
}

// Rx returns the high nibble of the operand byte, the first register
// index for two-register forms.
func (c Code) Rx() byte { return (c.Arg >> 4) & 0x0F }

// Ry returns the low nibble of the operand byte, the second register
// index for two-register forms.
func (c Code) Ry() byte { return c.Arg & 0x0F }

// Imm returns the operand byte interpreted as an unsigned 8-bit immediate.
func (c Code) Imm() byte { return c.Arg }

// Offset returns the operand byte interpreted as a signed 8-bit relative
// branch offset.
func (c Code) Offset() int8 { return int8(c.Arg) }

// String disassembles c into its canonical textual form: upper-case
// mnemonic, registers as "Rn", immediates as "$HH". Unknown opcodes
// render as "??? [$oo $pp]". The function is total.
func (c Code) String() string {
	if register, ok := c.Op.IsLDI(); ok {
		return fmt.Sprintf("LDI%d $%02X", register, c.Imm())
	}

	switch c.Op {
	case OpNOP, OpRET, OpHLT:
		return c.Op.String()

	case OpMOV, OpSWAP, OpADD, OpADC, OpSUB, OpSBC, OpCMP, OpMUL, OpDIV,
		OpAND, OpOR, OpXOR, OpTEST:
		return fmt.Sprintf("%s R%d,R%d", c.Op, c.Rx(), c.Ry())

	case OpLOAD, OpSTOR:
		return fmt.Sprintf("%s R%d,[R%d:R%d]", c.Op, c.Rx(), c.Ry(), (c.Ry()+1)&0x0F)

	case OpLOADZ:
		return fmt.Sprintf("LOADZ $%02X", c.Imm())
	case OpSTORZ:
		return fmt.Sprintf("STORZ $%02X", c.Imm())

	case OpINC, OpDEC, OpNOT, OpSHL, OpSHR, OpPRINT, OpINPUT:
		return fmt.Sprintf("%s R%d", c.Op, c.Rx())

	case OpJMP, OpJZ, OpJNZ, OpJC, OpJNC, OpJN, OpCALL:
		return fmt.Sprintf("%s %+d", c.Op, c.Offset())

	case OpJMPL, OpCALLL:
		return fmt.Sprintf("%s R%d,R%d", c.Op, c.Rx(), c.Ry())

	case OpPUSH, OpPOP:
		return fmt.Sprintf("%s R%d,R%d", c.Op, c.Rx(), c.Ry())

	default:
		return fmt.Sprintf("??? [$%02X $%02X]", byte(c.Op), c.Arg)
	}
}
