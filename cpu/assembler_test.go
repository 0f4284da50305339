package cpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembler_Empty(t *testing.T) {
	assert := assert.New(t)

	a := NewAssembler()
	prog, err := a.Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(0, len(prog.Instructions))
	assert.Equal(0, len(prog.Segments))
}

func TestAssembler_HelloByte(t *testing.T) {
	assert := assert.New(t)

	a := NewAssembler()
	prog, err := a.Parse(strings.NewReader(
		".org $0200\n" +
			"LDI0 $48\n" +
			"STORZ $FA ; write to the I/O out port\n" +
			"HLT\n",
	))
	require.NoError(t, err)
	require.Equal(t, 1, len(prog.Segments))
	assert.Equal(uint16(0x0200), prog.Segments[0].Addr)
	assert.Equal([]byte{byte(OpLDI0), 0x48, byte(OpSTORZ), 0xFA, byte(OpHLT), 0x00}, prog.Segments[0].Data)
}

func TestAssembler_LabelsAndBranch(t *testing.T) {
	assert := assert.New(t)

	a := NewAssembler()
	prog, err := a.Parse(strings.NewReader(
		".org $0200\n" +
			"loop:\n" +
			"INC R0\n" +
			"JNZ loop\n" +
			"HLT\n",
	))
	require.NoError(t, err)

	assert.Equal(uint16(0x0200), a.Label["LOOP"])

	code, ok := prog.CodeAt(0x0202)
	require.True(t, ok)
	assert.Equal(OpJNZ, code.Op)
	// loop is at 0x0200, JNZ's next instruction is at 0x0204: offset = -4.
	assert.Equal(int8(-4), code.Offset())
}

func TestAssembler_HighLowByteOperators(t *testing.T) {
	assert := assert.New(t)

	a := NewAssembler()
	prog, err := a.Parse(strings.NewReader(
		".org $0300\n" +
			"target:\n" +
			"HLT\n" +
			"LDI0 >target\n" +
			"LDI1 <target\n" +
			"LDI2 HIGH(target)\n" +
			"LDI3 LOW(target)\n",
	))
	require.NoError(t, err)

	for _, addr := range []uint16{0x0302, 0x0304, 0x0306, 0x0308} {
		code, ok := prog.CodeAt(addr)
		require.True(t, ok)
		switch addr {
		case 0x0302, 0x0306:
			assert.Equal(byte(0x03), code.Imm())
		case 0x0304, 0x0308:
			assert.Equal(byte(0x00), code.Imm())
		}
	}
}

func TestAssembler_CharAndDataLiterals(t *testing.T) {
	assert := assert.New(t)

	a := NewAssembler()
	prog, err := a.Parse(strings.NewReader(
		".org $0400\n" +
			"LDI0 'A'\n" +
			".data 'hi' 0 10 $20\n",
	))
	require.NoError(t, err)

	code, ok := prog.CodeAt(0x0400)
	require.True(t, ok)
	assert.Equal(byte('A'), code.Imm())

	require.Equal(t, 2, len(prog.Segments))
	data := prog.Segments[1]
	assert.Equal(uint16(0x0402), data.Addr)
	assert.Equal([]byte{'h', 'i', 0, 10, 0x20}, data.Data)
}

func TestAssembler_Equ(t *testing.T) {
	assert := assert.New(t)

	a := NewAssembler()
	prog, err := a.Parse(strings.NewReader(
		".org $0200\n" +
			".equ PORT $FA\n" +
			"STORZ PORT\n",
	))
	require.NoError(t, err)

	code, ok := prog.CodeAt(0x0200)
	require.True(t, ok)
	assert.Equal(byte(0xFA), code.Imm())
}

func TestAssembler_EquExpression(t *testing.T) {
	assert := assert.New(t)

	a := NewAssembler()
	prog, err := a.Parse(strings.NewReader(
		".org $0200\n" +
			"here:\n" +
			"NOP\n" +
			".org $(here + 4)\n" +
			"HLT\n",
	))
	require.NoError(t, err)

	require.Equal(t, 2, len(prog.Segments))
	assert.Equal(uint16(0x0204), prog.Segments[1].Addr)
}

func TestAssembler_DuplicateLabelIsError(t *testing.T) {
	a := NewAssembler()
	_, err := a.Parse(strings.NewReader("here:\nhere:\n"))
	require.Error(t, err)

	var se ErrSyntax
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 2, se.LineNo)
	assert.True(t, errors.Is(se, ErrDuplicateLabel) || errors.Is(se.Err, ErrDuplicateLabel))
}

func TestAssembler_UndefinedLabelIsError(t *testing.T) {
	a := NewAssembler()
	_, err := a.Parse(strings.NewReader("JMP nowhere\n"))
	require.Error(t, err)

	var se ErrSyntax
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.LineNo)
}

func TestAssembler_OffsetOutOfRangeIsError(t *testing.T) {
	a := NewAssembler()
	var src strings.Builder
	src.WriteString("far:\n")
	for i := 0; i < 200; i++ {
		src.WriteString("NOP\n")
	}
	src.WriteString("JMP far\n")

	_, err := a.Parse(strings.NewReader(src.String()))
	require.Error(t, err)

	var se ErrSyntax
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, se, ErrOffsetRange)
}

func TestAssembler_BadRegisterIsError(t *testing.T) {
	a := NewAssembler()
	_, err := a.Parse(strings.NewReader("MOV R0,R16\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadRegister)
}

func TestAssembler_WrongOperandCountIsError(t *testing.T) {
	a := NewAssembler()
	_, err := a.Parse(strings.NewReader("MOV R0\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongOperandCount)
}

func TestAssembler_UnknownMnemonicIsError(t *testing.T) {
	a := NewAssembler()
	_, err := a.Parse(strings.NewReader("FROB R0,R1\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMnemonic)
}

func TestAssembler_BlankLinesAndCommentsIgnored(t *testing.T) {
	a := NewAssembler()
	prog, err := a.Parse(strings.NewReader(
		"\n" +
			"; a full-line comment\n" +
			"// another style\n" +
			"NOP ; trailing\n" +
			"NOP // trailing\n",
	))
	require.NoError(t, err)
	assert.Equal(t, 2, len(prog.Instructions))
}

// Round-trip law from the spec: disassemble(assemble(M, S)) == canonical(M, S)
// for every mnemonic/operand shape this assembler can produce.
func TestAssembler_DisassembleRoundTrip(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"NOP", "NOP"},
		{"LDI5 $2A", "LDI5 $2A"},
		{"MOV R1,R2", "MOV R1,R2"},
		{"SWAP R3,R4", "SWAP R3,R4"},
		{"ADD R0,R1", "ADD R0,R1"},
		{"AND R0,R1", "AND R0,R1"},
		{"NOT R0", "NOT R0"},
		{"SHL R0", "SHL R0"},
		{"LOADZ $FA", "LOADZ $FA"},
		{"STORZ $FB", "STORZ $FB"},
		{"PUSH R14,R15", "PUSH R14,R15"},
		{"POP R14,R15", "POP R14,R15"},
		{"PRINT R0", "PRINT R0"},
		{"INPUT R0", "INPUT R0"},
		{"HLT", "HLT"},
		{"RET", "RET"},
		{"JMPL R0,R1", "JMPL R0,R1"},
	}

	for _, tc := range cases {
		a := NewAssembler()
		prog, err := a.Parse(strings.NewReader(".org $0200\n" + tc.src + "\n"))
		require.NoError(t, err, tc.src)
		code, ok := prog.CodeAt(0x0200)
		require.True(t, ok, tc.src)
		assert.Equal(t, tc.want, code.String(), tc.src)
	}
}

func TestAssembler_MultipleOrgsProduceDisjointSegments(t *testing.T) {
	assert := assert.New(t)

	a := NewAssembler()
	prog, err := a.Parse(strings.NewReader(
		".org $0200\n" +
			"NOP\n" +
			".org $0300\n" +
			"HLT\n",
	))
	require.NoError(t, err)
	require.Equal(t, 2, len(prog.Segments))
	assert.Equal(uint16(0x0200), prog.Segments[0].Addr)
	assert.Equal(uint16(0x0300), prog.Segments[1].Addr)
}
