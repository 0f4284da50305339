package cpu

import (
	"strings"
	"testing"
)

// FuzzStep drives the engine with arbitrary opcode/operand/register-file
// bytes and checks invariants after every single step: a step that
// leaves PC odd (a branch by an odd offset) is followed by a
// misaligned-PC fault on the next step, saving that odd PC, and a halted
// machine never un-halts on a further Step.
func FuzzStep(f *testing.F) {
	f.Add(byte(OpNOP), byte(0x00), uint16(0))
	f.Add(byte(OpDIV), byte(0x01), uint16(0))
	f.Add(byte(OpHLT), byte(0x00), uint16(0))
	f.Add(byte(0xAA), byte(0x55), uint16(1)) // undefined opcode
	f.Add(byte(OpCALL), byte(0x7F), uint16(0xE0F0))

	f.Fuzz(func(t *testing.T, op, arg byte, seed uint16) {
		c := NewCpu()
		for i := range c.Register {
			c.Register[i] = byte(seed>>uint(i%8)) ^ byte(i)
		}
		c.Register[14], c.Register[15] = 0x08, 0x00

		c.Memory.Set(c.PC, op)
		c.Memory.Set(c.PC+1, arg)

		wasHalted := c.Halted
		if err := c.Step(); err != nil {
			t.Fatalf("Step returned an error: %v", err)
		}

		if c.PC%2 != 0 {
			odd := c.PC
			if err := c.Step(); err != nil {
				t.Fatalf("Step returned an error: %v", err)
			}
			if c.Register[0] != FaultMisalignedPC || c.Memory.GetWord(AddrFaultSavedPC) != odd {
				t.Fatalf("PC went odd (%#04x) and the next step raised no misaligned-PC fault", odd)
			}
		}

		if wasHalted && !c.Halted {
			t.Fatalf("a halted machine un-halted itself")
		}
	})
}

// FuzzAssemble feeds arbitrary text at the assembler and requires it to
// either return a Program or report an ErrSyntax, and never panic. The
// contents of a returned Program are not checked.
func FuzzAssemble(f *testing.F) {
	f.Add(".org $0200\nLDI0 $41\nHLT\n")
	f.Add("bad: bad:\n")
	f.Add("JMP nowhere\n")
	f.Add(".data 'unterminated\n")
	f.Add("MOV R0,R99\n")

	f.Fuzz(func(t *testing.T, source string) {
		if strings.Count(source, "NOP\n") > 4096 {
			t.Skip("degenerate huge input")
		}

		a := NewAssembler()
		_, err := a.Parse(strings.NewReader(source))
		if err == nil {
			return
		}
		var se ErrSyntax
		if !asErrSyntax(err, &se) {
			t.Fatalf("Parse error was not an ErrSyntax: %v", err)
		}
	})
}

func asErrSyntax(err error, target *ErrSyntax) bool {
	se, ok := err.(ErrSyntax)
	if ok {
		*target = se
	}
	return ok
}
