// Package cpu implements the OPER-8 microprocessor and its two-pass
// assembler.
//
// The machine has sixteen byte-wide registers (R0-R15), a flat 64 KiB
// memory, a 16-bit program counter, and three status flags (Z, C, N).
// Every instruction is two bytes: an opcode byte and an operand byte
// carrying up to two 4-bit register indices or an 8-bit immediate.
// Faults redirect the program counter through a zero-page vector rather
// than surfacing as Go errors.
//
// The assembler translates OPER-8 source text - labels, directives,
// decimal/hex/binary/character literals, and the high/low byte operators
// - into the byte stream the machine decodes.
package cpu
