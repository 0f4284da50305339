package cpu

import (
	"errors"

	"github.com/oper8/oper8/translate"
)

var f = translate.From

var (
	// Assembler errors.
	ErrUnknownMnemonic   = errors.New(f("unknown mnemonic"))
	ErrBadRegister       = errors.New(f("bad register name"))
	ErrWrongOperandCount = errors.New(f("wrong operand count"))
	ErrBadOperand        = errors.New(f("bad operand"))
	ErrDuplicateLabel    = errors.New(f("label already defined"))
	ErrUndefinedLabel    = errors.New(f("undefined label"))
	ErrOffsetRange       = errors.New(f("branch offset out of range"))
	ErrBadDirective      = errors.New(f("malformed directive"))
	ErrEmptyCharLiteral  = errors.New(f("empty character literal"))
	ErrBadEscape         = errors.New(f("malformed escape sequence"))
	ErrMultiCharLiteral  = errors.New(f("multi-character literal outside .data"))
	ErrParseNumber       = errors.New(f("not a number"))

	// CLI / harness errors.
	ErrBadTestLine = errors.New(f("malformed single-step test"))
)

// ErrSyntax wraps an assembly-time error with the source line that caused
// it.
type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

// ErrLabelMissing names an identifier referenced in an operand position
// that never appears as a label.
type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

// ErrParseExpression names a `$( ... )` compile-time expression that
// failed to evaluate to an integer.
type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

// ErrOpcode names a Code the engine cannot decode.
type ErrOpcode Code

func (eo ErrOpcode) Error() string {
	return f("bad opcode 0x%02x %v", byte(eo.Op), Code(eo).String())
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrOpcode)
	return
}
