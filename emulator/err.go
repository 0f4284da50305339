package emulator

import "github.com/oper8/oper8/translate"

var f = translate.From

// ErrLoad wraps a failure to assemble or load a program, naming the
// source the host was loading when it failed.
type ErrLoad struct {
	Path string
	Err  error
}

func (err *ErrLoad) Error() string {
	return f("%s: %v", err.Path, err.Err)
}

func (err *ErrLoad) Unwrap() error {
	return err.Err
}
