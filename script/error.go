package script

import (
	"fmt"
	"strings"
)

// Error is a compile or runtime failure in a script. Pos is a byte offset
// into Src.
type Error struct {
	Src string
	Pos int
	Msg string
	Err error
}

func newError(pos int, format string, args ...any) *Error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Src == "" {
		return "script: " + e.Msg
	}
	line, col := e.Position()
	return fmt.Sprintf("script: %d:%d: %s", line, col, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Position returns the 1-based line and column of Pos.
func (e *Error) Position() (line, col int) {
	pos := min(max(e.Pos, 0), len(e.Src))
	before := e.Src[:pos]
	line = strings.Count(before, "\n") + 1
	col = pos - strings.LastIndexByte(before, '\n')
	return line, col
}

// withSource attaches src to err when err is an *Error without one.
func withSource(err error, src string) error {
	if se, ok := err.(*Error); ok && se.Src == "" {
		se.Src = src
	}
	return err
}
