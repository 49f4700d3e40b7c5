package nuspi

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a bitwise union of failure flags. The layout is the loader result
// code returned to the host: a zero Code means success.
type Code uint32

// Bus primitive causes.
const (
	ErrBusyTimeout Code = 1 << 0 // controller stayed busy / TX watermark not reached
	ErrTxTimeout   Code = 1 << 1 // TX FIFO stayed full
	ErrRxTimeout   Code = 1 << 2 // RX FIFO stayed empty
)

// Flash protocol phases. Bits 3 and 4 are reserved.
const (
	ErrWIP   Code = 1 << 5
	ErrInit  Code = 1 << 6
	ErrErase Code = 1 << 7
	ErrWrite Code = 1 << 8
	ErrRead  Code = 1 << 9
)

// ErrGeneric marks dispatcher level failures such as an unknown opcode.
const ErrGeneric Code = 1 << 31

var codeNames = []struct {
	c    Code
	name string
}{
	{ErrBusyTimeout, "busy timeout"},
	{ErrTxTimeout, "tx timeout"},
	{ErrRxTimeout, "rx timeout"},
	{ErrWIP, "wip"},
	{ErrInit, "init"},
	{ErrErase, "erase"},
	{ErrWrite, "write"},
	{ErrRead, "read"},
	{ErrGeneric, "error"},
}

func (c Code) Error() string {
	var s []string
	rest := c
	for _, n := range codeNames {
		if c&n.c != 0 {
			s = append(s, n.name)
			rest &^= n.c
		}
	}
	if rest != 0 {
		s = append(s, fmt.Sprintf("%#x", uint32(rest)))
	}
	return fmt.Sprintf("nuspi: %s (%#x)", strings.Join(s, "|"), uint32(c))
}

// Is reports whether every flag of target is set in c, so that
// errors.Is(err, nuspi.ErrWIP) matches any code carrying the WIP flag.
func (c Code) Is(target error) bool {
	t, ok := target.(Code)
	return ok && t != 0 && c&t == t
}

// With unions c with the flags carried by err. Errors that are not a Code
// contribute ErrGeneric.
func (c Code) With(err error) Code {
	if err == nil {
		return c
	}
	var e Code
	if errors.As(err, &e) {
		return c | e
	}
	return c | ErrGeneric
}

// CodeOf returns the Code carried by err, ErrGeneric for foreign errors and
// zero for nil.
func CodeOf(err error) Code {
	return Code(0).With(err)
}
