package regs

import "io"

// Access is one recorded register access.
type Access struct {
	Write bool
	Off   Offset
	Value uint32
}

// Trace wraps a Window and records every access.
type Trace struct {
	W Window

	// Accesses holds the recorded accesses in order, if Record is set.
	Accesses []Access
	Record   bool

	LogFunc func(format string, params ...any)
}

func (t *Trace) log(format string, params ...any) {
	if t.LogFunc != nil {
		t.LogFunc(format, params...)
	}
}

func (t *Trace) Read32(off Offset) uint32 {
	v := t.W.Read32(off)
	if t.Record {
		t.Accesses = append(t.Accesses, Access{Off: off, Value: v})
	}
	t.log("rd %-9s %08x", off, v)
	return v
}

func (t *Trace) Write32(off Offset, v uint32) {
	t.W.Write32(off, v)
	if t.Record {
		t.Accesses = append(t.Accesses, Access{Write: true, Off: off, Value: v})
	}
	t.log("wr %-9s %08x", off, v)
}

// Writes returns the recorded writes.
func (t *Trace) Writes() []Access {
	var w []Access
	for _, a := range t.Accesses {
		if a.Write {
			w = append(w, a)
		}
	}
	return w
}

// Reset clears the recorded accesses.
func (t *Trace) Reset() {
	t.Accesses = t.Accesses[:0]
}

// Close closes the wrapped window if it can be closed.
func (t *Trace) Close() error {
	if c, ok := t.W.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
