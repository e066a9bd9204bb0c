package results

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Frame is one entry of a traceback, outermost first.
type Frame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

func (f Frame) String() string {
	return fmt.Sprintf("%s:%d in %s", f.File, f.Line, f.Function)
}

// Traceback is a call stack ordered from the outermost call to the frame
// that raised.
type Traceback []Frame

// Narrow drops the frames after the last one located in file, so that the
// innermost frame shown is user code of that file. A traceback without any
// frame in file is returned unchanged.
func (t Traceback) Narrow(file string) Traceback {
	last := -1
	for i, f := range t {
		if sameFile(f.File, file) {
			last = i
		}
	}
	if last < 0 {
		return t
	}
	return t[:last+1]
}

func (t Traceback) String() string {
	var b strings.Builder
	for _, f := range t {
		b.WriteString("  ")
		b.WriteString(f.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func sameFile(a, b string) bool {
	return filepath.Clean(filepath.ToSlash(a)) == filepath.Clean(filepath.ToSlash(b))
}

// Traced is implemented by errors that carry the call stack they were
// raised from.
type Traced interface {
	Traceback() Traceback
}

// TraceOf returns the traceback of the first error in err's chain that
// carries one.
func TraceOf(err error) Traceback {
	var traced Traced
	if errors.As(err, &traced) {
		return traced.Traceback()
	}
	return nil
}

// PanicError is a recovered panic from a test body or fixture.
type PanicError struct {
	Value any
	Trace Traceback
}

// NewPanicError captures the current goroutine stack, skipping skip frames
// above the caller.
func NewPanicError(value any, skip int) *PanicError {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var trace Traceback
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			trace = append(trace, Frame{Function: frame.Function, File: frame.File, Line: frame.Line})
		}
		if !more {
			break
		}
	}
	// runtime.Callers lists innermost first.
	for i, j := 0, len(trace)-1; i < j; i, j = i+1, j-1 {
		trace[i], trace[j] = trace[j], trace[i]
	}
	return &PanicError{Value: value, Trace: trace}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func (e *PanicError) Traceback() Traceback {
	return e.Trace
}
