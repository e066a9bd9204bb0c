package scripting

import (
	"errors"

	"go.starlark.net/starlark"

	"snektest/internal/results"
)

// scriptError is a Starlark evaluation error together with the Starlark
// call stack it was raised from.
type scriptError struct {
	err   error
	trace results.Traceback
}

func (e *scriptError) Error() string {
	return e.err.Error()
}

func (e *scriptError) Unwrap() error {
	return e.err
}

func (e *scriptError) Traceback() results.Traceback {
	return e.trace
}

// wrapError attaches the Starlark traceback of the outermost evaluation
// error to err. Errors outside Starlark pass through.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*scriptError); ok {
		return err
	}
	var evalErr *starlark.EvalError
	if !errors.As(err, &evalErr) {
		return err
	}

	trace := make(results.Traceback, 0, len(evalErr.CallStack))
	for _, frame := range evalErr.CallStack {
		trace = append(trace, results.Frame{
			Function: frame.Name,
			File:     frame.Pos.Filename(),
			Line:     int(frame.Pos.Line),
		})
	}
	return &scriptError{err: err, trace: trace}
}
