// Package assert is the assertion vocabulary for test bodies.
//
// Every helper returns nil when the assertion holds and a *Failure otherwise.
// The engine classifies a test whose error chain contains a *Failure as
// failed; any other error is reported as an error.
package assert

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Failure describes an assertion that did not hold.
type Failure struct {
	Operator string
	Actual   any
	Expected any
	Message  string
	// Compared is false for assertions without an expected value (True, Fail).
	Compared bool
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString("assertion failed")
	if f.Message != "" {
		b.WriteString(": ")
		b.WriteString(f.Message)
	}
	if f.Compared {
		fmt.Fprintf(&b, ": %s %s %s", repr(f.Actual), f.Operator, repr(f.Expected))
	}
	return b.String()
}

// Detail renders the failure for the FAILURES section of a report.
func (f *Failure) Detail() string {
	if !f.Compared {
		return f.Error()
	}
	var b strings.Builder
	b.WriteString(f.Error())
	if f.Operator == "==" {
		if d := diff(f.Expected, f.Actual); d != "" {
			b.WriteString("\n\nDiff (-expected +actual):\n")
			b.WriteString(d)
		}
	}
	return b.String()
}

// Equal asserts that actual and expected are deeply equal.
func Equal(actual, expected any, msgAndArgs ...any) error {
	if reflect.DeepEqual(actual, expected) {
		return nil
	}
	return newFailure("==", actual, expected, msgAndArgs)
}

// NotEqual asserts that actual and expected differ.
func NotEqual(actual, expected any, msgAndArgs ...any) error {
	if !reflect.DeepEqual(actual, expected) {
		return nil
	}
	return newFailure("!=", actual, expected, msgAndArgs)
}

// True asserts that cond holds.
func True(cond bool, msgAndArgs ...any) error {
	if cond {
		return nil
	}
	return &Failure{Operator: "is", Actual: cond, Expected: true, Message: message(msgAndArgs), Compared: true}
}

// False asserts that cond does not hold.
func False(cond bool, msgAndArgs ...any) error {
	if !cond {
		return nil
	}
	return &Failure{Operator: "is", Actual: cond, Expected: false, Message: message(msgAndArgs), Compared: true}
}

// Contains asserts that item is an element of container. Strings are
// searched for substrings, maps for keys, slices and arrays for elements.
func Contains(container, item any, msgAndArgs ...any) error {
	ok, err := contains(container, item)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return newFailure("in", item, container, msgAndArgs)
}

// Fail returns an unconditional failure.
func Fail(msgAndArgs ...any) error {
	return &Failure{Message: message(msgAndArgs)}
}

func contains(container, item any) (bool, error) {
	if s, ok := container.(string); ok {
		sub, ok := item.(string)
		if !ok {
			return false, fmt.Errorf("cannot search %T in a string", item)
		}
		return strings.Contains(s, sub), nil
	}

	v := reflect.ValueOf(container)
	switch v.Kind() {
	case reflect.Map:
		for _, k := range v.MapKeys() {
			if reflect.DeepEqual(k.Interface(), item) {
				return true, nil
			}
		}
		return false, nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if reflect.DeepEqual(v.Index(i).Interface(), item) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%T is not a container", container)
	}
}

func newFailure(op string, actual, expected any, msgAndArgs []any) *Failure {
	return &Failure{
		Operator: op,
		Actual:   actual,
		Expected: expected,
		Message:  message(msgAndArgs),
		Compared: true,
	}
}

func message(msgAndArgs []any) string {
	switch len(msgAndArgs) {
	case 0:
		return ""
	case 1:
		return fmt.Sprint(msgAndArgs[0])
	default:
		if format, ok := msgAndArgs[0].(string); ok {
			return fmt.Sprintf(format, msgAndArgs[1:]...)
		}
		return fmt.Sprint(msgAndArgs...)
	}
}

func repr(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%#v", v)
}

// diff returns an empty string when cmp cannot compare the values (for
// example structs with unexported fields).
func diff(expected, actual any) (out string) {
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()
	return cmp.Diff(expected, actual)
}
