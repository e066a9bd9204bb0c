package scripting

import (
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"snektest/pkg/assert"
)

// assertModule is the assertion vocabulary of Starlark tests. Failures are
// *assert.Failure values, so tests using it are reported as failed rather
// than errored.
var assertModule = &starlarkstruct.Module{
	Name: "assert",
	Members: starlark.StringDict{
		"eq":       starlark.NewBuiltin("assert.eq", assertEq),
		"ne":       starlark.NewBuiltin("assert.ne", assertNe),
		"true":     starlark.NewBuiltin("assert.true", assertTrue),
		"false":    starlark.NewBuiltin("assert.false", assertFalse),
		"contains": starlark.NewBuiltin("assert.contains", assertContains),
		"fail":     starlark.NewBuiltin("assert.fail", assertFail),
	},
}

func compared(op string, actual, expected starlark.Value, msg string) *assert.Failure {
	return &assert.Failure{Operator: op, Actual: actual, Expected: expected, Message: msg, Compared: true}
}

func assertEq(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		actual, expected starlark.Value
		msg              string
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "actual", &actual, "expected", &expected, "msg?", &msg); err != nil {
		return nil, err
	}
	eq, err := starlark.Equal(actual, expected)
	if err != nil {
		return nil, err
	}
	if !eq {
		return nil, compared("==", actual, expected, msg)
	}
	return starlark.None, nil
}

func assertNe(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		actual, expected starlark.Value
		msg              string
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "actual", &actual, "expected", &expected, "msg?", &msg); err != nil {
		return nil, err
	}
	eq, err := starlark.Equal(actual, expected)
	if err != nil {
		return nil, err
	}
	if eq {
		return nil, compared("!=", actual, expected, msg)
	}
	return starlark.None, nil
}

func assertTrue(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		cond starlark.Value
		msg  string
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "cond", &cond, "msg?", &msg); err != nil {
		return nil, err
	}
	if !cond.Truth() {
		return nil, compared("is", cond, starlark.True, msg)
	}
	return starlark.None, nil
}

func assertFalse(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		cond starlark.Value
		msg  string
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "cond", &cond, "msg?", &msg); err != nil {
		return nil, err
	}
	if cond.Truth() {
		return nil, compared("is", cond, starlark.False, msg)
	}
	return starlark.None, nil
}

func assertContains(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		container, item starlark.Value
		msg             string
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "container", &container, "item", &item, "msg?", &msg); err != nil {
		return nil, err
	}
	in, err := starlark.Binary(syntax.IN, item, container)
	if err != nil {
		return nil, err
	}
	if !in.Truth() {
		return nil, compared("in", item, container, msg)
	}
	return starlark.None, nil
}

func assertFail(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "msg?", &msg); err != nil {
		return nil, err
	}
	return nil, assert.Fail(msg)
}
