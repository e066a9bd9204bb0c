package suite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"snektest/internal/params"
)

func TestItemName(t *testing.T) {
	mod := &Module{Path: "tests/test_math.star"}
	test := NewTest("test_add", Sync, nil)

	plain := Item{Module: mod, Test: test}
	assert.Equal(t, "tests/test_math.star::test_add", plain.Name())

	combo := params.Matrix([]params.Value{params.V(1)}, []params.Value{params.Named("two", 2)})[0]
	param := Item{Module: mod, Test: test, Combination: combo}
	assert.Equal(t, "tests/test_math.star::test_add[1,two]", param.Name())
	assert.Equal(t, "tests/test_math.star", param.Path())
}

func TestNewTestOptions(t *testing.T) {
	test := NewTest("test_x", Async, nil,
		WithMarkers("slow"),
		WithParams([]params.Value{params.V(1), params.V(2)}),
		WithMarkers("db"),
	)

	assert.Equal(t, Async, test.Kind)
	assert.Equal(t, []string{"slow", "db"}, test.Markers)
	assert.Len(t, test.Params, 1)
	assert.True(t, test.HasMarker("db"))
	assert.False(t, test.HasMarker("fast"))
}

func TestModuleLookup(t *testing.T) {
	mod := &Module{Tests: []*Test{NewTest("test_a", Sync, nil), NewTest("test_b", Sync, nil)}}

	got, ok := mod.Test("test_b")
	assert.True(t, ok)
	assert.Equal(t, "test_b", got.Name)

	_, ok = mod.Test("test_c")
	assert.False(t, ok)
}

func TestFixtureConstructors(t *testing.T) {
	fn := NewFixture("tmp", Sync, nil)
	assert.Equal(t, ScopeFunction, fn.Scope)

	session := NewSessionFixture("server", Async, nil)
	assert.Equal(t, ScopeSession, session.Scope)
	assert.Equal(t, "session", session.Scope.String())
	assert.Equal(t, "async", session.Kind.String())
}
