package assert

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	assert.NoError(t, Equal(3, 3))
	assert.NoError(t, Equal([]string{"a"}, []string{"a"}))

	err := Equal(1, 2)
	require.Error(t, err)

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "==", failure.Operator)
	assert.Equal(t, 1, failure.Actual)
	assert.Equal(t, 2, failure.Expected)
	assert.Equal(t, "assertion failed: 1 == 2", err.Error())
}

func TestNotEqual(t *testing.T) {
	assert.NoError(t, NotEqual("a", "b"))
	assert.Error(t, NotEqual("a", "a"))
}

func TestTrueFalse(t *testing.T) {
	assert.NoError(t, True(true))
	assert.NoError(t, False(false))

	err := True(false, "expected %d items", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 3 items")

	assert.Error(t, False(true))
}

func TestContains(t *testing.T) {
	tests := []struct {
		name      string
		container any
		item      any
		wantFail  bool
	}{
		{"substring", "hello world", "world", false},
		{"missing substring", "hello", "bye", true},
		{"slice element", []int{1, 2, 3}, 2, false},
		{"missing slice element", []int{1, 2, 3}, 4, true},
		{"map key", map[string]int{"a": 1}, "a", false},
		{"missing map key", map[string]int{"a": 1}, "b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Contains(tt.container, tt.item)
			if tt.wantFail {
				var failure *Failure
				require.True(t, errors.As(err, &failure))
				assert.Equal(t, "in", failure.Operator)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestContainsRejectsNonContainer(t *testing.T) {
	err := Contains(42, 4)
	require.Error(t, err)

	var failure *Failure
	assert.False(t, errors.As(err, &failure), "a misuse is an error, not an assertion failure")
}

func TestFailureSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("checking total: %w", Fail("boom"))

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "boom", failure.Message)
}

func TestDetailIncludesDiff(t *testing.T) {
	err := Equal(map[string]int{"a": 1}, map[string]int{"a": 2})

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	detail := failure.Detail()
	assert.Contains(t, detail, "Diff (-expected +actual)")
	assert.Contains(t, detail, "-")
}

func TestDetailWithUnexportedFields(t *testing.T) {
	type opaque struct{ n int }

	err := Equal(opaque{1}, opaque{2})

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.NotContains(t, failure.Detail(), "Diff")
}
