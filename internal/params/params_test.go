package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixSize(t *testing.T) {
	tests := []struct {
		name  string
		lists [][]Value
		want  int
	}{
		{"no lists", nil, 1},
		{"single list", [][]Value{{V(1), V(2), V(3)}}, 3},
		{"two by three", [][]Value{{V(1), V(2)}, {V("a"), V("b"), V("c")}}, 6},
		{"three lists", [][]Value{{V(1), V(2)}, {V(3), V(4)}, {V(5), V(6), V(7)}}, 12},
		{"empty list", [][]Value{{V(1)}, {}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Matrix(tt.lists...), tt.want)
		})
	}
}

func TestMatrixOrderAndKeys(t *testing.T) {
	combos := Matrix(
		[]Value{Named("one", 1), Named("two", 2)},
		[]Value{V("x"), V("y")},
	)

	keys := make([]string, len(combos))
	for i, c := range combos {
		keys[i] = c.Key()
	}
	assert.Equal(t, []string{"one,x", "one,y", "two,x", "two,y"}, keys)
	assert.Equal(t, []any{2, "y"}, combos[3].Values())
}

func TestEmptyCombinationKey(t *testing.T) {
	combos := Matrix()
	require.Len(t, combos, 1)
	assert.Equal(t, "", combos[0].Key())
	assert.Empty(t, combos[0].Values())
}

func TestMatrixRowsDoNotShareStorage(t *testing.T) {
	combos := Matrix([]Value{V(1)}, []Value{V(2), V(3)}, []Value{V(4), V(5)})
	require.Len(t, combos, 4)
	assert.Equal(t, "1,2,4", combos[0].Key())
	assert.Equal(t, "1,2,5", combos[1].Key())
	assert.Equal(t, "1,3,4", combos[2].Key())
	assert.Equal(t, "1,3,5", combos[3].Key())
}

func TestIndex(t *testing.T) {
	index, err := Index(Matrix([]Value{V(1), V(2)}))
	require.NoError(t, err)
	assert.Contains(t, index, "1")
	assert.Contains(t, index, "2")

	_, err = Index(Matrix([]Value{Named("same", 1), Named("same", 2)}))
	var dup *DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "same", dup.Key)
}

func TestSelectIsExact(t *testing.T) {
	combos := Matrix([]Value{V(1), V(10), V(100)})

	assert.Len(t, Select(combos, ""), 3)

	selected := Select(combos, "10")
	require.Len(t, selected, 1)
	assert.Equal(t, 10, selected[0][0].Value)

	assert.Empty(t, Select(combos, "1,"))
	assert.Empty(t, Select(combos, "0"))
}
