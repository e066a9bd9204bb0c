// Package params computes the parameter matrix of a test: the cartesian
// product of its declared value lists, keyed by the names of the chosen
// values.
package params

import (
	"fmt"
	"strings"
)

// Value is one candidate value of a parameter list.
type Value struct {
	Name  string
	Value any
}

// V wraps a value using its string form as its name.
func V(v any) Value {
	return Value{Name: fmt.Sprint(v), Value: v}
}

// Named wraps a value with an explicit display name.
func Named(name string, v any) Value {
	return Value{Name: name, Value: v}
}

// Combination is one row of the matrix: one value from every declared list,
// in declaration order.
type Combination []Value

// Key is the comma-joined names of the values, or "" for the empty combination.
func (c Combination) Key() string {
	names := make([]string, len(c))
	for i, v := range c {
		names[i] = v.Name
	}
	return strings.Join(names, ",")
}

// Values returns the raw values in declaration order.
func (c Combination) Values() []any {
	out := make([]any, len(c))
	for i, v := range c {
		out[i] = v.Value
	}
	return out
}

// Matrix returns the cartesian product of lists with the first list varying
// slowest. No lists yield a single empty combination; any empty list yields
// none.
func Matrix(lists ...[]Value) []Combination {
	combos := []Combination{{}}
	for _, list := range lists {
		next := make([]Combination, 0, len(combos)*len(list))
		for _, prefix := range combos {
			for _, v := range list {
				row := make(Combination, len(prefix), len(prefix)+1)
				copy(row, prefix)
				next = append(next, append(row, v))
			}
		}
		combos = next
	}
	return combos
}

// DuplicateKeyError reports two combinations of one test sharing a key.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate parameter key %q", e.Key)
}

// Index maps every combination by its key.
func Index(combos []Combination) (map[string]Combination, error) {
	index := make(map[string]Combination, len(combos))
	for _, c := range combos {
		key := c.Key()
		if _, exists := index[key]; exists {
			return nil, &DuplicateKeyError{Key: key}
		}
		index[key] = c
	}
	return index, nil
}

// Select returns the combinations matching key exactly, or all of them when
// key is empty. The result keeps matrix order.
func Select(combos []Combination, key string) []Combination {
	if key == "" {
		return combos
	}
	var out []Combination
	for _, c := range combos {
		if c.Key() == key {
			out = append(out, c)
		}
	}
	return out
}
