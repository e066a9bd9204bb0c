// Package selector parses and validates test filters of the form
// path[::function[[param_key]]].
package selector

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// ArgsError reports an invalid filter or command line argument.
type ArgsError struct {
	Arg    string
	Reason string
	Err    error
}

func (e *ArgsError) Error() string {
	if e.Arg == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Reason)
}

func (e *ArgsError) Unwrap() error {
	return e.Err
}

// Filter selects test units.
type Filter struct {
	// Path is slash separated and relative to the collection root.
	Path string
	// Func is empty when every function of Path is selected.
	Func string
	// Params is empty when every parameter combination is selected.
	Params string
}

func (f Filter) String() string {
	s := f.Path
	if f.Func != "" {
		s += "::" + f.Func
	}
	if f.Params != "" {
		s += "[" + f.Params + "]"
	}
	return s
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Parse parses a single filter. The path is cleaned but not checked.
func Parse(raw string) (Filter, error) {
	if strings.TrimSpace(raw) == "" {
		return Filter{}, &ArgsError{Arg: raw, Reason: "empty filter"}
	}

	p, rest, hasFunc := strings.Cut(raw, "::")
	if p == "" {
		return Filter{}, &ArgsError{Arg: raw, Reason: "missing path"}
	}
	f := Filter{Path: filepath.ToSlash(filepath.Clean(p))}
	if !hasFunc {
		return f, nil
	}

	fn, params := rest, ""
	if i := strings.IndexByte(rest, '['); i >= 0 {
		if !strings.HasSuffix(rest, "]") {
			return Filter{}, &ArgsError{Arg: raw, Reason: "unterminated parameter key"}
		}
		fn, params = rest[:i], rest[i+1:len(rest)-1]
		if strings.ContainsAny(params, "[]") {
			return Filter{}, &ArgsError{Arg: raw, Reason: "nested brackets in parameter key"}
		}
	}
	if !identifier.MatchString(fn) {
		return Filter{}, &ArgsError{Arg: raw, Reason: fmt.Sprintf("%q is not a function name", fn)}
	}
	f.Func = fn
	f.Params = params
	return f, nil
}

// ParseAll parses every argument and makes the paths relative to root.
// No arguments select root itself.
func ParseAll(args []string, root string) ([]Filter, error) {
	if len(args) == 0 {
		args = []string{"."}
	}

	filters := make([]Filter, 0, len(args))
	for _, arg := range args {
		f, err := Parse(arg)
		if err != nil {
			return nil, err
		}
		rel, err := relative(f.Path, root)
		if err != nil {
			return nil, &ArgsError{Arg: arg, Reason: err.Error()}
		}
		f.Path = rel
		filters = append(filters, f)
	}
	return filters, nil
}

func relative(p, root string) (string, error) {
	native := filepath.FromSlash(p)
	if filepath.IsAbs(native) {
		rel, err := filepath.Rel(root, native)
		if err != nil {
			return "", err
		}
		native = rel
	}
	slash := path.Clean(filepath.ToSlash(native))
	if slash == ".." || strings.HasPrefix(slash, "../") {
		return "", errors.New("path is outside the working directory")
	}
	return slash, nil
}

// Validate checks that the filter refers to something that exists in fsys.
func (f Filter) Validate(fsys fs.FS) error {
	info, err := fs.Stat(fsys, f.Path)
	if err != nil {
		return &ArgsError{Arg: f.String(), Reason: "no such file or directory", Err: err}
	}
	if info.IsDir() && f.Func != "" {
		return &ArgsError{Arg: f.String(), Reason: "a function filter needs a file path"}
	}
	return nil
}
