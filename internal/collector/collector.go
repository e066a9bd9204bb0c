// Package collector discovers test units and streams them to the engine.
package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"snektest/internal/params"
	"snektest/internal/selector"
	"snektest/internal/suite"
	"snektest/pkg/logging"
)

// DefaultPrefix is the file name prefix of test source files.
const DefaultPrefix = "test_"

// Loader turns a source file into a module. Loading runs the file's
// module-level code.
type Loader interface {
	// Accepts reports whether the loader handles the file at path.
	Accepts(path string) bool
	Load(ctx context.Context, fsys fs.FS, path string) (*suite.Module, error)
}

// CollectionError reports a source file that could not be collected.
type CollectionError struct {
	Path string
	Err  error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collecting %s: %v", e.Path, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// Options tune discovery.
type Options struct {
	// Prefix of eligible file names, DefaultPrefix when empty.
	Prefix string
	// Ignore holds doublestar patterns of paths to skip.
	Ignore []string
	// Mark keeps only tests carrying this marker when set.
	Mark string
}

// Collector discovers test units below a root file system. Every file is
// loaded at most once per collector.
type Collector struct {
	fsys    fs.FS
	opts    Options
	loaders []Loader

	mu      sync.Mutex
	modules map[string]*suite.Module
}

// New creates a collector over fsys. Loaders are tried in order.
func New(fsys fs.FS, opts Options, loaders ...Loader) *Collector {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	return &Collector{
		fsys:    fsys,
		opts:    opts,
		loaders: loaders,
		modules: make(map[string]*suite.Module),
	}
}

// Collect pushes every unit selected by filters onto queue and closes queue
// when done, whether or not collection succeeded. Sends give up when ctx
// ends.
func (c *Collector) Collect(ctx context.Context, filters []selector.Filter, queue chan<- suite.Item) error {
	defer close(queue)

	return c.walk(ctx, filters, func(item suite.Item) error {
		select {
		case queue <- item:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// List returns every unit selected by filters without scheduling them.
func (c *Collector) List(ctx context.Context, filters []selector.Filter) ([]suite.Item, error) {
	var items []suite.Item
	err := c.walk(ctx, filters, func(item suite.Item) error {
		items = append(items, item)
		return nil
	})
	return items, err
}

func (c *Collector) walk(ctx context.Context, filters []selector.Filter, emit func(suite.Item) error) error {
	for _, f := range filters {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.collectFilter(ctx, f, emit); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) collectFilter(ctx context.Context, f selector.Filter, emit func(suite.Item) error) error {
	info, err := fs.Stat(c.fsys, f.Path)
	if err != nil {
		return &CollectionError{Path: f.Path, Err: err}
	}

	if !info.IsDir() {
		if !c.eligible(f.Path) {
			return &CollectionError{
				Path: f.Path,
				Err:  fmt.Errorf("not a test file: name must start with %q and have a supported extension", c.opts.Prefix),
			}
		}
		return c.collectFile(ctx, f.Path, f, emit)
	}

	logging.Debug("Collector", "walking %s", f.Path)
	return fs.WalkDir(c.fsys, f.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return &CollectionError{Path: p, Err: err}
		}
		if c.ignored(p, d) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !c.eligible(p) {
			return nil
		}
		return c.collectFile(ctx, p, f, emit)
	})
}

func (c *Collector) collectFile(ctx context.Context, p string, f selector.Filter, emit func(suite.Item) error) error {
	mod, err := c.load(ctx, p)
	if err != nil {
		return err
	}

	matched := false
	for _, test := range mod.Tests {
		if f.Func != "" && test.Name != f.Func {
			continue
		}
		matched = true
		if c.opts.Mark != "" && !test.HasMarker(c.opts.Mark) {
			continue
		}

		combos := params.Matrix(test.Params...)
		if _, err := params.Index(combos); err != nil {
			return &CollectionError{Path: p, Err: fmt.Errorf("%s: %w", test.Name, err)}
		}
		for _, combo := range params.Select(combos, f.Params) {
			if err := emit(suite.Item{Module: mod, Test: test, Combination: combo}); err != nil {
				return err
			}
		}
	}

	if f.Func != "" && !matched {
		logging.Warn("Collector", "no test named %s in %s", f.Func, p)
	}
	return nil
}

func (c *Collector) load(ctx context.Context, p string) (*suite.Module, error) {
	c.mu.Lock()
	mod, ok := c.modules[p]
	c.mu.Unlock()
	if ok {
		return mod, nil
	}

	loader := c.loaderFor(p)
	if loader == nil {
		return nil, &CollectionError{Path: p, Err: errors.New("no loader accepts this file")}
	}

	mod, err := loader.Load(ctx, c.fsys, p)
	if err != nil {
		return nil, &CollectionError{Path: p, Err: err}
	}
	if mod.Path == "" {
		mod.Path = p
	}
	logging.Debug("Collector", "loaded %s with %d tests", p, len(mod.Tests))

	c.mu.Lock()
	c.modules[p] = mod
	c.mu.Unlock()
	return mod, nil
}

func (c *Collector) loaderFor(p string) Loader {
	for _, l := range c.loaders {
		if l.Accepts(p) {
			return l
		}
	}
	return nil
}

func (c *Collector) eligible(p string) bool {
	return strings.HasPrefix(path.Base(p), c.opts.Prefix) && c.loaderFor(p) != nil
}

// ignored reports paths matching an ignore pattern and hidden directories
// below the walk root.
func (c *Collector) ignored(p string, d fs.DirEntry) bool {
	if d.IsDir() && p != "." && strings.HasPrefix(d.Name(), ".") {
		return true
	}
	for _, pattern := range c.opts.Ignore {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}
