package collector

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"snektest/internal/suite"
)

// ModuleBuilder builds a Go-native module. It plays the part of the module's
// top-level code and runs once per collection.
type ModuleBuilder func() (*suite.Module, error)

// ModuleLoader serves Go-native modules bound to source paths. The bound
// files must exist in the collected file system so discovery finds them.
type ModuleLoader struct {
	mu       sync.RWMutex
	builders map[string]ModuleBuilder
}

// NewModuleLoader creates an empty loader.
func NewModuleLoader() *ModuleLoader {
	return &ModuleLoader{builders: make(map[string]ModuleBuilder)}
}

// Register binds build to the slash separated path p.
func (l *ModuleLoader) Register(p string, build ModuleBuilder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.builders[p] = build
}

func (l *ModuleLoader) Accepts(p string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.builders[p]
	return ok
}

func (l *ModuleLoader) Load(_ context.Context, _ fs.FS, p string) (*suite.Module, error) {
	l.mu.RLock()
	build, ok := l.builders[p]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no module registered for %s", p)
	}

	mod, err := build()
	if err != nil {
		return nil, err
	}
	mod.Path = p
	return mod, nil
}
