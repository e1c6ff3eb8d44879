package location

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/mod/modfile"
)

const defaultResolverCacheSize = 256

// ErrNoModule is returned when no go.mod exists above a file.
var ErrNoModule = errors.New("no go.mod found")

// Module describes the Go module containing a file.
type Module struct {
	Root string // directory holding go.mod
	Path string // module path declared in go.mod
}

// ModuleResolver maps source files to their module-qualified paths, e.g.
// /src/op-canary/tree/node_test.go becomes
// github.com/ethereum-optimism/infra/op-canary/tree/node_test.go.
type ModuleResolver struct {
	cache *lru.Cache[string, Module]
}

// NewModuleResolver creates a resolver memoizing up to size directory
// lookups. A non-positive size selects a default.
func NewModuleResolver(size int) (*ModuleResolver, error) {
	if size <= 0 {
		size = defaultResolverCacheSize
	}
	cache, err := lru.New[string, Module](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create module cache: %w", err)
	}
	return &ModuleResolver{cache: cache}, nil
}

// ModuleFor finds the module enclosing dir.
func (r *ModuleResolver) ModuleFor(dir string) (Module, error) {
	dir = filepath.Clean(dir)
	if mod, ok := r.cache.Get(dir); ok {
		return mod, nil
	}
	for current := dir; ; {
		goModPath := filepath.Join(current, "go.mod")
		content, err := os.ReadFile(goModPath)
		if err == nil {
			modulePath := modfile.ModulePath(content)
			if modulePath == "" {
				return Module{}, fmt.Errorf("could not find module name in %s", goModPath)
			}
			mod := Module{Root: current, Path: modulePath}
			r.cache.Add(dir, mod)
			return mod, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return Module{}, fmt.Errorf("failed to read %s: %w", goModPath, err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return Module{}, fmt.Errorf("%w above %s", ErrNoModule, dir)
		}
		current = parent
	}
}

// Qualify returns the module-qualified path of file.
func (r *ModuleResolver) Qualify(file string) (string, error) {
	if file == "" {
		return "", errors.New("empty file path")
	}
	mod, err := r.ModuleFor(filepath.Dir(file))
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(mod.Root, file)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s: %w", file, err)
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("file %s is outside module root %s", file, mod.Root)
	}
	return path.Join(mod.Path, rel), nil
}
