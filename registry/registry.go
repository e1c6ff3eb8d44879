package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-canary/location"
	"github.com/ethereum-optimism/infra/op-canary/runner"
	"github.com/ethereum-optimism/infra/op-canary/tree"
	"github.com/ethereum-optimism/infra/op-canary/types"
)

// Registry turns a suite manifest into a test tree and keeps the most
// recently loaded tree.
type Registry struct {
	config Config
	root   *tree.Node
	mu     sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log            log.Logger
	SuiteFile      string
	Runner         runner.CommandRunner
	DefaultTimeout time.Duration
}

// NewRegistry creates a new registry instance and loads the suite file.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.SuiteFile == "" {
		return nil, fmt.Errorf("suite file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.NewExecRunner(cfg.Log, cfg.DefaultTimeout)
	}
	abs, err := filepath.Abs(cfg.SuiteFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve suite file: %w", err)
	}
	cfg.SuiteFile = abs

	r := &Registry{config: cfg}
	if err := r.Load(); err != nil {
		return nil, fmt.Errorf("failed to load suite: %w", err)
	}
	return r, nil
}

// Load reads the suite file and replaces the current tree. The current
// tree is kept if loading fails.
func (r *Registry) Load() error {
	entry, err := LoadManifest(r.config.SuiteFile)
	if err != nil {
		return err
	}
	root, err := r.build(entry)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.root = root
	r.mu.Unlock()

	r.config.Log.Debug("Registry loaded", "suite", r.config.SuiteFile, "root", root.Name(), "tests", countNodes(root))
	return nil
}

// Reload is Load under a name that reads better at call sites reacting to
// file changes.
func (r *Registry) Reload() error {
	r.config.Log.Info("Reloading suite", "suite", r.config.SuiteFile)
	return r.Load()
}

// Root returns the most recently loaded tree.
func (r *Registry) Root() *tree.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.root
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

func (r *Registry) build(entry *types.TestEntry) (*tree.Node, error) {
	opts := []tree.Option{
		tree.WithLogger(r.config.Log),
		tree.WithLocationProvider(location.Static{File: r.config.SuiteFile}),
	}

	var root *tree.Node
	switch entry.Resolve() {
	case types.KindGroup:
		root = tree.NewGroup(entry.Name, nil, opts...)
	case types.KindSeries:
		root = tree.NewSeries(entry.Name, nil, opts...)
	default:
		root = tree.New(entry.Name, r.body(entry), opts...)
	}
	if err := r.configure(root, entry); err != nil {
		return nil, err
	}
	return root, nil
}

// configure applies an entry's settings to n and adds its children.
func (r *Registry) configure(n *tree.Node, entry *types.TestEntry) error {
	n.SetLocation(location.Location{File: r.config.SuiteFile, Line: entry.Line, Column: entry.Column})
	n.Tags(entry.Tags...)
	if entry.Todo {
		n.Todo()
	}
	if entry.Ignore {
		n.Ignore()
	}
	if err := r.addCallbacks(n, entry); err != nil {
		return r.wrap(entry, err)
	}

	for i := range entry.Tests {
		child := &entry.Tests[i]
		var (
			node *tree.Node
			err  error
		)
		switch child.Resolve() {
		case types.KindGroup:
			node, err = n.Group(child.Name, nil)
		case types.KindSeries:
			node, err = n.Series(child.Name, nil)
		default:
			node, err = n.Test(child.Name, r.body(child))
		}
		if err != nil {
			return r.wrap(child, err)
		}
		if err := r.configure(node, child); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) addCallbacks(n *tree.Node, entry *types.TestEntry) error {
	hooks := []struct {
		args     []string
		name     string
		register func(string, tree.CallbackFunc) (*tree.Callback, error)
	}{
		{entry.Before, "before", n.OnBegin},
		{entry.After, "after", n.OnEnd},
		{entry.BeforeEach, "before_each", n.OnEachBegin},
		{entry.AfterEach, "after_each", n.OnEachEnd},
		{entry.OnSuccess, "on_success", n.OnSuccess},
		{entry.OnFailure, "on_failure", n.OnFailure},
	}
	for _, hook := range hooks {
		if len(hook.args) == 0 {
			continue
		}
		cmd := r.command(entry, hook.args)
		if _, err := hook.register(hook.name, func(ctx context.Context, t *tree.Node) error {
			return r.exec(ctx, t, cmd)
		}); err != nil {
			return err
		}
	}
	return nil
}

// body returns the test body running entry's command, or nil when the
// entry has nothing to run.
func (r *Registry) body(entry *types.TestEntry) tree.Body {
	if len(entry.Run) == 0 {
		return nil
	}
	cmd := r.command(entry, entry.Run)
	expectFailure := entry.ExpectFailure
	return func(ctx context.Context, t *tree.Node) error {
		err := r.exec(ctx, t, cmd)
		if expectFailure {
			if err == nil {
				return fmt.Errorf("expected command %q to fail", cmd.String())
			}
			t.LogVerbose(fmt.Sprintf("Command failed as expected: %v", err))
			return nil
		}
		return err
	}
}

func (r *Registry) exec(ctx context.Context, t *tree.Node, cmd runner.Command) error {
	t.LogVerbose(fmt.Sprintf("Running command %q for test %q.", cmd.String(), t.Name()))
	result, err := r.config.Runner.Run(ctx, cmd)
	if result != nil && result.Output != "" {
		t.LogVerbose(result.Output)
	}
	return err
}

func (r *Registry) command(entry *types.TestEntry, args []string) runner.Command {
	timeout := r.config.DefaultTimeout
	if entry.Timeout != nil {
		timeout = *entry.Timeout
	}
	dir := entry.Dir
	if dir == "" {
		dir = filepath.Dir(r.config.SuiteFile)
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(r.config.SuiteFile), dir)
	}
	return runner.Command{
		Args:    append([]string(nil), args...),
		Dir:     dir,
		Env:     entry.Env,
		Timeout: timeout,
	}
}

func (r *Registry) wrap(entry *types.TestEntry, err error) error {
	if entry.Line > 0 {
		return fmt.Errorf("%s:%d: test %q: %w", r.config.SuiteFile, entry.Line, entry.Name, err)
	}
	return fmt.Errorf("%s: test %q: %w", r.config.SuiteFile, entry.Name, err)
}

func countNodes(n *tree.Node) int {
	count := 1
	for _, child := range n.Children() {
		count += countNodes(child)
	}
	return count
}
