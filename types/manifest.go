package types

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// TestKind selects how a manifest entry is turned into a test node.
type TestKind string

const (
	KindTest   TestKind = "test"
	KindGroup  TestKind = "group"
	KindSeries TestKind = "series"
)

// IsValid reports whether k is a known kind. The empty kind is valid and
// resolved by Resolve.
func (k TestKind) IsValid() bool {
	switch k {
	case "", KindTest, KindGroup, KindSeries:
		return true
	}
	return false
}

// TestEntry is one node of a suite manifest. The top level of a manifest
// is itself an entry.
type TestEntry struct {
	Name          string            `yaml:"name,omitempty" toml:"name"`
	Kind          TestKind          `yaml:"kind,omitempty" toml:"kind"`
	Run           []string          `yaml:"run,omitempty" toml:"run"`
	Dir           string            `yaml:"dir,omitempty" toml:"dir"`
	Env           map[string]string `yaml:"env,omitempty" toml:"env"`
	Timeout       *time.Duration    `yaml:"timeout,omitempty" toml:"timeout"`
	Tags          []string          `yaml:"tags,omitempty" toml:"tags"`
	Todo          bool              `yaml:"todo,omitempty" toml:"todo"`
	Ignore        bool              `yaml:"ignore,omitempty" toml:"ignore"`
	ExpectFailure bool              `yaml:"expect_failure,omitempty" toml:"expect_failure"`

	Before     []string `yaml:"before,omitempty" toml:"before"`
	After      []string `yaml:"after,omitempty" toml:"after"`
	BeforeEach []string `yaml:"before_each,omitempty" toml:"before_each"`
	AfterEach  []string `yaml:"after_each,omitempty" toml:"after_each"`
	OnSuccess  []string `yaml:"on_success,omitempty" toml:"on_success"`
	OnFailure  []string `yaml:"on_failure,omitempty" toml:"on_failure"`

	Tests []TestEntry `yaml:"tests,omitempty" toml:"tests"`

	// Line and Column locate the entry in its manifest. They are only known
	// for YAML manifests.
	Line   int `yaml:"-" toml:"-"`
	Column int `yaml:"-" toml:"-"`
}

// UnmarshalYAML decodes the entry and records where it was defined.
func (e *TestEntry) UnmarshalYAML(value *yaml.Node) error {
	type plain TestEntry
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: test entry must be a mapping", value.Line)
	}
	if err := value.Decode((*plain)(e)); err != nil {
		return err
	}
	e.Line, e.Column = value.Line, value.Column
	return nil
}

// Resolve returns the effective kind: entries without a kind are groups
// when they have children and tests otherwise.
func (e *TestEntry) Resolve() TestKind {
	if e.Kind != "" {
		return e.Kind
	}
	if len(e.Tests) > 0 {
		return KindGroup
	}
	return KindTest
}

// HasCallbacks reports whether any lifecycle command is configured.
func (e *TestEntry) HasCallbacks() bool {
	return len(e.Before) > 0 || len(e.After) > 0 || len(e.BeforeEach) > 0 ||
		len(e.AfterEach) > 0 || len(e.OnSuccess) > 0 || len(e.OnFailure) > 0
}

// Validate checks the entry and its descendants for structural errors.
func (e *TestEntry) Validate() error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("test %q has unknown kind %q", e.Name, e.Kind)
	}
	if e.Resolve() == KindTest {
		if len(e.Tests) > 0 {
			return fmt.Errorf("test %q has child tests but is not a group", e.Name)
		}
		if e.HasCallbacks() {
			return fmt.Errorf("test %q has callbacks but is not a group", e.Name)
		}
	} else if len(e.Run) > 0 {
		return fmt.Errorf("group %q cannot run a command", e.Name)
	}
	if e.Timeout != nil && *e.Timeout < 0 {
		return fmt.Errorf("test %q has a negative timeout", e.Name)
	}
	for i := range e.Tests {
		if err := e.Tests[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
