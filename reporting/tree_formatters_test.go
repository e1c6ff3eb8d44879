package reporting

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-canary/location"
	"github.com/ethereum-optimism/infra/op-canary/tree"
	"github.com/ethereum-optimism/infra/op-canary/types"
)

func TestTreeJSONFormatter(t *testing.T) {
	f := newFixture(t)
	f.root.Tags("smoke")
	report := GetReport(f.root)
	report.RunID = "run-1"
	report.Duration = 1500 * time.Millisecond

	data, err := NewTreeJSONFormatter(nil).Format(f.root, report)
	require.NoError(t, err)

	var decoded TreeJSONResponse
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, types.StatusFailed, decoded.Status)
	assert.Equal(t, []string{"root", "fail"}, decoded.FailedTests)

	root := decoded.Hierarchy
	require.NotNil(t, root)
	assert.Equal(t, "group", root.Kind)
	assert.Equal(t, []string{"smoke"}, root.Tags)
	assert.Equal(t, "/suites/smoke.yaml:1:0", root.Location)
	require.Len(t, root.Children, 3)

	failed := root.Children[1]
	assert.Equal(t, "fail", failed.Title)
	assert.Equal(t, types.StatusFailed, failed.Status)
	require.Len(t, failed.Errors, 1)
	assert.Equal(t, "fail", failed.Errors[0].Location)
	assert.Equal(t, "expected 1 block\ngot 0", failed.Errors[0].Message)
	assert.Empty(t, failed.ModulePath)
}

func TestTreeJSONFormatter_ModulePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/suites\n"), 0644))
	suite := filepath.Join(dir, "smoke", "suite.yaml")

	root := tree.New("root", passing,
		tree.WithLogFunc(func(string) {}),
		tree.WithLocationProvider(location.Static{File: suite, Line: 3}),
	)
	root.Run(context.Background())

	resolver, err := location.NewModuleResolver(0)
	require.NoError(t, err)
	response := NewTreeJSONFormatter(resolver).Build(root, GetReport(root))

	assert.Equal(t, "example.com/suites/smoke/suite.yaml", response.Hierarchy.ModulePath)
	assert.Equal(t, "test", response.Hierarchy.Kind)
}

func TestTreeTableFormatter(t *testing.T) {
	f := newFixture(t)
	nested, err := f.root.Series("nested", nil)
	require.NoError(t, err)
	_, err = nested.Test("inner", passing)
	require.NoError(t, err)
	f.root.Reset()
	f.root.Run(context.Background())

	report := GetReport(f.root)
	out, err := NewTreeTableFormatter("Canary Results", true).Format(f.root, report)
	require.NoError(t, err)

	assert.Contains(t, out, "Canary Results")
	assert.Contains(t, out, "pass")
	assert.Contains(t, out, "└── inner")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "FAILED")

	leavesOnly, err := NewTreeTableFormatter("Leaves", false).Format(f.root, report)
	require.NoError(t, err)
	assert.NotContains(t, leavesOnly, "nested")
	assert.True(t, strings.Contains(leavesOnly, "inner"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
}
