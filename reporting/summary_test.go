package reporting

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-canary/tree"
)

func TestSummary(t *testing.T) {
	f := newFixture(t)

	lines := strings.Split(Summary(f.root, DefaultIndent, ""), "\n")

	require.Len(t, lines, 6)
	assert.Equal(t, "X root (failed)", lines[0])
	assert.Equal(t, "  ✓ pass", lines[1])
	assert.Equal(t, "  X fail (1 error)", lines[2])
	assert.Equal(t, "    Error: expected 1 block", lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "      at "), lines[4])
	assert.Contains(t, lines[4], "reporting/report_test.go:")
	assert.Equal(t, "  - skip (ignored)", lines[5])
}

func TestSummary_Markers(t *testing.T) {
	quiet := tree.WithLogFunc(func(string) {})
	failing := func(context.Context, *tree.Node) error { return errors.New("failed") }

	t.Run("series", func(t *testing.T) {
		series := tree.NewSeries("series", nil, quiet)
		_, err := series.Test("first", failing)
		require.NoError(t, err)
		_, err = series.Test("second", passing)
		require.NoError(t, err)
		todo, err := series.Test("later", passing)
		require.NoError(t, err)
		todo.Todo()

		series.Run(context.Background())

		lines := strings.Split(Summary(series, "--", ">"), "\n")
		require.Len(t, lines, 6)
		assert.Equal(t, ">X series (aborted)", lines[0])
		assert.Equal(t, ">--X first (1 error)", lines[1])
		assert.Equal(t, ">----Error: failed", lines[2])
		assert.Equal(t, ">--- second (skipped)", lines[4])
		assert.Equal(t, ">--- later (TODO)", lines[5])
	})

	t.Run("filtered", func(t *testing.T) {
		root := tree.NewGroup("root", nil, quiet)
		_, err := root.Test("kept", passing)
		require.NoError(t, err)
		_, err = root.Test("dropped", passing)
		require.NoError(t, err)
		root.ApplyFilter(context.Background(), tree.ByName("kept"))
		root.Run(context.Background())

		assert.Equal(t, "✓ root\n  ✓ kept\n  - dropped (filtered)", Summary(root, DefaultIndent, ""))
	})

	t.Run("skipped node hides children", func(t *testing.T) {
		root := tree.NewGroup("root", nil, quiet)
		_, err := root.Test("child", passing)
		require.NoError(t, err)
		root.Ignore()
		root.Run(context.Background())

		assert.Equal(t, "- root (ignored)", Summary(root, DefaultIndent, ""))
	})

	t.Run("errors plural", func(t *testing.T) {
		n := tree.New("multi", passing, quiet)
		n.AddError(errors.New("one"), nil)
		n.AddError(errors.New("two"), nil)
		n.Run(context.Background())

		assert.True(t, strings.HasPrefix(Summary(n, DefaultIndent, ""), "X multi (2 errors)"))
	})

	t.Run("never run", func(t *testing.T) {
		n := tree.New("idle", passing, quiet)
		assert.Equal(t, "- idle (skipped)", Summary(n, DefaultIndent, ""))
	})
}
