package tree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_Construction(t *testing.T) {
	leaf := New("leaf", passing, quiet())
	assert.False(t, leaf.IsGroup())

	group := NewGroup("group", nil, quiet())
	assert.True(t, group.IsGroup())
	assert.False(t, group.IsSeries())

	series := NewSeries("series", nil, quiet())
	assert.True(t, series.IsGroup())
	assert.True(t, series.IsSeries())
}

func TestNode_Location(t *testing.T) {
	root := NewGroup("root", nil, quiet())
	assert.True(t, strings.HasSuffix(root.FilePath(), "tree/node_test.go"), root.FilePath())
	assert.Greater(t, root.LineInFile(), 0)
	assert.Equal(t, 0, root.ColumnInLine())

	child, err := root.Test("child", passing)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(child.FilePath(), "tree/node_test.go"), child.FilePath())
	assert.Greater(t, child.LineInFile(), root.LineInFile())
}

func TestNode_AutoNaming(t *testing.T) {
	root := NewGroup("root", nil, quiet())
	var names []string
	for range 4 {
		child, err := root.Test("", passing)
		require.NoError(t, err)
		names = append(names, child.Name())
	}
	assert.Equal(t, []string{"1st child test", "2nd child test", "3rd child test", "4th child test"}, names)
}

func TestOrdinal(t *testing.T) {
	tests := map[int]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 10: "10th",
		11: "11st", 12: "12nd", 13: "13rd", 21: "21st", 100: "100th",
	}
	for n, want := range tests {
		assert.Equal(t, want, Ordinal(n))
	}
}

func TestNode_Title(t *testing.T) {
	root := NewGroup("root", nil, quiet())
	outer, err := root.Group("outer", nil)
	require.NoError(t, err)
	inner, err := outer.Series("inner", nil)
	require.NoError(t, err)
	leaf, err := inner.Test("leaf", passing)
	require.NoError(t, err)

	assert.Equal(t, "root", root.Title())
	assert.Equal(t, "outer", outer.Title())
	assert.Equal(t, "outer => inner => leaf", leaf.Title())
	assert.Same(t, inner, leaf.Parent())
}

func TestNode_StructuralErrors(t *testing.T) {
	leaf := New("leaf", passing, quiet())

	_, err := leaf.Test("child", passing)
	assert.ErrorIs(t, err, ErrNotGroup)
	_, err = leaf.Group("child", nil)
	assert.ErrorIs(t, err, ErrNotGroup)
	assert.ErrorIs(t, leaf.AddTest(New("other", passing, quiet())), ErrNotGroup)

	_, err = leaf.OnBegin("", passing)
	assert.ErrorIs(t, err, ErrCallbackNotGroup)

	root := NewGroup("root", nil, quiet())
	inner, err := root.Group("inner", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, inner.AddTest(root), ErrCycle)
	assert.ErrorIs(t, inner.AddTest(inner), ErrCycle)
	assert.Error(t, root.AddTest(nil))
}

func TestNode_AddTestMovesChild(t *testing.T) {
	first := NewGroup("first", nil, quiet())
	second := NewGroup("second", nil, quiet())
	child, err := first.Test("child", passing)
	require.NoError(t, err)

	require.NoError(t, second.AddTest(child))
	require.NoError(t, second.AddTest(child))

	assert.Empty(t, first.Children())
	assert.Equal(t, []*Node{child}, second.Children())
	assert.Same(t, second, child.Parent())
}

func TestNode_Removal(t *testing.T) {
	root := NewGroup("root", nil, quiet())
	group, err := root.Group("group", nil)
	require.NoError(t, err)
	deep, err := group.Test("deep", passing)
	require.NoError(t, err)
	sibling, err := root.Test("sibling", passing)
	require.NoError(t, err)

	assert.True(t, root.RemoveTest(deep))
	assert.Nil(t, deep.Parent())
	assert.Empty(t, group.Children())
	assert.False(t, root.RemoveTest(deep))
	assert.False(t, deep.Orphan())

	assert.True(t, sibling.Orphan())
	assert.Equal(t, []*Node{group}, root.Children())

	root.RemoveAllTests()
	assert.Empty(t, root.Children())
	assert.Nil(t, group.Parent())
}

func TestNode_FlagsCascade(t *testing.T) {
	root := NewGroup("root", nil, quiet())
	child, err := root.Test("child", passing)
	require.NoError(t, err)

	root.Todo()
	assert.True(t, child.IsTodo())
	late, err := root.Test("late", passing)
	require.NoError(t, err)
	assert.True(t, late.IsTodo(), "flags are copied at attachment")
	root.RemoveTodo()
	assert.False(t, child.IsTodo())
	assert.False(t, late.IsTodo())

	root.Ignore()
	assert.True(t, child.IsIgnored())
	root.Unignore()
	assert.False(t, child.IsIgnored())

	root.Silent()
	assert.True(t, child.IsSilent())
	root.Verbose()
	assert.True(t, child.IsVerbose())
	assert.False(t, child.IsSilent())
	root.NotVerbose()
	assert.False(t, child.IsVerbose())
	root.Silent()
	root.NotSilent()
	assert.False(t, child.IsSilent())
}

func TestNode_Tags(t *testing.T) {
	root := NewGroup("root", nil, quiet())
	root.Tags("smoke", "network")
	child, err := root.Test("child", passing)
	require.NoError(t, err)
	child.Tags("fast")

	assert.Equal(t, []string{"network", "smoke"}, root.GetTags())
	assert.Equal(t, []string{"fast"}, child.GetTags())
	assert.True(t, child.HasTag("smoke"))
	assert.True(t, child.HasTag("fast"))
	assert.False(t, child.OwnTag("smoke"))
	assert.False(t, root.HasTag("fast"))
}

func TestNode_SetLogFuncCascades(t *testing.T) {
	root := NewGroup("root", nil, quiet())
	child, err := root.Test("child", passing)
	require.NoError(t, err)

	logs := &logLines{}
	root.SetLogFunc(logs.log)
	child.Log("hello")
	child.LogVerbose("hidden")
	assert.Equal(t, []string{"hello"}, logs.all())

	root.SetLogFunc(nil)
	assert.NotNil(t, child.LogFunc())
}
