package ui

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
)

func TestBuildTreePrefix(t *testing.T) {
	tests := []struct {
		name         string
		depth        int
		isLast       bool
		parentIsLast []bool
		expected     string
	}{
		{"root", 0, false, nil, ""},
		{"first level", 1, false, nil, "├── "},
		{"first level last", 1, true, nil, "└── "},
		{"second level under open parent", 2, false, []bool{false}, "│   ├── "},
		{"second level under last parent", 2, true, []bool{true}, "    └── "},
		{"mixed ancestry", 3, false, []bool{false, true}, "│       ├── "},
		{"deep", 4, true, []bool{false, false, false}, "│   │   │   └── "},
		{"missing ancestry defaults to open", 3, true, nil, "│   │   └── "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildTreePrefix(tt.depth, tt.isLast, tt.parentIsLast))
		})
	}
}

func TestBuildBoxHeader(t *testing.T) {
	assert.Equal(t, "┌────────┐\n│ TEST   │\n├────────┤\n", BuildBoxHeader("TEST", 10))
	assert.Equal(t, "┌────────────┐\n│ LONG TITLE │\n├────────────┤\n", BuildBoxHeader("LONG TITLE", 5))
	assert.Equal(t, "┌─────┐\n│ FIT │\n├─────┤\n", BuildBoxHeader("FIT", 7))
}

func TestBuildBoxLine(t *testing.T) {
	assert.Equal(t, "│ TEST   │\n", BuildBoxLine("TEST", 10))
	assert.Equal(t, "│ EXACT │\n", BuildBoxLine("EXACT", 9))
	assert.Equal(t, "│ VERY LON... │\n", BuildBoxLine("VERY LONG CONTENT THAT EXCEEDS WIDTH", 15))
	assert.Equal(t, "│      │\n", BuildBoxLine("", 8))
}

func TestCompleteBox(t *testing.T) {
	width := 24
	box := BuildBoxHeader("CANARY RUN", width)
	box += BuildBoxLine("Status: OK", width)
	box += BuildBoxLine("Duration: 1.5s", width)
	box += BuildBoxFooter(width)

	lines := strings.Split(strings.TrimRight(box, "\n"), "\n")
	assert.Len(t, lines, 6)
	for i, line := range lines {
		assert.Equal(t, width, utf8.RuneCountInString(line), "line %d: %q", i, line)
	}
	assert.Equal(t, "└"+strings.Repeat("─", width-2)+"┘", lines[len(lines)-1])
}

func TestRepeatString(t *testing.T) {
	assert.Equal(t, "─────", repeatString("─", 5))
	assert.Equal(t, "", repeatString("x", 0))
	assert.Equal(t, "", repeatString("y", -1))
}

func TestColors(t *testing.T) {
	text.DisableColors()
	defer text.EnableColors()

	assert.Equal(t, "red", Red("red"))
	assert.Equal(t, "green", Green("green"))
	assert.Equal(t, "yellow", Yellow("yellow"))
}
