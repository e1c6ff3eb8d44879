package canary

import (
	"bytes"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleResultFormatter_FormatResults(t *testing.T) {
	tests := []struct {
		name        string
		fail        bool
		contains    []string
		notContains []string
	}{
		{
			name: "passing run",
			contains: []string{
				"Canary Test Results: mock (1.5s)",
				"good",
				"bad",
				"run passing-run: passed (3 passed, 0 failed, 0 skipped, 0 errors)",
			},
			notContains: []string{"✗"},
		},
		{
			name: "failing run",
			fail: true,
			contains: []string{
				"Canary Test Results: mock (1.5s)",
				"run failing-run: failed (1 passed, 2 failed, 0 skipped, 1 errors)",
				"  ✗ bad\n",
			},
			notContains: []string{"✗ mock"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runID := "passing-run"
			if tt.fail {
				runID = "failing-run"
			}
			run := newRun(t, runID, tt.fail)
			run.Report.Duration = 1500 * time.Millisecond

			var out bytes.Buffer
			formatter := NewConsoleResultFormatter(log.New(), &out)
			require.NoError(t, formatter.FormatResults(run.Root, run.Report))

			for _, s := range tt.contains {
				assert.Contains(t, out.String(), s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, out.String(), s)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.0s", formatDuration(0))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "61.0s", formatDuration(61*time.Second))
}
