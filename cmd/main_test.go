package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"

	canary "github.com/ethereum-optimism/infra/op-canary"
	"github.com/ethereum-optimism/infra/op-canary/exitcodes"
	"github.com/ethereum-optimism/infra/op-canary/reporting"
	"github.com/ethereum-optimism/infra/op-canary/ui"
)

func TestExitCoder(t *testing.T) {
	failure := canary.NewTestFailureError(&reporting.Report{RunID: "r1"})

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"runtime error", canary.NewRuntimeError(errors.New("no suite")), exitcodes.RuntimeErr},
		{"wrapped runtime error", fmt.Errorf("start: %w", canary.NewRuntimeError(errors.New("boom"))), exitcodes.RuntimeErr},
		{"test failure", failure, exitcodes.TestFailure},
		{"wrapped test failure", fmt.Errorf("run: %w", failure), exitcodes.TestFailure},
		{"exit coder", cli.Exit("custom", 3), 3},
		{"other error", errors.New("unexpected"), exitcodes.TestFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coder := exitCoder(tt.err)
			assert.Equal(t, tt.code, coder.ExitCode())
			assert.Contains(t, coder.Error(), tt.err.Error())
		})
	}
}

func TestConfigureColors(t *testing.T) {
	t.Cleanup(text.EnableColors)

	text.EnableColors()
	t.Setenv("NO_COLOR", "1")
	configureColors()
	assert.Equal(t, "✗ broken", ui.Red("✗")+" broken")
}
