package tree

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-canary/types"
)

// logLines collects node output for assertions.
type logLines struct {
	mu    sync.Mutex
	lines []string
}

func (l *logLines) log(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, message)
}

func (l *logLines) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func quiet() Option {
	return WithLogFunc(func(string) {})
}

func passing(context.Context, *Node) error { return nil }

func TestRun_BodyReturnsError(t *testing.T) {
	n := New("fails", func(context.Context, *Node) error {
		return errors.New("boom")
	}, quiet())

	n.Run(context.Background())

	assert.True(t, n.Attempted())
	assert.Equal(t, types.True, n.Aborted())
	assert.Equal(t, types.True, n.Failed())
	assert.Equal(t, types.False, n.Success())
	require.Len(t, n.Errors(), 1)
	assert.Equal(t, "boom", n.Errors()[0].Message())
	assert.Equal(t, types.StatusFailed, n.StatusString())
	assert.False(t, n.EndTime().IsZero())
}

func TestRun_BodyPanics(t *testing.T) {
	n := New("panics", func(context.Context, *Node) error {
		panic("kaboom")
	}, quiet())

	require.NotPanics(t, func() { n.Run(context.Background()) })

	assert.Equal(t, types.True, n.Aborted())
	assert.Equal(t, types.True, n.Failed())
	require.Len(t, n.Errors(), 1)
	assert.Equal(t, "kaboom", n.Errors()[0].Message())

	var panicErr *PanicError
	require.ErrorAs(t, n.Errors()[0].Err(), &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
}

func TestRun_PassingTest(t *testing.T) {
	logs := &logLines{}
	n := New("passes", passing, WithLogFunc(logs.log))

	n.Run(context.Background())

	assert.True(t, n.Attempted())
	assert.Equal(t, types.True, n.Success())
	assert.Equal(t, types.False, n.Failed())
	assert.Equal(t, types.False, n.Aborted())
	assert.Empty(t, n.Errors())
	assert.Equal(t, types.StatusPassed, n.StatusString())
	require.NotEmpty(t, logs.all())
	assert.Regexp(t, `^Completed test "passes"\. \(\d+\.\d{3}s\)$`, logs.all()[len(logs.all())-1])
}

func TestRun_SkippedTestsDoNotRun(t *testing.T) {
	tests := []struct {
		name string
		mark func(n *Node)
	}{
		{name: "ignored", mark: (*Node).Ignore},
		{name: "todo", mark: (*Node).Todo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			n := New(tt.name, func(context.Context, *Node) error {
				calls++
				return nil
			}, quiet())
			tt.mark(n)

			n.Run(context.Background())

			assert.Equal(t, 0, calls)
			assert.True(t, n.Skipped())
			assert.False(t, n.Attempted())
			assert.True(t, n.ShouldSkip())
			assert.Equal(t, types.StatusSkipped, n.StatusString())
		})
	}
}

func TestRun_IgnoreDuringBody(t *testing.T) {
	n := New("changes its mind", func(_ context.Context, t *Node) error {
		t.Ignore()
		return nil
	}, quiet())

	n.Run(context.Background())

	assert.True(t, n.Attempted())
	assert.True(t, n.Skipped())
	assert.False(t, n.Success().IsTrue())
	assert.Equal(t, types.StatusSkipped, n.StatusString())
}

func TestRun_GroupRunsEveryChild(t *testing.T) {
	group := NewGroup("group", nil, quiet())
	first, err := group.Test("first", passing)
	require.NoError(t, err)
	second, err := group.Test("second", func(context.Context, *Node) error {
		return errors.New("second failed")
	})
	require.NoError(t, err)
	third, err := group.Test("third", passing)
	require.NoError(t, err)

	group.Run(context.Background())

	for _, child := range []*Node{first, second, third} {
		assert.True(t, child.Attempted(), child.Name())
	}
	assert.Equal(t, types.StatusPassed, first.StatusString())
	assert.Equal(t, types.StatusFailed, second.StatusString())
	assert.Equal(t, types.StatusPassed, third.StatusString())

	assert.Equal(t, []*Node{second}, group.FailedChildren())
	assert.Equal(t, types.True, group.Failed())
	assert.False(t, group.Aborted().IsTrue())
	assert.Empty(t, group.Errors())
}

func TestRun_SeriesStopsAtFirstFailure(t *testing.T) {
	series := NewSeries("series", nil, quiet())
	first, err := series.Test("first", passing)
	require.NoError(t, err)
	second, err := series.Test("second", func(context.Context, *Node) error {
		return errors.New("second failed")
	})
	require.NoError(t, err)
	third, err := series.Test("third", passing)
	require.NoError(t, err)

	series.Run(context.Background())

	assert.True(t, first.Attempted())
	assert.True(t, second.Attempted())
	assert.False(t, third.Attempted())
	assert.Equal(t, []*Node{second}, series.FailedChildren())
	assert.Equal(t, types.True, series.Aborted())
	assert.Equal(t, types.True, series.Failed())
}

func TestRun_SkippedChildDoesNotFailSeries(t *testing.T) {
	series := NewSeries("series", nil, quiet())
	skipped, err := series.Test("skipped", func(context.Context, *Node) error {
		return errors.New("never runs")
	})
	require.NoError(t, err)
	skipped.Todo()
	last, err := series.Test("last", passing)
	require.NoError(t, err)

	series.Run(context.Background())

	assert.True(t, last.Attempted())
	assert.Equal(t, types.True, series.Success())
	assert.Empty(t, series.FailedChildren())
}

func TestRun_IsIdempotentAfterFailure(t *testing.T) {
	calls := 0
	n := New("fails once", func(context.Context, *Node) error {
		calls++
		return errors.New("failed")
	}, quiet())

	n.Run(context.Background())
	n.Run(context.Background())

	assert.Equal(t, 1, calls)
	assert.Len(t, n.Errors(), 1)
}

func TestRun_ErrorAddedFromGoroutine(t *testing.T) {
	n := New("async", func(_ context.Context, t *Node) error {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.AddError(errors.New("background failure"), nil)
		}()
		wg.Wait()
		return nil
	}, quiet())

	n.Run(context.Background())

	assert.Equal(t, types.True, n.Aborted())
	require.Len(t, n.Errors(), 1)
	assert.Equal(t, "background failure", n.Errors()[0].Message())
	assert.Same(t, n, n.Errors()[0].Location())
}

func TestRun_Duration(t *testing.T) {
	n := New("sleeps", func(ctx context.Context, _ *Node) error {
		select {
		case <-time.After(100 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, quiet())

	n.Run(context.Background())

	require.Equal(t, types.True, n.Success())
	assert.InDelta(t, 100, n.DurationMilliseconds(), 50)
	assert.Equal(t, n.DurationMilliseconds()*0.001, n.DurationSeconds())
}

func TestDuration_UnsetTimes(t *testing.T) {
	n := New("never run", passing, quiet())
	assert.Equal(t, time.Duration(0), n.Duration())
	assert.Equal(t, float64(0), n.DurationMilliseconds())
}

func TestReset_AllowsIdenticalRerun(t *testing.T) {
	group := NewGroup("group", nil, quiet())
	pass, err := group.Test("pass", passing)
	require.NoError(t, err)
	fail, err := group.Test("fail", func(context.Context, *Node) error {
		return errors.New("fail")
	})
	require.NoError(t, err)
	skip, err := group.Test("skip", passing)
	require.NoError(t, err)
	skip.Ignore()

	statuses := func() []types.Status {
		return []types.Status{
			group.StatusString(), pass.StatusString(), fail.StatusString(), skip.StatusString(),
		}
	}

	group.Run(context.Background())
	first := statuses()

	group.Reset()
	for _, n := range []*Node{group, pass, fail, skip} {
		assert.False(t, n.Attempted(), n.Name())
		assert.False(t, n.Skipped(), n.Name())
		assert.Equal(t, types.Unset, n.Success(), n.Name())
		assert.Equal(t, types.Unset, n.Aborted(), n.Name())
		assert.Equal(t, types.Unset, n.Failed(), n.Name())
		assert.True(t, n.StartTime().IsZero(), n.Name())
		assert.True(t, n.EndTime().IsZero(), n.Name())
		assert.Empty(t, n.Errors(), n.Name())
		assert.Empty(t, n.FailedChildren(), n.Name())
	}
	assert.True(t, skip.IsIgnored())

	group.Run(context.Background())
	assert.Equal(t, first, statuses())
	assert.Len(t, fail.Errors(), 1)
}

func TestReset_KeepsExpansionFailure(t *testing.T) {
	root := NewGroup("root", nil, quiet())
	calls := 0
	bad, err := root.Group("bad", func(context.Context, *Node) error {
		calls++
		return errors.New("expand")
	})
	require.NoError(t, err)

	ctx := context.Background()
	root.ExpandGroups(ctx)
	root.Run(ctx)
	require.Equal(t, types.StatusFailed, bad.StatusString())
	require.Len(t, bad.Errors(), 1)
	first := bad.Errors()[0]

	root.Reset()
	assert.True(t, bad.Attempted())
	assert.Equal(t, types.True, bad.Aborted())
	assert.Equal(t, []*TestError{first}, bad.Errors())

	root.ExpandGroups(ctx)
	root.Run(ctx)
	assert.Equal(t, 1, calls)
	assert.Equal(t, types.StatusFailed, bad.StatusString())
	assert.Equal(t, types.StatusFailed, root.StatusString())
	assert.Len(t, bad.Errors(), 1)
}

func TestFailAndAbort(t *testing.T) {
	t.Run("fail does not abort", func(t *testing.T) {
		n := New("explicit", passing, quiet())
		n.Fail(context.Background(), errors.New("nope"))
		assert.Equal(t, types.True, n.Failed())
		assert.Equal(t, types.Unset, n.Aborted())
		require.Len(t, n.Errors(), 1)
	})

	t.Run("abort sets both", func(t *testing.T) {
		n := New("explicit", passing, quiet())
		n.Abort(context.Background(), nil)
		assert.Equal(t, types.True, n.Failed())
		assert.Equal(t, types.True, n.Aborted())
		assert.Empty(t, n.Errors())
	})

	t.Run("second fail is ignored", func(t *testing.T) {
		n := New("explicit", passing, quiet())
		n.Fail(context.Background(), errors.New("first"))
		n.Fail(context.Background(), errors.New("second"))
		assert.Len(t, n.Errors(), 1)
	})
}

func TestRun_Logging(t *testing.T) {
	logs := &logLines{}
	n := New("fails", func(context.Context, *Node) error {
		return errors.New("boom")
	}, WithLogFunc(logs.log))

	n.Run(context.Background())

	lines := logs.all()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Encountered an error while running test \"fails\":\n  boom")
	assert.Equal(t, `Failing test "fails".`, lines[1])

	t.Run("silent", func(t *testing.T) {
		logs := &logLines{}
		n := New("fails", func(context.Context, *Node) error {
			return errors.New("boom")
		}, WithLogFunc(logs.log))
		n.Silent()
		n.Run(context.Background())
		assert.Empty(t, logs.all())
	})

	t.Run("verbose", func(t *testing.T) {
		logs := &logLines{}
		n := New("passes", passing, WithLogFunc(logs.log))
		n.Verbose()
		n.Run(context.Background())
		assert.Contains(t, logs.all(), `Beginning to run test "passes".`)
	})
}
