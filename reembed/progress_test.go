package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lastLine returns the most recent carriage-return separated progress line.
func lastLine(out string) string {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\r")
	return lines[len(lines)-1]
}

func TestProgressTracker_ChunkRun(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		interval int
		steps    []int
		want     string
		current  int
	}{
		{"one line per chunk", 3, 1, []int{1, 1, 1}, "Progress: 3/3 (100.0%)", 3},
		{"resumed run counts the remainder", 5, 1, []int{2}, "Progress: 2/5 (40.0%)", 2},
		{"interval batches lines", 12, 4, []int{1, 1, 1, 1, 1}, "Progress: 4/12 (33.3%)", 5},
		{"steps past the end are capped", 2, 1, []int{1, 5}, "Progress: 2/2 (100.0%)", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tracker := NewProgressTracker(&buf, tt.total, tt.interval).WithUnit("chunks")
			tracker.Start()
			for _, step := range tt.steps {
				tracker.Increment(step)
			}
			assert.Equal(t, tt.current, tracker.Current())
			assert.True(t, strings.HasPrefix(lastLine(buf.String()), tt.want), "got %q", buf.String())
			assert.Contains(t, buf.String(), "chunks/s")
		})
	}
}

func TestProgressTracker_IntervalSuppressesLines(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 40, 10).WithUnit("chunks")
	tracker.Start()

	tracker.Update(9)
	assert.Empty(t, buf.String())

	tracker.Update(10)
	assert.Equal(t, 1, strings.Count(buf.String(), "Progress:"))

	tracker.Update(15)
	assert.Equal(t, 1, strings.Count(buf.String(), "Progress:"))

	tracker.Update(25)
	assert.Equal(t, 2, strings.Count(buf.String(), "Progress:"))
}

func TestProgressTracker_FinishAfterFailedChunks(t *testing.T) {
	// Failed chunks still advance the tracker, so Finish lands on the total
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 6, 100).WithUnit("chunks")
	tracker.Start()
	tracker.Increment(4)
	time.Sleep(5 * time.Millisecond)
	tracker.Finish()

	out := buf.String()
	require.True(t, strings.HasSuffix(out, "\n"))
	assert.True(t, strings.HasPrefix(lastLine(out), "Progress: 6/6 (100.0%)"))
	assert.Greater(t, tracker.Elapsed(), time.Duration(0))
}

func TestProgressTracker_EmptyRun(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 0, 0)
	tracker.Start()
	tracker.Finish()
	assert.Contains(t, buf.String(), "Progress: 0/0 (0.0%)")
	assert.Contains(t, buf.String(), "items/s", "unit defaults to items")
}

func TestProgressTracker_IdleUntilStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 3, 1).WithUnit("chunks")

	tracker.Increment(1)
	tracker.Update(2)
	tracker.Finish()

	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Current())
	assert.Zero(t, tracker.Elapsed())
}
