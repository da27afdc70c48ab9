package lens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runWait starts fn in a goroutine and returns a channel closed on return.
func runWait(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	return done
}

func requireBlocked(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
		require.Fail(t, "wait completed, expected it to block")
	case <-time.After(20 * time.Millisecond):
	}
}

func requireDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "wait did not complete")
	}
}

func TestWaitRiseNeedsTransition(t *testing.T) {
	line := newFakeLine(High)
	spy := &sleepSpy{}
	s := newEdgeSync(line, 0, spy.sleep)

	// A line already resting high is not a rising edge.
	done := runWait(s.waitRise)
	requireBlocked(t, done)

	line.Set(Low)
	line.Set(High)
	requireDone(t, done)
}

func TestWaitFallNeedsTransition(t *testing.T) {
	line := newFakeLine(Low)
	spy := &sleepSpy{}
	s := newEdgeSync(line, 0, spy.sleep)

	done := runWait(s.waitFall)
	requireBlocked(t, done)

	line.Set(High)
	line.Set(Low)
	requireDone(t, done)
}

func TestWaitLowPassesAtLevel(t *testing.T) {
	line := newFakeLine(Low)
	spy := &sleepSpy{}
	s := newEdgeSync(line, 2*time.Microsecond, spy.sleep)

	// A level wait is satisfied by the resting level, no edge required.
	done := runWait(s.waitLow)
	requireDone(t, done)

	// The settling delay runs before the sample.
	assert.Equal(t, 1, spy.count())
	assert.Equal(t, 2*time.Microsecond, spy.delays[0])
}

func TestWaitHighBlocksUntilLevel(t *testing.T) {
	line := newFakeLine(Low)
	spy := &sleepSpy{}
	s := newEdgeSync(line, 0, spy.sleep)

	done := runWait(s.waitHigh)
	requireBlocked(t, done)

	line.Set(High)
	requireDone(t, done)
}
