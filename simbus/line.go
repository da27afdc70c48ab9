package simbus

import (
	"sync"

	"github.com/boykhocnhe/microfourthirds/lens"
)

// Line is a simulated digital line. It implements both lens.InputLine and
// lens.OutputLine, so the same instance can be handed to the lens as an
// input while the body drives it, or vice versa.
type Line struct {
	mu      sync.Mutex
	cond    *sync.Cond
	level   lens.Level
	rises   uint64
	falls   uint64
	waiting [2]int
}

// NewLine creates a line resting at the given level.
func NewLine(initial lens.Level) *Line {
	l := &Line{level: initial}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func levelIndex(level lens.Level) int {
	if level == lens.High {
		return 1
	}
	return 0
}

// Level returns the current line level.
func (l *Line) Level() lens.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// WaitLevel blocks until the line rests at the given level. It returns
// immediately if the line is already there.
func (l *Line) WaitLevel(level lens.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level == level {
		return
	}
	idx := levelIndex(level)
	l.waiting[idx]++
	l.cond.Broadcast()
	for l.level != level {
		l.cond.Wait()
	}
	l.waiting[idx]--
}

// Set drives the line to the given level. Setting the current level is a
// no-op and does not count as an edge.
func (l *Line) Set(level lens.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level == level {
		return
	}
	l.level = level
	if level == lens.High {
		l.rises++
	} else {
		l.falls++
	}
	l.cond.Broadcast()
}

// Rises returns the number of low-to-high transitions seen so far.
func (l *Line) Rises() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rises
}

// Falls returns the number of high-to-low transitions seen so far.
func (l *Line) Falls() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.falls
}

// WaitRiseCount blocks until at least n rising edges have occurred over the
// lifetime of the line. Counting edges rather than sampling levels means a
// short pulse from the peer can never be missed.
func (l *Line) WaitRiseCount(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.rises < n {
		l.cond.Wait()
	}
}

// WaitFallCount blocks until at least n falling edges have occurred.
func (l *Line) WaitFallCount(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.falls < n {
		l.cond.Wait()
	}
}

// WaitWaiter blocks until some goroutine is blocked in WaitLevel for the
// given level. The body uses it before driving a transition the lens
// observes as an edge, so the edge always lands while the lens is watching.
func (l *Line) WaitWaiter(level lens.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := levelIndex(level)
	for l.waiting[idx] == 0 {
		l.cond.Wait()
	}
}
