package lens

import (
	"sync"
	"time"
)

// fakeLine is a settable line with blocking level waits, used to drive the
// synchronizer from a test goroutine. With auto set, a wait for the
// opposite level flips the line instead of blocking, emulating an
// infinitely cooperative body.
type fakeLine struct {
	mu    sync.Mutex
	cond  *sync.Cond
	level Level
	sets  []Level
	auto  bool
}

func newFakeLine(initial Level) *fakeLine {
	l := &fakeLine{level: initial}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *fakeLine) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *fakeLine) WaitLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.auto && l.level != level {
		l.level = level
		return
	}
	for l.level != level {
		l.cond.Wait()
	}
}

func (l *fakeLine) Set(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.sets = append(l.sets, level)
	l.cond.Broadcast()
}

// fakeShift is a non-blocking shift register. Incoming bytes are consumed
// one per completed input transfer.
type fakeShift struct {
	dir      Direction
	reg      byte
	incoming []byte
	stores   []byte
	dirs     []Direction
	resets   int
}

func (s *fakeShift) SetDirection(dir Direction) {
	s.dir = dir
	s.dirs = append(s.dirs, dir)
}

func (s *fakeShift) Store(v byte) {
	s.reg = v
	s.stores = append(s.stores, v)
}

func (s *fakeShift) Load() byte { return s.reg }

func (s *fakeShift) WaitComplete() {
	if s.dir == DirInput && len(s.incoming) > 0 {
		s.reg = s.incoming[0]
		s.incoming = s.incoming[1:]
	}
}

func (s *fakeShift) Reset() { s.resets++ }

// sleepSpy records requested delays without sleeping.
type sleepSpy struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepSpy) sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
}

func (s *sleepSpy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}
