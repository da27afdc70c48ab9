package lens

import "time"

// edgeSync provides edge and level synchronization on the body's
// acknowledgment line.
//
// All four waits block with no timeout: an unresponsive body hangs the
// caller forever. This is a deliberate simplicity/latency trade-off of the
// emulated protocol, not a defect.
type edgeSync struct {
	line   InputLine
	settle time.Duration
	sleep  func(time.Duration)
}

func newEdgeSync(line InputLine, settle time.Duration, sleep func(time.Duration)) *edgeSync {
	return &edgeSync{line: line, settle: settle, sleep: sleep}
}

// waitRise blocks until a rising edge has been observed: the line is seen
// low before the high that completes the wait, so a static high reading
// never satisfies it.
func (s *edgeSync) waitRise() {
	s.line.WaitLevel(Low)
	s.line.WaitLevel(High)
}

// waitFall blocks until a falling edge has been observed: the line is seen
// high before the low that completes the wait.
func (s *edgeSync) waitFall() {
	s.line.WaitLevel(High)
	s.line.WaitLevel(Low)
}

// waitLow blocks until the line holds low. The settling delay before the
// sample absorbs line bounce and propagation skew.
func (s *edgeSync) waitLow() {
	s.sleep(s.settle)
	s.line.WaitLevel(Low)
}

// waitHigh blocks until the line holds high, after the settling delay.
func (s *edgeSync) waitHigh() {
	s.sleep(s.settle)
	s.line.WaitLevel(High)
}
