package lens

import (
	"sync/atomic"
)

// SessionMetrics contains atomic counters for one session. Counters are safe
// to read from any goroutine while the session runs and can back a
// prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// ByteSendCount is the number of bytes clocked out to the body.
	ByteSendCount atomic.Uint64
	// ByteRecvCount is the number of bytes clocked in from the body.
	ByteRecvCount atomic.Uint64
	// PacketSendCount is the number of framed packets transmitted.
	PacketSendCount atomic.Uint64
	// PacketRecvCount is the number of framed packets received.
	PacketRecvCount atomic.Uint64
	// AckPulseCount is the number of busy/ready pulses driven on the
	// acknowledgment line.
	AckPulseCount atomic.Uint64
	// StepCount is the number of script steps completed so far.
	StepCount atomic.Uint64
	// ClockResetCount is the number of clocking-hardware resets performed.
	ClockResetCount atomic.Uint64
	// KeepAliveCount is the number of keep-alive exchanges completed.
	KeepAliveCount atomic.Uint64
}

func (m *SessionMetrics) incByteSendCount() {
	m.ByteSendCount.Add(1)
}

func (m *SessionMetrics) incByteRecvCount() {
	m.ByteRecvCount.Add(1)
}

func (m *SessionMetrics) incPacketSendCount() {
	m.PacketSendCount.Add(1)
}

func (m *SessionMetrics) incPacketRecvCount() {
	m.PacketRecvCount.Add(1)
}

func (m *SessionMetrics) incAckPulseCount() {
	m.AckPulseCount.Add(1)
}

func (m *SessionMetrics) incStepCount() {
	m.StepCount.Add(1)
}

func (m *SessionMetrics) incClockResetCount() {
	m.ClockResetCount.Add(1)
}

func (m *SessionMetrics) incKeepAliveCount() {
	m.KeepAliveCount.Add(1)
}
