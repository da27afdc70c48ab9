package lens

// completionSentinel is stored into the data register after a write
// finishes. Storing clears the transfer-complete condition so the next
// transfer is detected cleanly; 0x00 was observed not to clear it on the
// reference hardware.
const completionSentinel byte = 0xFF

// byteTransport transfers single bytes over the shared half-duplex data
// line. The body clocks every transfer; this side only stages data and
// switches line direction.
//
// The transport has no concurrency: transfers never overlap, and the data
// line direction is input at rest. Direction goes to output only for the
// duration of a write and is restored to input at the start of the next
// read.
type byteTransport struct {
	bus     ShiftRegister
	metrics *SessionMetrics
}

func newByteTransport(bus ShiftRegister, metrics *SessionMetrics) *byteTransport {
	return &byteTransport{bus: bus, metrics: metrics}
}

// readByte receives one byte clocked in by the body.
func (t *byteTransport) readByte() byte {
	// In case the previous transfer was a write.
	t.bus.SetDirection(DirInput)

	// Clear any stale transfer-complete condition from a previous byte.
	t.bus.Store(0x00)

	t.bus.WaitComplete()
	t.metrics.incByteRecvCount()

	return t.bus.Load()
}

// writeByte stages value and blocks until the body has clocked out all
// eight bits.
func (t *byteTransport) writeByte(value byte) {
	t.bus.Store(value)
	t.bus.SetDirection(DirOutput)

	t.bus.WaitComplete()

	// Clear the transfer-complete condition for the next transfer.
	t.bus.Store(completionSentinel)
	t.metrics.incByteSendCount()
}
