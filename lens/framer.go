package lens

// packetFramer frames byte transfers into length-prefixed, checksum-trailed
// packets, driving the lens acknowledgment line per byte.
//
// The two directions use different handshake shapes, observed from the real
// body's behavior: reads pulse busy/ready between bytes but withhold the
// ready pulse after the final byte, while writes wait for the body's line
// before every byte.
type packetFramer struct {
	transport *byteTransport
	body      *edgeSync
	ack       OutputLine
	metrics   *SessionMetrics
}

func newPacketFramer(transport *byteTransport, body *edgeSync, ack OutputLine, metrics *SessionMetrics) *packetFramer {
	return &packetFramer{transport: transport, body: body, ack: ack, metrics: metrics}
}

// pulseAck drives the acknowledgment line low then high: busy, then ready.
func (f *packetFramer) pulseAck() {
	f.ack.Set(Low)
	f.ack.Set(High)
	f.metrics.incAckPulseCount()
}

// readPacket reads n payload bytes clocked in by the body and replies with
// the running checksum as a final byte.
//
// The returned packet carries the received payload and the checksum this
// side computed and transmitted. No checksum from the body is verified in
// this direction; a corrupted transfer is silently accepted. n must be at
// least 1; the script builder enforces this before a session starts.
func (f *packetFramer) readPacket(n int) Packet {
	if n < 1 {
		panic("lens: readPacket requires a byte count of at least 1")
	}

	var sum byte
	payload := make([]byte, n)

	for i := 0; i < n-1; i++ {
		payload[i] = f.transport.readByte()
		sum += payload[i]
		f.pulseAck()
	}

	// Final byte: busy only. The body drops its line next instead of
	// waiting for a ready pulse.
	payload[n-1] = f.transport.readByte()
	sum += payload[n-1]
	f.ack.Set(Low)

	// Reply with the checksum once the body hands the line back.
	f.body.waitFall()
	f.ack.Set(High)
	f.body.waitHigh()
	f.transport.writeByte(sum)

	f.metrics.incPacketRecvCount()

	return Packet{Payload: payload, Checksum: sum}
}

// writePacket transmits payload framed by a count prefix and checksum
// trailer. There is no confirmation of receipt beyond the transport-level
// completion of each byte.
func (f *packetFramer) writePacket(payload []byte) Packet {
	var sum byte

	// Count prefix. The count is not included in the checksum.
	f.body.waitFall()
	f.pulseAck()
	f.transport.writeByte(byte(len(payload)))

	for _, v := range payload {
		f.body.waitLow()
		f.pulseAck()
		f.transport.writeByte(v)
		sum += v
	}

	// Checksum trailer.
	f.body.waitLow()
	f.pulseAck()
	f.transport.writeByte(sum)

	f.metrics.incPacketSendCount()

	return Packet{Payload: payload, Checksum: sum}
}
