package lens

import (
	"fmt"
	"time"
)

// StepKind identifies one scripted unit of the negotiation.
type StepKind int

const (
	// StepAwaitPowerOn blocks until the power line goes high and the body's
	// acknowledgment line is high.
	StepAwaitPowerOn StepKind = iota
	// StepAckWake pulses the lens acknowledgment line to announce wake-up,
	// then waits for the body's rise and signals ready.
	StepAckWake
	// StepReadPacket reads a framed packet of Count payload bytes and
	// replies with the checksum.
	StepReadPacket
	// StepWritePacket transmits Payload framed by count and checksum.
	StepWritePacket
	// StepReadByte reads a single unframed byte and pulses the
	// acknowledgment line.
	StepReadByte
	// StepWriteByte transmits Payload[0] as a single unframed byte.
	StepWriteByte
	// StepHandoff performs one of the edge/level acknowledgment dances that
	// transfer line control between exchanges.
	StepHandoff
	// StepPause sleeps for Delay.
	StepPause
	// StepResyncClock disables and re-enables the clocking hardware. The
	// step is scheduled, never triggered: it runs whether or not the body
	// actually dropped the clock.
	StepResyncClock
	// StepFinalAck performs the closing acknowledgment hold that ends the
	// negotiation.
	StepFinalAck
)

func (k StepKind) String() string {
	switch k {
	case StepAwaitPowerOn:
		return "await-power-on"
	case StepAckWake:
		return "ack-wake"
	case StepReadPacket:
		return "read-packet"
	case StepWritePacket:
		return "write-packet"
	case StepReadByte:
		return "read-byte"
	case StepWriteByte:
		return "write-byte"
	case StepHandoff:
		return "handoff"
	case StepPause:
		return "pause"
	case StepResyncClock:
		return "resync-clock"
	case StepFinalAck:
		return "final-ack"
	default:
		return fmt.Sprintf("step(%d)", int(k))
	}
}

// HandoffShape selects which acknowledgment dance a handoff step performs.
// The negotiation uses four shapes, all observed from the body's timing.
type HandoffShape int

const (
	// ShapeFallRise: wait body fall, ack low, wait body rise, ack high.
	ShapeFallRise HandoffShape = iota
	// ShapeLeadAck: ack low, wait body low, ack high, wait body rise.
	// The lens leads because the body's falling edge happens very fast.
	ShapeLeadAck
	// ShapeLowRise: wait body low, ack low, wait body rise, ack high.
	ShapeLowRise
	// ShapeLowHigh: wait body low, ack low, wait body high, ack high.
	ShapeLowHigh
)

// Step is one unit of the session script. Exactly which fields are
// meaningful depends on Kind.
type Step struct {
	Kind StepKind
	// Name labels the step in logs and the exchange trace.
	Name string
	// Count is the payload byte count for StepReadPacket.
	Count int
	// Payload is the bytes for StepWritePacket, or a single byte for
	// StepWriteByte.
	Payload []byte
	// Shape is the dance for StepHandoff.
	Shape HandoffShape
	// Delay is the sleep duration for StepPause.
	Delay time.Duration
}

// Payloads is the external configuration table of bytes the session
// transmits. The engine transports these bytes without interpreting them;
// capability and identity semantics live entirely on the body side.
type Payloads struct {
	// CommandResponse is the single byte sent after the body's command read.
	CommandResponse byte
	// Capability is the capability packet payload (5 bytes on the
	// canonical device).
	Capability []byte
	// Identity is the identity packet payload: aperture and focus limits,
	// firmware version, vendor string (21 bytes on the canonical device).
	Identity []byte
	// TruncatedIdentity is the short identity fragment the body expects
	// late in the negotiation (2 bytes on the canonical device).
	TruncatedIdentity []byte
	// KeepAlive is the payload of the optional keep-alive exchange. It is
	// transmitted only when keep-alive is explicitly enabled.
	KeepAlive []byte
}

// DefaultPayloads returns the payload table of the canonical device the
// protocol was captured from.
func DefaultPayloads() Payloads {
	return Payloads{
		CommandResponse: 0x00,
		Capability:      []byte{0x00, 0x0a, 0x10, 0xc4, 0x09},
		Identity: []byte{
			0x00, 0x00, 0x00, 0x01, 0x10, 0x00, 0x00, 0x41,
			0x41, 0x41, 0x32, 0x34, 0x33, 0x38, 0x34, 0x31,
			0x00, 0x00, 0x00, 0x01, 0x11,
		},
		TruncatedIdentity: []byte{0x00, 0x00},
		KeepAlive:         make([]byte, 31),
	}
}

// Validate checks payload sizes. The keep-alive payload is only required
// when the keep-alive exchange is enabled.
func (p *Payloads) Validate(keepAlive bool) error {
	if err := checkPayloadLen("capability", p.Capability); err != nil {
		return err
	}
	if err := checkPayloadLen("identity", p.Identity); err != nil {
		return err
	}
	if err := checkPayloadLen("truncated identity", p.TruncatedIdentity); err != nil {
		return err
	}
	if keepAlive {
		return checkPayloadLen("keep-alive", p.KeepAlive)
	}

	return nil
}

func checkPayloadLen(name string, payload []byte) error {
	if len(payload) < 1 || len(payload) > MaxPayloadLen {
		return fmt.Errorf("%w: %s payload has %d bytes, want 1-%d",
			ErrInvalidPayload, name, len(payload), MaxPayloadLen)
	}

	return nil
}

// handshakeLen is the payload byte count of every body-to-lens handshake
// packet in the negotiation.
const handshakeLen = 4

// NegotiationScript builds the fixed power-on and identify script for the
// given payload table. Step order is the canonical sequence; the clock
// resynchronization sits unconditionally before the fourth handshake read.
func NegotiationScript(p Payloads, idlePause time.Duration) []Step {
	return []Step{
		{Kind: StepAwaitPowerOn, Name: "await-power-on"},
		{Kind: StepAckWake, Name: "ack-wake"},
		{Kind: StepReadPacket, Name: "handshake-1", Count: handshakeLen},
		{Kind: StepHandoff, Name: "toggle", Shape: ShapeFallRise},
		{Kind: StepPause, Name: "idle-pause", Delay: idlePause},
		{Kind: StepHandoff, Name: "command-handoff", Shape: ShapeLeadAck},
		{Kind: StepReadByte, Name: "read-command"},
		{Kind: StepWriteByte, Name: "command-response", Payload: []byte{p.CommandResponse}},
		{Kind: StepHandoff, Name: "pre-handshake-2", Shape: ShapeLowRise},
		{Kind: StepReadPacket, Name: "handshake-2", Count: handshakeLen},
		{Kind: StepWritePacket, Name: "capability", Payload: p.Capability},
		{Kind: StepHandoff, Name: "pre-handshake-3", Shape: ShapeLowHigh},
		{Kind: StepReadPacket, Name: "handshake-3", Count: handshakeLen},
		{Kind: StepWritePacket, Name: "identity", Payload: p.Identity},
		{Kind: StepHandoff, Name: "pre-handshake-4", Shape: ShapeLowHigh},
		// The body occasionally drops the bus clock mid-session for an
		// undiagnosed reason, ruining the shift synchronization. The reset
		// always runs here, dropout or not.
		{Kind: StepResyncClock, Name: "clock-resync"},
		{Kind: StepReadPacket, Name: "handshake-4", Count: handshakeLen},
		{Kind: StepWritePacket, Name: "truncated-identity", Payload: p.TruncatedIdentity},
		{Kind: StepHandoff, Name: "pre-handshake-5", Shape: ShapeLowHigh},
		{Kind: StepReadPacket, Name: "handshake-5", Count: handshakeLen},
		{Kind: StepFinalAck, Name: "final-ack"},
	}
}

// validateScript rejects scripts the framer would refuse at run time.
func validateScript(steps []Step) error {
	if len(steps) == 0 {
		return ErrEmptyScript
	}

	for i, st := range steps {
		switch st.Kind {
		case StepReadPacket:
			if st.Count < 1 {
				return fmt.Errorf("%w: step %d (%s) has count %d", ErrInvalidCount, i, st.Name, st.Count)
			}
		case StepWritePacket:
			if len(st.Payload) < 1 || len(st.Payload) > MaxPayloadLen {
				return fmt.Errorf("%w: step %d (%s) has %d bytes", ErrInvalidPayload, i, st.Name, len(st.Payload))
			}
		case StepWriteByte:
			if len(st.Payload) != 1 {
				return fmt.Errorf("%w: step %d (%s) needs exactly 1 byte, has %d",
					ErrInvalidPayload, i, st.Name, len(st.Payload))
			}
		}
	}

	return nil
}
