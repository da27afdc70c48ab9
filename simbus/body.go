package simbus

import (
	"fmt"

	"github.com/boykhocnhe/microfourthirds/lens"
)

// NegotiationResult records everything the body observed while driving a
// full power-on and identify sequence.
type NegotiationResult struct {
	HandshakeChecksums []byte
	CommandResponse    byte
	Capability         *lens.Packet
	Identity           *lens.Packet
	TruncatedIdentity  *lens.Packet
}

// Body drives the bus-master half of the negotiation against a lens
// session running on the same bus. It tracks cumulative lens ack edge
// counts so rapid acknowledge pulses are never missed.
//
// A Body is single-use and not safe for concurrent use.
type Body struct {
	bus   *Bus
	falls uint64
	rises uint64

	// DropClockBeforeHandshake4 garbles the bus from the identity
	// exchange onward, exercising the mid-session clock reset.
	DropClockBeforeHandshake4 bool
}

// NewBody creates a body driver for the given bus.
func NewBody(bus *Bus) *Body {
	return &Body{bus: bus}
}

func (b *Body) awaitAckFall() {
	b.falls++
	b.bus.LensAck.WaitFallCount(b.falls)
}

func (b *Body) awaitAckRise() {
	b.rises++
	b.bus.LensAck.WaitRiseCount(b.rises)
}

func (b *Body) awaitAckPulse() {
	b.awaitAckFall()
	b.awaitAckRise()
}

// PowerOn raises the power line.
func (b *Body) PowerOn() {
	b.bus.Power.Set(lens.High)
}

// AwaitWake waits for the lens wake pulse and answers it with a falling
// then rising edge on the body ack line.
func (b *Body) AwaitWake() {
	b.awaitAckRise()
	b.awaitAckFall()
	b.bus.BodyAck.WaitWaiter(lens.Low)
	b.bus.BodyAck.Set(lens.Low)
	b.bus.BodyAck.WaitWaiter(lens.High)
	b.bus.BodyAck.Set(lens.High)
	b.awaitAckRise()
}

// SendPacket clocks raw packet bytes to the lens and returns the checksum
// byte the lens replies with. The data must already carry any framing the
// lens expects; handshakes are sent as bare 4-byte blocks.
func (b *Body) SendPacket(data []byte) byte {
	n := len(data)
	for i := 0; i < n-1; i++ {
		b.bus.Shift.Clock(data[i])
		b.awaitAckPulse()
	}
	b.bus.Shift.Clock(data[n-1])
	b.awaitAckFall()
	b.bus.BodyAck.WaitWaiter(lens.Low)
	b.bus.BodyAck.Set(lens.Low)
	b.awaitAckRise()
	b.bus.BodyAck.WaitWaiter(lens.High)
	b.bus.BodyAck.Set(lens.High)
	return b.bus.Shift.Clock(0x00)
}

// ReceivePacket clocks one framed packet out of the lens and returns its
// raw wire bytes: count, payload, checksum. The body ack line is left low.
func (b *Body) ReceivePacket() []byte {
	b.bus.BodyAck.WaitWaiter(lens.Low)
	b.bus.BodyAck.Set(lens.Low)
	b.awaitAckPulse()
	count := b.bus.Shift.Clock(0x00)
	wire := make([]byte, 0, int(count)+2)
	wire = append(wire, count)
	for i := 0; i < int(count); i++ {
		b.awaitAckPulse()
		wire = append(wire, b.bus.Shift.Clock(0x00))
	}
	b.awaitAckPulse()
	wire = append(wire, b.bus.Shift.Clock(0x00))
	return wire
}

// Toggle answers the post-handshake toggle: a falling then rising edge,
// each acknowledged by the lens.
func (b *Body) Toggle() {
	b.bus.BodyAck.WaitWaiter(lens.Low)
	b.bus.BodyAck.Set(lens.Low)
	b.awaitAckFall()
	b.bus.BodyAck.WaitWaiter(lens.High)
	b.bus.BodyAck.Set(lens.High)
	b.awaitAckRise()
}

// CommandHandoff answers the exchange that precedes the command byte: the
// lens leads with a low pulse, the body dips its line in between.
func (b *Body) CommandHandoff() {
	b.awaitAckFall()
	b.bus.BodyAck.Set(lens.Low)
	b.awaitAckRise()
	b.bus.BodyAck.WaitWaiter(lens.High)
	b.bus.BodyAck.Set(lens.High)
}

// SendCommand clocks the command byte in and the single-byte response out.
func (b *Body) SendCommand(cmd byte) byte {
	b.bus.Shift.Clock(cmd)
	b.awaitAckPulse()
	return b.bus.Shift.Clock(0x00)
}

// HandoffLowRise performs the body half of the handoff before the second
// handshake: drop the line, wait for the lens dip, raise it again.
func (b *Body) HandoffLowRise() {
	b.bus.BodyAck.Set(lens.Low)
	b.awaitAckFall()
	b.bus.BodyAck.WaitWaiter(lens.High)
	b.bus.BodyAck.Set(lens.High)
	b.awaitAckRise()
}

// HandoffLowHigh performs the handoff that follows each packet the lens
// sends. The ack line is already low from ReceivePacket.
func (b *Body) HandoffLowHigh() {
	b.awaitAckFall()
	b.bus.BodyAck.Set(lens.High)
	b.awaitAckRise()
}

// FinalAck answers the closing exchange: drop the line, wait for the lens
// pulse.
func (b *Body) FinalAck() {
	b.bus.BodyAck.Set(lens.Low)
	b.awaitAckFall()
	b.awaitAckRise()
	b.bus.BodyAck.Set(lens.High)
}

// KeepAlive performs one keep-alive round: send the 4-byte poll, then
// receive the status packet. Returns the lens checksum reply and the
// parsed status packet.
func (b *Body) KeepAlive(poll []byte) (byte, *lens.Packet, error) {
	cs := b.SendPacket(poll)
	pkt, err := lens.ParsePacket(b.ReceivePacket())
	return cs, pkt, err
}

// RunNegotiation drives the body half of the canonical power-on and
// identify sequence. handshakes supplies the five 4-byte handshake blocks
// and cmd the command byte. It blocks until the lens reaches idle, so it
// normally runs in its own goroutine opposite Session.Run.
func (b *Body) RunNegotiation(handshakes [][]byte, cmd byte) (*NegotiationResult, error) {
	if len(handshakes) != 5 {
		return nil, fmt.Errorf("simbus: negotiation needs 5 handshakes, got %d", len(handshakes))
	}
	res := &NegotiationResult{}

	b.PowerOn()
	b.AwaitWake()
	res.HandshakeChecksums = append(res.HandshakeChecksums, b.SendPacket(handshakes[0]))
	b.Toggle()

	b.CommandHandoff()
	res.CommandResponse = b.SendCommand(cmd)

	b.HandoffLowRise()
	res.HandshakeChecksums = append(res.HandshakeChecksums, b.SendPacket(handshakes[1]))
	pkt, err := lens.ParsePacket(b.ReceivePacket())
	if err != nil {
		return res, fmt.Errorf("capability packet: %w", err)
	}
	res.Capability = pkt

	b.HandoffLowHigh()
	res.HandshakeChecksums = append(res.HandshakeChecksums, b.SendPacket(handshakes[2]))
	pkt, err = lens.ParsePacket(b.ReceivePacket())
	if err != nil {
		return res, fmt.Errorf("identity packet: %w", err)
	}
	res.Identity = pkt

	if b.DropClockBeforeHandshake4 {
		// The lens resets the bus before the fourth handshake no matter
		// what, so a dropout here must be absorbed.
		b.bus.Shift.DropClock()
	}
	b.HandoffLowHigh()
	res.HandshakeChecksums = append(res.HandshakeChecksums, b.SendPacket(handshakes[3]))
	pkt, err = lens.ParsePacket(b.ReceivePacket())
	if err != nil {
		return res, fmt.Errorf("truncated identity packet: %w", err)
	}
	res.TruncatedIdentity = pkt

	b.HandoffLowHigh()
	res.HandshakeChecksums = append(res.HandshakeChecksums, b.SendPacket(handshakes[4]))
	b.FinalAck()

	return res, nil
}
