package lens

import "fmt"

// MaxPayloadLen is the largest payload a packet can carry: the count prefix
// is a single byte.
const MaxPayloadLen = 255

// Packet is one length-prefixed, checksum-trailed byte sequence exchanged in
// a single direction.
//
// On the wire a packet is [count][payload...][checksum]. The count byte
// equals len(Payload) and the checksum is the unsigned 8-bit sum of the
// payload bytes; neither the count nor the checksum itself is included in
// the sum.
type Packet struct {
	Payload  []byte
	Checksum byte
}

// Checksum computes the 8-bit additive checksum over payload: the sum of all
// payload bytes, truncated to 8 bits.
func Checksum(payload []byte) byte {
	var sum byte
	for _, v := range payload {
		sum += v
	}

	return sum
}

// NewPacket builds a packet for the given payload, computing its checksum.
func NewPacket(payload []byte) Packet {
	return Packet{Payload: payload, Checksum: Checksum(payload)}
}

// Count returns the count prefix value: the number of payload bytes.
func (p *Packet) Count() byte {
	return byte(len(p.Payload))
}

// Pack serializes the packet to its wire format:
//
//	[count(1)][payload(count)][checksum(1)]
func (p *Packet) Pack() []byte {
	buf := make([]byte, 0, len(p.Payload)+2)
	buf = append(buf, p.Count())
	buf = append(buf, p.Payload...)
	buf = append(buf, p.Checksum)

	return buf
}

// ParsePacket deserializes a packet from its wire bytes and verifies the
// checksum trailer against the payload.
//
// ParsePacket is a tooling helper for the body side of an exchange (tests,
// the simulated body, trace inspection). The lens engine never calls it:
// the emulated device accepts peer-supplied checksums without verification.
func ParsePacket(wire []byte) (*Packet, error) {
	if len(wire) < 2 {
		return nil, fmt.Errorf("%w: got %d bytes, want at least 2", ErrTruncatedPacket, len(wire))
	}

	count := int(wire[0])
	if len(wire) != count+2 {
		return nil, fmt.Errorf("%w: count byte %d but %d payload bytes on the wire",
			ErrTruncatedPacket, count, len(wire)-2)
	}

	payload := make([]byte, count)
	copy(payload, wire[1:1+count])

	wireSum := wire[count+1]
	calcSum := Checksum(payload)
	if wireSum != calcSum {
		return nil, fmt.Errorf("%w: wire=0x%02X, computed=0x%02X", ErrChecksumMismatch, wireSum, calcSum)
	}

	return &Packet{Payload: payload, Checksum: wireSum}, nil
}
