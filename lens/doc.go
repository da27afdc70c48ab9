// Package lens emulates the lens (subordinate) side of the proprietary
// synchronous serial handshake used between a camera body and its lens.
//
// The body is the bus and clock master; the lens is a clocked slave. The two
// peers share a half-duplex data line whose direction is switched at runtime,
// plus a dedicated acknowledgment line in each direction and a power/enable
// line. One byte is transferred per eight externally clocked bit shifts.
//
// # Protocol Overview
//
// The protocol has four layers, each built strictly on the one below:
//
//   - Edge synchronization: blocking waits for rising/falling edges and
//     settled levels on the body's acknowledgment line.
//   - Byte transport: single-byte transfers over the shared clocked data
//     line, with explicit direction switching before each transfer.
//   - Packet framing: length-prefixed payloads with an 8-bit additive
//     checksum trailer, paced by per-byte acknowledgment pulses.
//   - Session: the fixed ordered sequence of framed exchanges and hand-off
//     waits that constitutes one power-on and identify negotiation.
//
// Packet wire format is [count][payload...][checksum] where checksum is the
// unsigned 8-bit sum of the payload bytes only. The lens never verifies a
// checksum supplied by the body; this emulates the observed behavior of the
// real device and must not be "fixed" silently.
//
// # Timing Model
//
// Every wait in this package blocks with no timeout. The engine advances in
// lockstep with the body's clock and signaling, and a body that stops
// responding hangs the engine forever. That hang is the protocol's only
// failure mode for an unresponsive peer; there is no retry, cancellation, or
// diagnostic path at the wait level. Session.Run consults its context only
// between scripted steps.
//
// # Hardware Abstraction
//
// All pin and register access goes through the InputLine, OutputLine, and
// ShiftRegister interfaces, so the engine runs unmodified against real GPIO
// hardware (package gpiobus) or a simulated body (package simbus).
package lens
