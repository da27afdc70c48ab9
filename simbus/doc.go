// Package simbus provides a deterministic in-memory implementation of the
// lens hardware surface, plus a Body driver that performs the bus-master
// half of the negotiation.
//
// Lines are condition-variable backed: level waits block with no timeout,
// exactly like the real pins, while the body side paces itself on cumulative
// edge counts and waiter observation so no transition is ever missed. The
// shift register completes a transfer only when the lens side is blocked
// waiting for one, which makes every byte exchange a rendezvous and removes
// all scheduling races from tests.
package simbus
