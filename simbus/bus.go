package simbus

import "github.com/boykhocnhe/microfourthirds/lens"

// Bus bundles the four simulated hardware surfaces of the mount.
type Bus struct {
	Power   *Line
	BodyAck *Line
	LensAck *Line
	Shift   *ShiftRegister
}

// New creates a bus at rest: power off, body ack idle high, lens ack low.
func New() *Bus {
	return &Bus{
		Power:   NewLine(lens.Low),
		BodyAck: NewLine(lens.High),
		LensAck: NewLine(lens.Low),
		Shift:   NewShiftRegister(),
	}
}

// Pins exposes the bus as the pin set a lens session attaches to.
func (b *Bus) Pins() lens.Pins {
	return lens.Pins{
		Power:   b.Power,
		BodyAck: b.BodyAck,
		LensAck: b.LensAck,
		Bus:     b.Shift,
	}
}
