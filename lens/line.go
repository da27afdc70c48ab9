package lens

// Level is the state of a two-level digital line.
type Level bool

// Line levels. The acknowledgment convention is active-high: High means
// "ready", Low means "busy".
const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l == High {
		return "high"
	}

	return "low"
}

// Direction is the ownership state of the shared half-duplex data line.
type Direction int

const (
	// DirInput releases the data line to the body. This is the rest state.
	DirInput Direction = iota
	// DirOutput claims the data line for the duration of one write.
	DirOutput
)

func (d Direction) String() string {
	if d == DirOutput {
		return "output"
	}

	return "input"
}

// InputLine is a digital line observed, never driven, by the engine.
//
// WaitLevel is a distinguished blocking call: it returns only once the line
// is observed at the requested level, and it never times out. A peer that
// never drives the line to that level blocks the caller forever; that hang
// is the protocol's documented failure mode, not an error condition.
type InputLine interface {
	// Level samples the current line level.
	Level() Level
	// WaitLevel blocks until the line is observed at level.
	WaitLevel(level Level)
}

// OutputLine is a digital line driven exclusively by the engine.
type OutputLine interface {
	// Set drives the line to the given level.
	Set(level Level)
}

// ShiftRegister models the clocked byte-shifting hardware behind the shared
// data line. The body drives the clock; one transfer completes per eight
// external clock cycles, LSB first.
//
// Implementations must not impose timeouts: WaitComplete blocks until the
// body has clocked a full byte, however long that takes.
type ShiftRegister interface {
	// SetDirection switches the shared data line between input and output.
	// Only the byte transport calls this, and only between transfers.
	SetDirection(dir Direction)
	// Store writes the data register. Storing also clears any pending
	// transfer-complete condition, so the next transfer is detected cleanly.
	Store(value byte)
	// Load reads the data register: the last byte shifted in by the body.
	Load() byte
	// WaitComplete blocks until the transfer-complete condition is raised,
	// meaning the body has clocked a full byte in or out.
	WaitComplete()
	// Reset disables and re-enables the clocking hardware, discarding any
	// partial bit-shift state.
	Reset()
}

// Pins bundles the full hardware surface the engine drives. Every field is
// required.
type Pins struct {
	// Power is the power/enable line; it goes high when the body turns on.
	Power InputLine
	// BodyAck is the inbound peer-signal line driven by the body.
	BodyAck InputLine
	// LensAck is the outbound acknowledgment line driven by this engine.
	LensAck OutputLine
	// Bus is the clocked shift hardware on the shared data line.
	Bus ShiftRegister
}

func (p *Pins) validate() error {
	if p.Power == nil || p.BodyAck == nil || p.LensAck == nil || p.Bus == nil {
		return ErrMissingPin
	}

	return nil
}
