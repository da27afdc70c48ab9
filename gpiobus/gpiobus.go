// Package gpiobus attaches a lens session to real GPIO pins through
// periph.io. The body clocks the data line; this side bit-bangs the
// subordinate half of each transfer.
//
// Levels are sampled and driven through the host GPIO registry, so any
// platform periph.io supports (Raspberry Pi and friends) can present a
// lens to a camera body wired to its header.
package gpiobus

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/boykhocnhe/microfourthirds/lens"
)

var (
	ErrHostInit    = errors.New("gpiobus: periph host init failed")
	ErrPinNotFound = errors.New("gpiobus: pin not found")
	ErrPinSetup    = errors.New("gpiobus: pin setup failed")
)

// PinConfig names the host GPIO pins the mount is wired to, in the
// registry's naming scheme (for example "GPIO17").
type PinConfig struct {
	// Power senses the body's power/enable line.
	Power string
	// BodyAck senses the body's signal line.
	BodyAck string
	// LensAck drives the acknowledgment line back to the body.
	LensAck string
	// Clock senses the body-driven bus clock.
	Clock string
	// Data is the shared half-duplex data line.
	Data string
}

// Bus is a lens hardware surface backed by host GPIO pins.
type Bus struct {
	power   *inputLine
	bodyAck *inputLine
	lensAck *outputLine
	shift   *shiftRegister
}

// Open initializes the periph host and claims the configured pins. The
// acknowledgment line is driven high (ready) and the data line released to
// the body.
func Open(cfg PinConfig) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHostInit, err)
	}

	power, err := openInput(cfg.Power)
	if err != nil {
		return nil, err
	}
	bodyAck, err := openInput(cfg.BodyAck)
	if err != nil {
		return nil, err
	}
	lensAck, err := openOutput(cfg.LensAck)
	if err != nil {
		return nil, err
	}
	shift, err := openShift(cfg.Clock, cfg.Data)
	if err != nil {
		return nil, err
	}

	return &Bus{power: power, bodyAck: bodyAck, lensAck: lensAck, shift: shift}, nil
}

// Pins exposes the bus as the pin set a lens session attaches to.
func (b *Bus) Pins() lens.Pins {
	return lens.Pins{
		Power:   b.power,
		BodyAck: b.bodyAck,
		LensAck: b.lensAck,
		Bus:     b.shift,
	}
}

// Halt releases the driven lines. Input pins need no teardown.
func (b *Bus) Halt() error {
	if err := b.lensAck.pin.Halt(); err != nil {
		return fmt.Errorf("gpiobus: halt %s: %w", b.lensAck.pin.Name(), err)
	}

	return b.shift.halt()
}

func lookup(name string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: %q", ErrPinNotFound, name)
	}

	return pin, nil
}

func openInput(name string) (*inputLine, error) {
	pin, err := lookup(name)
	if err != nil {
		return nil, err
	}
	if err := pin.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPinSetup, name, err)
	}

	return &inputLine{pin: pin}, nil
}

func openOutput(name string) (*outputLine, error) {
	pin, err := lookup(name)
	if err != nil {
		return nil, err
	}
	if err := pin.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPinSetup, name, err)
	}

	return &outputLine{pin: pin}, nil
}

// inputLine observes a body-driven pin.
type inputLine struct {
	pin gpio.PinIO
}

func (l *inputLine) Level() lens.Level {
	return lens.Level(l.pin.Read() == gpio.High)
}

// WaitLevel blocks until the pin reads at level. Edge waits between samples
// keep the loop off the CPU; there is no timeout.
func (l *inputLine) WaitLevel(level lens.Level) {
	want := gpio.Low
	if level == lens.High {
		want = gpio.High
	}
	for l.pin.Read() != want {
		l.pin.WaitForEdge(-1)
	}
}

// outputLine drives the acknowledgment pin.
type outputLine struct {
	pin gpio.PinIO
}

func (l *outputLine) Set(level lens.Level) {
	v := gpio.Low
	if level == lens.High {
		v = gpio.High
	}
	// Out on an already-out pin cannot fail on supported hosts.
	_ = l.pin.Out(v)
}

// shiftRegister bit-bangs the subordinate half of the clocked byte
// exchange: the body owns the clock, this side samples or presents one bit
// per rising edge, LSB first.
type shiftRegister struct {
	clock gpio.PinIO
	data  gpio.PinIO
	dir   lens.Direction
	reg   byte
}

func openShift(clockName, dataName string) (*shiftRegister, error) {
	clock, err := lookup(clockName)
	if err != nil {
		return nil, err
	}
	if err := clock.In(gpio.PullNoChange, gpio.RisingEdge); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPinSetup, clockName, err)
	}

	data, err := lookup(dataName)
	if err != nil {
		return nil, err
	}
	if err := data.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPinSetup, dataName, err)
	}

	return &shiftRegister{clock: clock, data: data, dir: lens.DirInput}, nil
}

func (r *shiftRegister) SetDirection(dir lens.Direction) {
	if dir == r.dir {
		return
	}
	r.dir = dir
	if dir == lens.DirOutput {
		_ = r.data.Out(gpio.Low)
	} else {
		_ = r.data.In(gpio.PullNoChange, gpio.NoEdge)
	}
}

func (r *shiftRegister) Store(value byte) {
	r.reg = value
}

func (r *shiftRegister) Load() byte {
	return r.reg
}

// WaitComplete performs one 8-bit transfer. Inbound bits are sampled on
// the clock's rising edge; outbound bits are presented before each edge so
// the body samples them on the edge.
func (r *shiftRegister) WaitComplete() {
	if r.dir == lens.DirOutput {
		for i := 0; i < 8; i++ {
			bit := gpio.Low
			if r.reg&(1<<i) != 0 {
				bit = gpio.High
			}
			_ = r.data.Out(bit)
			r.clock.WaitForEdge(-1)
		}

		return
	}

	var v byte
	for i := 0; i < 8; i++ {
		r.clock.WaitForEdge(-1)
		if r.data.Read() == gpio.High {
			v |= 1 << i
		}
	}
	r.reg = v
}

// Reset reinitializes the clock pin, discarding any partial bit shift and
// pending edge events.
func (r *shiftRegister) Reset() {
	_ = r.clock.In(gpio.PullNoChange, gpio.RisingEdge)
	for r.clock.WaitForEdge(0) {
	}
}

func (r *shiftRegister) halt() error {
	if r.dir == lens.DirOutput {
		if err := r.data.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return fmt.Errorf("gpiobus: release %s: %w", r.data.Name(), err)
		}
		r.dir = lens.DirInput
	}

	return nil
}

var (
	_ lens.InputLine     = (*inputLine)(nil)
	_ lens.OutputLine    = (*outputLine)(nil)
	_ lens.ShiftRegister = (*shiftRegister)(nil)
)
