package simbus

import (
	"sync"

	"github.com/boykhocnhe/microfourthirds/lens"
)

// ClockEvent records one byte exchange as seen on the bus.
type ClockEvent struct {
	Dir    lens.Direction
	In     byte // byte clocked toward the lens, stored only when Dir is DirInput
	Out    byte // byte the body captured from the register
	Skewed bool
}

// ShiftRegister is a simulated byte shifter clocked by the body. A transfer
// completes only when the lens side is blocked in WaitComplete, turning each
// exchange into a strict rendezvous.
type ShiftRegister struct {
	mu       sync.Mutex
	cond     *sync.Cond
	dir      lens.Direction
	reg      byte
	complete bool
	waiting  bool
	skewed   bool
	resets   uint64
	history  []ClockEvent
}

// NewShiftRegister creates a register in input direction with an empty
// history.
func NewShiftRegister() *ShiftRegister {
	r := &ShiftRegister{dir: lens.DirInput}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// SetDirection selects which side the next exchange carries data toward.
func (r *ShiftRegister) SetDirection(dir lens.Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dir = dir
}

// Direction returns the currently latched direction.
func (r *ShiftRegister) Direction() lens.Direction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir
}

// Store latches a byte into the register and clears any stale completion.
func (r *ShiftRegister) Store(v byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reg = v
	r.complete = false
}

// Load returns the byte currently held in the register.
func (r *ShiftRegister) Load() byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reg
}

// WaitComplete blocks until the body clocks an exchange through the
// register.
func (r *ShiftRegister) WaitComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiting = true
	r.cond.Broadcast()
	for !r.complete {
		r.cond.Wait()
	}
}

// Reset reinitializes the shifter, clearing any clock skew. The lens calls
// it unconditionally mid-session.
func (r *ShiftRegister) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
	r.skewed = false
	r.complete = false
}

// Resets returns how many times the register has been reinitialized.
func (r *ShiftRegister) Resets() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets
}

// Clock performs one byte exchange from the body side. It blocks until the
// lens is waiting in WaitComplete, then stores tx when the register points
// inward and returns the byte the lens had staged.
func (r *ShiftRegister) Clock(tx byte) byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	for !r.waiting {
		r.cond.Wait()
	}
	in, out := tx, r.reg
	if r.skewed {
		// A dropped clock edge leaves the shifter off by one bit in both
		// directions until the hardware is reset.
		in = in<<1 | in>>7
		out = out<<1 | out>>7
	}
	if r.dir == lens.DirInput {
		r.reg = in
	}
	r.history = append(r.history, ClockEvent{Dir: r.dir, In: in, Out: out, Skewed: r.skewed})
	r.complete = true
	r.waiting = false
	r.cond.Broadcast()
	return out
}

// DropClock simulates the body dropping a bus clock edge. Every exchange
// after it is garbled until Reset clears the skew.
func (r *ShiftRegister) DropClock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skewed = true
}

// History returns a copy of every exchange clocked so far, in order.
func (r *ShiftRegister) History() []ClockEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ClockEvent, len(r.history))
	copy(out, r.history)
	return out
}
