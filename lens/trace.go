package lens

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// ExchangeDir is the direction of one traced transfer.
type ExchangeDir int

const (
	// Inbound transfers flow body to lens.
	Inbound ExchangeDir = iota
	// Outbound transfers flow lens to body.
	Outbound
)

func (d ExchangeDir) String() string {
	if d == Outbound {
		return "out"
	}

	return "in"
}

// Exchange records one transfer performed by the session: a framed packet or
// a single unframed byte.
type Exchange struct {
	// Step is the name of the script step that performed the transfer.
	Step string
	// Dir is the transfer direction.
	Dir ExchangeDir
	// Payload is a copy of the transferred bytes (without count prefix or
	// checksum trailer for framed transfers).
	Payload []byte
	// Checksum is the checksum byte that crossed the wire. Zero for
	// unframed single-byte transfers.
	Checksum byte
	// Framed reports whether the transfer used packet framing.
	Framed bool
}

// Trace accumulates the exchanges of a session in order. It is safe to read
// from other goroutines while the session is running, so observers can
// follow a negotiation live.
type Trace struct {
	next    atomic.Uint64
	entries *xsync.MapOf[uint64, *Exchange]
}

func newTrace() *Trace {
	return &Trace{
		entries: xsync.NewMapOf[uint64, *Exchange](),
	}
}

func (t *Trace) record(e *Exchange) {
	seq := t.next.Add(1) - 1
	t.entries.Store(seq, e)
}

// Len returns the number of exchanges recorded so far.
func (t *Trace) Len() int {
	return int(t.next.Load())
}

// Snapshot returns a copy of the recorded exchanges in wire order.
func (t *Trace) Snapshot() []*Exchange {
	n := t.next.Load()
	out := make([]*Exchange, 0, n)

	for i := uint64(0); i < n; i++ {
		e, ok := t.entries.Load(i)
		if !ok {
			// Entry i is being stored concurrently; everything after it is
			// newer, so stop here.
			break
		}
		out = append(out, e)
	}

	return out
}
