package lens

import "errors"

// Sentinel errors for configuration and packet tooling.
//
// The protocol waits themselves never return errors: they block forever
// rather than time out, so the only errors this package can produce happen
// before the engine touches the bus.
var (
	ErrMissingPin     = errors.New("lens: pin set is incomplete")
	ErrInvalidPayload = errors.New("lens: payload size out of range")
	ErrInvalidCount   = errors.New("lens: packet byte count must be at least 1")
	ErrEmptyScript    = errors.New("lens: script has no steps")
	ErrSessionReused  = errors.New("lens: session has already run")

	// Packet decode errors. These are produced by ParsePacket, which exists
	// for peer-side tooling; the engine itself never verifies a checksum
	// supplied by the body.
	ErrTruncatedPacket  = errors.New("lens: truncated packet")
	ErrChecksumMismatch = errors.New("lens: checksum mismatch")
)
