package lens

import (
	"errors"
	"fmt"
	"time"

	"github.com/boykhocnhe/microfourthirds/logger"
)

// Default timing values, measured from the reference device.
const (
	// DefaultSettleDelay is the settling delay before any level wait.
	DefaultSettleDelay = 2 * time.Microsecond
	// DefaultWakePulse is the width of the wake-up acknowledgment pulse.
	DefaultWakePulse = 10 * time.Millisecond
	// DefaultIdlePause is the mid-session pause after the first handshake.
	DefaultIdlePause = 500 * time.Millisecond
	// DefaultFinalAckHold is the closing acknowledgment hold.
	DefaultFinalAckHold = 10 * time.Millisecond
)

// MaxSettleDelay bounds the settling delay; anything longer indicates a
// misconfiguration rather than line bounce.
const MaxSettleDelay = 10 * time.Millisecond

// SessionConfig holds all configuration for one negotiation session.
type SessionConfig struct {
	payloads Payloads

	settleDelay  time.Duration
	wakePulse    time.Duration
	idlePause    time.Duration
	finalAckHold time.Duration

	// keepAlive enables the idle keep-alive exchange. The reference device
	// never runs it; it exists for experimentation only.
	keepAlive bool

	// script overrides the default negotiation script when non-nil.
	script []Step

	// sleep performs the fixed protocol delays. Tests substitute a
	// deterministic implementation.
	sleep func(time.Duration)

	logger logger.Logger
}

// NewSessionConfig creates a session configuration with the canonical
// payload table and timing, then applies opts in order.
func NewSessionConfig(opts ...SessionOption) (*SessionConfig, error) {
	cfg := &SessionConfig{
		payloads:     DefaultPayloads(),
		settleDelay:  DefaultSettleDelay,
		wakePulse:    DefaultWakePulse,
		idlePause:    DefaultIdlePause,
		finalAckHold: DefaultFinalAckHold,
		sleep:        time.Sleep,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.payloads.Validate(cfg.keepAlive); err != nil {
		return nil, err
	}

	if cfg.script == nil {
		cfg.script = NegotiationScript(cfg.payloads, cfg.idlePause)
	}

	if err := validateScript(cfg.script); err != nil {
		return nil, err
	}

	return cfg, nil
}

// --- Getters ---

// Payloads returns the configured payload table.
func (cfg *SessionConfig) Payloads() Payloads { return cfg.payloads }

// SettleDelay returns the settling delay applied before level waits.
func (cfg *SessionConfig) SettleDelay() time.Duration { return cfg.settleDelay }

// WakePulse returns the wake-up pulse width.
func (cfg *SessionConfig) WakePulse() time.Duration { return cfg.wakePulse }

// IdlePause returns the mid-session pause duration.
func (cfg *SessionConfig) IdlePause() time.Duration { return cfg.idlePause }

// FinalAckHold returns the closing acknowledgment hold duration.
func (cfg *SessionConfig) FinalAckHold() time.Duration { return cfg.finalAckHold }

// KeepAlive returns whether the idle keep-alive exchange is enabled.
func (cfg *SessionConfig) KeepAlive() bool { return cfg.keepAlive }

// Script returns the step sequence the session will execute.
func (cfg *SessionConfig) Script() []Step { return cfg.script }

// GetLogger returns the configured logger.
func (cfg *SessionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- SessionOption ---

// SessionOption is a functional option for configuring a SessionConfig.
type SessionOption interface {
	apply(*SessionConfig) error
}

type sessionOptFunc func(*SessionConfig) error

func (f sessionOptFunc) apply(cfg *SessionConfig) error { return f(cfg) }

// WithPayloads sets the payload table the session transmits.
func WithPayloads(p Payloads) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		cfg.payloads = p
		return nil
	})
}

// WithSettleDelay sets the settling delay inserted before level waits.
func WithSettleDelay(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < 0 || d > MaxSettleDelay {
			return fmt.Errorf("lens: settle delay %v out of range [0, %v]", d, MaxSettleDelay)
		}
		cfg.settleDelay = d

		return nil
	})
}

// WithWakePulse sets the wake-up acknowledgment pulse width.
func WithWakePulse(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < 0 {
			return errors.New("lens: wake pulse must not be negative")
		}
		cfg.wakePulse = d

		return nil
	})
}

// WithIdlePause sets the mid-session pause after the first handshake.
func WithIdlePause(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < 0 {
			return errors.New("lens: idle pause must not be negative")
		}
		cfg.idlePause = d

		return nil
	})
}

// WithFinalAckHold sets the closing acknowledgment hold duration.
func WithFinalAckHold(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < 0 {
			return errors.New("lens: final ack hold must not be negative")
		}
		cfg.finalAckHold = d

		return nil
	})
}

// WithKeepAlive enables or disables the idle keep-alive exchange. Disabled
// by default; the reference behavior never runs it.
func WithKeepAlive(enabled bool) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		cfg.keepAlive = enabled

		return nil
	})
}

// WithScript replaces the default negotiation script. The steps are
// validated when the configuration is built.
func WithScript(steps []Step) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		cfg.script = steps

		return nil
	})
}

// WithSleepFunc replaces the sleep function used for protocol delays.
// Intended for deterministic tests.
func WithSleepFunc(sleep func(time.Duration)) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if sleep == nil {
			return errors.New("lens: sleep function must not be nil")
		}
		cfg.sleep = sleep

		return nil
	})
}

// WithLogger sets the logger for the session.
func WithLogger(l logger.Logger) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if l == nil {
			return errors.New("lens: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
