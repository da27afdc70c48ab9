package lens

import (
	"context"
	"sync/atomic"

	"github.com/boykhocnhe/microfourthirds/logger"
)

// Session executes the fixed power-on and identify negotiation against the
// body, then idles forever.
//
// A Session runs exactly once. It is single-threaded and fully cooperative:
// every wait blocks in lockstep with the body's clock and signaling, with no
// timeout and no retry. The context passed to Run is consulted only between
// steps; an in-flight wait cannot be cancelled, matching the emulated
// device's hang-forever behavior toward an unresponsive peer.
type Session struct {
	cfg    *SessionConfig
	logger logger.Logger
	pins   Pins

	sync      *edgeSync
	transport *byteTransport
	framer    *packetFramer

	metrics   SessionMetrics
	trace     *Trace
	started   atomic.Bool
	completed atomic.Bool
}

// NewSession creates a session over the given pins. A nil cfg uses the
// canonical defaults.
func NewSession(pins Pins, cfg *SessionConfig) (*Session, error) {
	if err := pins.validate(); err != nil {
		return nil, err
	}

	if cfg == nil {
		var err error
		cfg, err = NewSessionConfig()
		if err != nil {
			return nil, err
		}
	}

	s := &Session{
		cfg:    cfg,
		logger: cfg.logger,
		pins:   pins,
		trace:  newTrace(),
	}

	s.sync = newEdgeSync(pins.BodyAck, cfg.settleDelay, cfg.sleep)
	s.transport = newByteTransport(pins.Bus, &s.metrics)
	s.framer = newPacketFramer(s.transport, s.sync, pins.LensAck, &s.metrics)

	return s, nil
}

// Metrics returns the session's counters. Safe to read while Run is active.
func (s *Session) Metrics() *SessionMetrics {
	return &s.metrics
}

// Trace returns the exchange trace. Safe to read while Run is active.
func (s *Session) Trace() *Trace {
	return s.trace
}

// Completed reports whether the negotiation script has finished and the
// session is idling.
func (s *Session) Completed() bool {
	return s.completed.Load()
}

// Run executes the negotiation script, then idles until ctx is cancelled.
//
// When keep-alive is disabled (the reference behavior) the idle state
// performs no further bus activity. Run returns ctx.Err() once cancelled,
// or ErrSessionReused if called a second time.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSessionReused
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for i := range s.cfg.script {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		st := &s.cfg.script[i]
		s.logger.Debug("lens: step", "index", i, "kind", st.Kind.String(), "name", st.Name)

		s.runStep(st)
		s.metrics.incStepCount()
	}

	s.completed.Store(true)
	s.logger.Debug("lens: negotiation complete",
		"steps", s.metrics.StepCount.Load(),
		"keepAlive", s.cfg.keepAlive)

	return s.idle(ctx)
}

func (s *Session) runStep(st *Step) {
	switch st.Kind {
	case StepAwaitPowerOn:
		s.pins.Power.WaitLevel(High)
		s.sync.waitHigh()

	case StepAckWake:
		// Announce wake-up, then signal ready once the body answers.
		s.pins.LensAck.Set(High)
		s.cfg.sleep(s.cfg.wakePulse)
		s.pins.LensAck.Set(Low)
		s.sync.waitRise()
		s.pins.LensAck.Set(High)

	case StepReadPacket:
		pkt := s.framer.readPacket(st.Count)
		s.trace.record(&Exchange{
			Step: st.Name, Dir: Inbound,
			Payload: pkt.Payload, Checksum: pkt.Checksum, Framed: true,
		})

	case StepWritePacket:
		pkt := s.framer.writePacket(st.Payload)
		s.trace.record(&Exchange{
			Step: st.Name, Dir: Outbound,
			Payload: pkt.Payload, Checksum: pkt.Checksum, Framed: true,
		})

	case StepReadByte:
		b := s.transport.readByte()
		s.framer.pulseAck()
		s.trace.record(&Exchange{Step: st.Name, Dir: Inbound, Payload: []byte{b}})

	case StepWriteByte:
		s.transport.writeByte(st.Payload[0])
		s.trace.record(&Exchange{Step: st.Name, Dir: Outbound, Payload: []byte{st.Payload[0]}})

	case StepHandoff:
		s.handoff(st.Shape)

	case StepPause:
		s.cfg.sleep(st.Delay)

	case StepResyncClock:
		s.pins.Bus.Reset()
		s.metrics.incClockResetCount()

	case StepFinalAck:
		s.sync.waitLow()
		s.pins.LensAck.Set(Low)
		s.cfg.sleep(s.cfg.finalAckHold)
		s.pins.LensAck.Set(High)
	}
}

// handoff performs the scripted acknowledgment dance that transfers line
// control between exchanges.
func (s *Session) handoff(shape HandoffShape) {
	ack := s.pins.LensAck

	switch shape {
	case ShapeFallRise:
		s.sync.waitFall()
		ack.Set(Low)
		s.sync.waitRise()
		ack.Set(High)

	case ShapeLeadAck:
		ack.Set(Low)
		s.sync.waitLow()
		ack.Set(High)
		s.sync.waitRise()

	case ShapeLowRise:
		s.sync.waitLow()
		ack.Set(Low)
		s.sync.waitRise()
		ack.Set(High)

	case ShapeLowHigh:
		s.sync.waitLow()
		ack.Set(Low)
		s.sync.waitHigh()
		ack.Set(High)
	}
}

// idle is the terminal state. With keep-alive disabled the session performs
// no further bus activity; with it enabled, the keep-alive exchange repeats
// until ctx is cancelled.
func (s *Session) idle(ctx context.Context) error {
	if !s.cfg.keepAlive {
		<-ctx.Done()

		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.keepAliveExchange()
	}
}

// keepAliveExchange performs one idle exchange: a handshake read followed by
// the keep-alive payload.
func (s *Session) keepAliveExchange() {
	in := s.framer.readPacket(handshakeLen)
	s.trace.record(&Exchange{
		Step: "keep-alive", Dir: Inbound,
		Payload: in.Payload, Checksum: in.Checksum, Framed: true,
	})

	out := s.framer.writePacket(s.cfg.payloads.KeepAlive)
	s.trace.record(&Exchange{
		Step: "keep-alive", Dir: Outbound,
		Payload: out.Payload, Checksum: out.Checksum, Framed: true,
	})

	s.metrics.incKeepAliveCount()
}
