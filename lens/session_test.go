package lens_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/boykhocnhe/microfourthirds/lens"
	"github.com/boykhocnhe/microfourthirds/logger"
	"github.com/boykhocnhe/microfourthirds/simbus"
)

var testHandshakes = [][]byte{
	{0xb0, 0xf1, 0x04, 0x00},
	{0xb0, 0xf2, 0x00, 0x00},
	{0xb0, 0xf3, 0x00, 0x00},
	{0xb0, 0xf4, 0x00, 0x00},
	{0xb0, 0xf5, 0x00, 0x00},
}

func noSleep(time.Duration) {}

func newTestSession(t *testing.T, bus *simbus.Bus, opts ...lens.SessionOption) *lens.Session {
	t.Helper()
	opts = append([]lens.SessionOption{lens.WithSleepFunc(noSleep)}, opts...)
	cfg, err := lens.NewSessionConfig(opts...)
	require.NoError(t, err)

	session, err := lens.NewSession(bus.Pins(), cfg)
	require.NoError(t, err)

	return session
}

// runSession starts the session and returns a channel carrying Run's error.
func runSession(ctx context.Context, session *lens.Session) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- session.Run(ctx) }()

	return errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not return")
		return nil
	}
}

func TestNegotiation(t *testing.T) {
	bus := simbus.New()
	session := newTestSession(t, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := runSession(ctx, session)

	body := simbus.NewBody(bus)
	res, err := body.RunNegotiation(testHandshakes, 0xb8)
	require.NoError(t, err)

	// The lens answered every handshake with the block's additive checksum.
	require.Len(t, res.HandshakeChecksums, 5)
	for i, cs := range res.HandshakeChecksums {
		assert.Equal(t, lens.Checksum(testHandshakes[i]), cs, "handshake %d", i+1)
	}

	payloads := lens.DefaultPayloads()
	assert.Equal(t, payloads.CommandResponse, res.CommandResponse)
	assert.Equal(t, payloads.Capability, res.Capability.Payload)
	assert.Equal(t, payloads.Identity, res.Identity.Payload)
	assert.Equal(t, payloads.TruncatedIdentity, res.TruncatedIdentity.Payload)

	assert.Eventually(t, session.Completed, time.Second, 5*time.Millisecond)

	// The clock reset ran exactly once, dropout or not.
	assert.Equal(t, uint64(1), bus.Shift.Resets())
	assert.Equal(t, uint64(1), session.Metrics().ClockResetCount.Load())

	cancel()
	require.ErrorIs(t, waitErr(t, errCh), context.Canceled)
}

func TestNegotiationTrace(t *testing.T) {
	bus := simbus.New()
	session := newTestSession(t, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := runSession(ctx, session)

	body := simbus.NewBody(bus)
	_, err := body.RunNegotiation(testHandshakes, 0xb8)
	require.NoError(t, err)
	cancel()
	require.ErrorIs(t, waitErr(t, errCh), context.Canceled)

	trace := session.Trace().Snapshot()
	require.Equal(t, session.Trace().Len(), len(trace))

	steps := make([]string, 0, len(trace))
	for _, e := range trace {
		steps = append(steps, e.Step)
	}
	assert.Equal(t, []string{
		"handshake-1",
		"read-command", "command-response",
		"handshake-2", "capability",
		"handshake-3", "identity",
		"handshake-4", "truncated-identity",
		"handshake-5",
	}, steps)

	// Inbound entries carry what the body sent.
	assert.Equal(t, testHandshakes[0], trace[0].Payload)
	assert.Equal(t, []byte{0xb8}, trace[1].Payload)
	assert.True(t, trace[0].Framed)
	assert.False(t, trace[1].Framed)
}

func TestNegotiationByteAccounting(t *testing.T) {
	bus := simbus.New()
	session := newTestSession(t, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := runSession(ctx, session)

	body := simbus.NewBody(bus)
	_, err := body.RunNegotiation(testHandshakes, 0xb8)
	require.NoError(t, err)
	cancel()
	require.ErrorIs(t, waitErr(t, errCh), context.Canceled)

	m := session.Metrics()
	// 5 handshakes of 4 bytes plus the command byte in; 5 checksum replies,
	// the response byte, and 3 framed packets (payload plus count and
	// checksum) out.
	assert.Equal(t, uint64(21), m.ByteRecvCount.Load())
	assert.Equal(t, uint64(5+1+7+23+4), m.ByteSendCount.Load())
	assert.Equal(t, uint64(5), m.PacketRecvCount.Load())
	assert.Equal(t, uint64(3), m.PacketSendCount.Load())
	assert.Equal(t, uint64(21), m.StepCount.Load())
	assert.Equal(t, uint64(0), m.KeepAliveCount.Load())

	// Every exchange on the bus ran in the direction the script demanded.
	history := bus.Shift.History()
	require.Len(t, history, 21+5+1+7+23+4)
	var in, out int
	for _, ev := range history {
		if ev.Dir == lens.DirInput {
			in++
		} else {
			out++
		}
		assert.False(t, ev.Skewed)
	}
	assert.Equal(t, 21, in)
	assert.Equal(t, 40, out)
}

func TestNegotiationSurvivesClockDropout(t *testing.T) {
	bus := simbus.New()
	session := newTestSession(t, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := runSession(ctx, session)

	body := simbus.NewBody(bus)
	body.DropClockBeforeHandshake4 = true
	res, err := body.RunNegotiation(testHandshakes, 0xb8)
	require.NoError(t, err)

	// The scheduled reset cleared the skew before the fourth handshake, so
	// the tail of the negotiation came through intact.
	assert.Equal(t, lens.Checksum(testHandshakes[3]), res.HandshakeChecksums[3])
	assert.Equal(t, lens.DefaultPayloads().TruncatedIdentity, res.TruncatedIdentity.Payload)
	assert.Eventually(t, session.Completed, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, waitErr(t, errCh), context.Canceled)
}

func TestUnresponsiveBodyHangs(t *testing.T) {
	bus := simbus.New()
	session := newTestSession(t, bus)
	errCh := runSession(context.Background(), session)

	// Power comes on but the body never answers the wake pulse. The
	// session must block in place, not fail.
	bus.Power.Set(lens.High)

	assert.Never(t, func() bool {
		select {
		case <-errCh:
			return true
		default:
			return session.Completed()
		}
	}, 100*time.Millisecond, 10*time.Millisecond)

	// Wake-up got as far as announcing itself.
	assert.LessOrEqual(t, session.Metrics().StepCount.Load(), uint64(2))
}

func TestKeepAlive(t *testing.T) {
	bus := simbus.New()
	session := newTestSession(t, bus, lens.WithKeepAlive(true))
	runSession(context.Background(), session)

	body := simbus.NewBody(bus)
	_, err := body.RunNegotiation(testHandshakes, 0xb8)
	require.NoError(t, err)
	require.Eventually(t, session.Completed, time.Second, 5*time.Millisecond)

	poll := []byte{0xb0, 0xf6, 0x00, 0x00}
	for i := 0; i < 3; i++ {
		cs, pkt, kerr := body.KeepAlive(poll)
		require.NoError(t, kerr)
		assert.Equal(t, lens.Checksum(poll), cs)
		assert.Equal(t, lens.DefaultPayloads().KeepAlive, pkt.Payload)
	}

	assert.Eventually(t, func() bool {
		return session.Metrics().KeepAliveCount.Load() == 3
	}, time.Second, 5*time.Millisecond)
}

func TestKeepAliveDisabledByDefault(t *testing.T) {
	bus := simbus.New()
	session := newTestSession(t, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := runSession(ctx, session)

	body := simbus.NewBody(bus)
	_, err := body.RunNegotiation(testHandshakes, 0xb8)
	require.NoError(t, err)

	// Idle performs no bus activity with keep-alive off.
	busLen := len(bus.Shift.History())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, busLen, len(bus.Shift.History()))
	assert.Equal(t, uint64(0), session.Metrics().KeepAliveCount.Load())

	cancel()
	require.ErrorIs(t, waitErr(t, errCh), context.Canceled)
}

func TestSessionLogsSteps(t *testing.T) {
	ml := logger.NewMockLogger()
	ml.On("Debug", mock.Anything, mock.Anything).Return()

	bus := simbus.New()
	cfg, err := lens.NewSessionConfig(
		lens.WithSleepFunc(noSleep),
		lens.WithLogger(ml),
		// A pause-only script completes without a peer.
		lens.WithScript([]lens.Step{{Kind: lens.StepPause, Name: "settle"}}),
	)
	require.NoError(t, err)
	session, err := lens.NewSession(bus.Pins(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runSession(ctx, session)
	require.Eventually(t, session.Completed, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, waitErr(t, errCh), context.Canceled)

	ml.AssertCalled(t, "Debug", "lens: step", mock.Anything)
}

func TestSessionRunOnce(t *testing.T) {
	bus := simbus.New()
	session := newTestSession(t, bus)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := session.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, session.Run(ctx), lens.ErrSessionReused)
}

func TestNewSessionRejectsMissingPins(t *testing.T) {
	_, err := lens.NewSession(lens.Pins{}, nil)
	require.ErrorIs(t, err, lens.ErrMissingPin)
}
