package lens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPayloads(t *testing.T) {
	p := DefaultPayloads()

	assert.Len(t, p.Capability, 5)
	assert.Len(t, p.Identity, 21)
	assert.Len(t, p.TruncatedIdentity, 2)
	assert.Len(t, p.KeepAlive, 31)
	assert.Equal(t, p.Identity[:2], p.TruncatedIdentity)
	require.NoError(t, p.Validate(true))
}

func TestPayloadsValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Payloads)
		keepAlive bool
		wantErr   bool
	}{
		{name: "defaults", mutate: func(*Payloads) {}},
		{
			name:    "empty capability",
			mutate:  func(p *Payloads) { p.Capability = nil },
			wantErr: true,
		},
		{
			name:    "oversized identity",
			mutate:  func(p *Payloads) { p.Identity = make([]byte, MaxPayloadLen+1) },
			wantErr: true,
		},
		{
			name:   "missing keep-alive while disabled",
			mutate: func(p *Payloads) { p.KeepAlive = nil },
		},
		{
			name:      "missing keep-alive while enabled",
			mutate:    func(p *Payloads) { p.KeepAlive = nil },
			keepAlive: true,
			wantErr:   true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := DefaultPayloads()
			test.mutate(&p)

			err := p.Validate(test.keepAlive)
			if test.wantErr {
				require.ErrorIs(t, err, ErrInvalidPayload)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNegotiationScript(t *testing.T) {
	script := NegotiationScript(DefaultPayloads(), DefaultIdlePause)
	require.NoError(t, validateScript(script))

	kinds := make([]StepKind, 0, len(script))
	for _, st := range script {
		kinds = append(kinds, st.Kind)
	}
	assert.Equal(t, []StepKind{
		StepAwaitPowerOn,
		StepAckWake,
		StepReadPacket,
		StepHandoff,
		StepPause,
		StepHandoff,
		StepReadByte,
		StepWriteByte,
		StepHandoff,
		StepReadPacket,
		StepWritePacket,
		StepHandoff,
		StepReadPacket,
		StepWritePacket,
		StepHandoff,
		StepResyncClock,
		StepReadPacket,
		StepWritePacket,
		StepHandoff,
		StepReadPacket,
		StepFinalAck,
	}, kinds)

	// The clock resynchronization sits immediately before the fourth
	// handshake read, unconditionally.
	var resyncIdx int
	for i, st := range script {
		if st.Kind == StepResyncClock {
			resyncIdx = i
		}
	}
	assert.Equal(t, "handshake-4", script[resyncIdx+1].Name)

	// Every handshake read expects the fixed block length.
	for _, st := range script {
		if st.Kind == StepReadPacket {
			assert.Equal(t, handshakeLen, st.Count, st.Name)
		}
	}
}

func TestValidateScript(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
		err   error
	}{
		{name: "empty", steps: nil, err: ErrEmptyScript},
		{
			name:  "zero count read",
			steps: []Step{{Kind: StepReadPacket, Name: "bad", Count: 0}},
			err:   ErrInvalidCount,
		},
		{
			name:  "empty write payload",
			steps: []Step{{Kind: StepWritePacket, Name: "bad"}},
			err:   ErrInvalidPayload,
		},
		{
			name:  "multi-byte single write",
			steps: []Step{{Kind: StepWriteByte, Name: "bad", Payload: []byte{1, 2}}},
			err:   ErrInvalidPayload,
		},
		{
			name: "valid",
			steps: []Step{
				{Kind: StepReadPacket, Name: "in", Count: 4},
				{Kind: StepWritePacket, Name: "out", Payload: []byte{0x01}},
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := validateScript(test.steps)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestStepKindString(t *testing.T) {
	assert.Equal(t, "read-packet", StepReadPacket.String())
	assert.Equal(t, "resync-clock", StepResyncClock.String())
	assert.Equal(t, "step(99)", StepKind(99).String())
}

func TestSessionConfigDefaults(t *testing.T) {
	cfg, err := NewSessionConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultSettleDelay, cfg.SettleDelay())
	assert.Equal(t, DefaultWakePulse, cfg.WakePulse())
	assert.Equal(t, DefaultIdlePause, cfg.IdlePause())
	assert.Equal(t, DefaultFinalAckHold, cfg.FinalAckHold())
	assert.False(t, cfg.KeepAlive())
	assert.Len(t, cfg.Script(), 21)
}

func TestSessionConfigOptions(t *testing.T) {
	p := DefaultPayloads()
	p.CommandResponse = 0x7f

	cfg, err := NewSessionConfig(
		WithPayloads(p),
		WithSettleDelay(5*time.Microsecond),
		WithWakePulse(time.Millisecond),
		WithIdlePause(0),
		WithFinalAckHold(0),
		WithKeepAlive(true),
	)
	require.NoError(t, err)

	assert.Equal(t, byte(0x7f), cfg.Payloads().CommandResponse)
	assert.Equal(t, 5*time.Microsecond, cfg.SettleDelay())
	assert.Equal(t, time.Millisecond, cfg.WakePulse())
	assert.True(t, cfg.KeepAlive())

	// The generated script carries the configured response byte.
	var found bool
	for _, st := range cfg.Script() {
		if st.Kind == StepWriteByte {
			found = true
			assert.Equal(t, []byte{0x7f}, st.Payload)
		}
	}
	assert.True(t, found)
}

func TestSessionConfigRejects(t *testing.T) {
	_, err := NewSessionConfig(WithSettleDelay(time.Second))
	require.Error(t, err)

	_, err = NewSessionConfig(WithWakePulse(-time.Millisecond))
	require.Error(t, err)

	_, err = NewSessionConfig(WithSleepFunc(nil))
	require.Error(t, err)

	_, err = NewSessionConfig(WithLogger(nil))
	require.Error(t, err)

	_, err = NewSessionConfig(WithScript([]Step{{Kind: StepReadPacket, Count: 0}}))
	require.ErrorIs(t, err, ErrInvalidCount)

	bad := DefaultPayloads()
	bad.Capability = nil
	_, err = NewSessionConfig(WithPayloads(bad))
	require.ErrorIs(t, err, ErrInvalidPayload)

	bad = DefaultPayloads()
	bad.KeepAlive = nil
	_, err = NewSessionConfig(WithPayloads(bad), WithKeepAlive(true))
	require.ErrorIs(t, err, ErrInvalidPayload)
}
