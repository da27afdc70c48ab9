// Package profile loads lens payload and timing profiles from TOML files.
//
// A profile describes one emulated lens: the bytes it reports for
// capability and identity, and the timing of its handshake. Values absent
// from the file keep the canonical defaults, so a profile only needs to
// name what it changes.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/boykhocnhe/microfourthirds/lens"
)

var (
	ErrByteRange   = errors.New("profile: value out of byte range")
	ErrBadDuration = errors.New("profile: bad duration")
)

// Profile is a fully resolved lens profile.
type Profile struct {
	Name string

	CommandResponse   byte
	Capability        []byte
	Identity          []byte
	TruncatedIdentity []byte
	KeepAlive         []byte

	KeepAliveEnabled bool

	SettleDelay  time.Duration
	WakePulse    time.Duration
	IdlePause    time.Duration
	FinalAckHold time.Duration
}

// Default returns the profile of the canonical device.
func Default() Profile {
	p := lens.DefaultPayloads()

	return Profile{
		Name:              "default",
		CommandResponse:   p.CommandResponse,
		Capability:        p.Capability,
		Identity:          p.Identity,
		TruncatedIdentity: p.TruncatedIdentity,
		KeepAlive:         p.KeepAlive,
		SettleDelay:       lens.DefaultSettleDelay,
		WakePulse:         lens.DefaultWakePulse,
		IdlePause:         lens.DefaultIdlePause,
		FinalAckHold:      lens.DefaultFinalAckHold,
	}
}

// Payloads converts the profile into the session payload table.
func (p *Profile) Payloads() lens.Payloads {
	return lens.Payloads{
		CommandResponse:   p.CommandResponse,
		Capability:        p.Capability,
		Identity:          p.Identity,
		TruncatedIdentity: p.TruncatedIdentity,
		KeepAlive:         p.KeepAlive,
	}
}

// Options converts the profile into session configuration options.
func (p *Profile) Options() []lens.SessionOption {
	return []lens.SessionOption{
		lens.WithPayloads(p.Payloads()),
		lens.WithSettleDelay(p.SettleDelay),
		lens.WithWakePulse(p.WakePulse),
		lens.WithIdlePause(p.IdlePause),
		lens.WithFinalAckHold(p.FinalAckHold),
		lens.WithKeepAlive(p.KeepAliveEnabled),
	}
}

// profile.toml key mapping. Byte values are TOML integers, durations are
// strings in time.ParseDuration syntax.
type fileProfile struct {
	Name              string `toml:"name"`
	CommandResponse   int    `toml:"command_response"`
	Capability        []int  `toml:"capability"`
	Identity          []int  `toml:"identity"`
	TruncatedIdentity []int  `toml:"truncated_identity"`
	KeepAlive         []int  `toml:"keep_alive"`
	KeepAliveEnabled  bool   `toml:"keep_alive_enabled"`
	SettleDelay       string `toml:"settle_delay"`
	WakePulse         string `toml:"wake_pulse"`
	IdlePause         string `toml:"idle_pause"`
	FinalAckHold      string `toml:"final_ack_hold"`
}

// Load reads a profile file and overlays it on the defaults.
func Load(path string) (Profile, error) {
	var raw fileProfile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Profile{}, fmt.Errorf("load lens profile: %w", err)
	}

	return resolve(raw, meta)
}

// Parse decodes a profile from TOML source and overlays it on the defaults.
func Parse(data string) (Profile, error) {
	var raw fileProfile
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Profile{}, fmt.Errorf("parse lens profile: %w", err)
	}

	return resolve(raw, meta)
}

func resolve(raw fileProfile, meta toml.MetaData) (Profile, error) {
	p := Default()

	if meta.IsDefined("name") {
		p.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("command_response") {
		b, err := toByte("command_response", raw.CommandResponse)
		if err != nil {
			return Profile{}, err
		}
		p.CommandResponse = b
	}
	if meta.IsDefined("capability") {
		bytes, err := toBytes("capability", raw.Capability)
		if err != nil {
			return Profile{}, err
		}
		p.Capability = bytes
	}
	if meta.IsDefined("identity") {
		bytes, err := toBytes("identity", raw.Identity)
		if err != nil {
			return Profile{}, err
		}
		p.Identity = bytes
		if !meta.IsDefined("truncated_identity") && len(bytes) >= 2 {
			// The short fragment repeats the head of the identity.
			p.TruncatedIdentity = bytes[:2]
		}
	}
	if meta.IsDefined("truncated_identity") {
		bytes, err := toBytes("truncated_identity", raw.TruncatedIdentity)
		if err != nil {
			return Profile{}, err
		}
		p.TruncatedIdentity = bytes
	}
	if meta.IsDefined("keep_alive") {
		bytes, err := toBytes("keep_alive", raw.KeepAlive)
		if err != nil {
			return Profile{}, err
		}
		p.KeepAlive = bytes
	}
	if meta.IsDefined("keep_alive_enabled") {
		p.KeepAliveEnabled = raw.KeepAliveEnabled
	}

	durations := []struct {
		key     string
		defined bool
		raw     string
		dst     *time.Duration
	}{
		{"settle_delay", meta.IsDefined("settle_delay"), raw.SettleDelay, &p.SettleDelay},
		{"wake_pulse", meta.IsDefined("wake_pulse"), raw.WakePulse, &p.WakePulse},
		{"idle_pause", meta.IsDefined("idle_pause"), raw.IdlePause, &p.IdlePause},
		{"final_ack_hold", meta.IsDefined("final_ack_hold"), raw.FinalAckHold, &p.FinalAckHold},
	}
	for _, d := range durations {
		if !d.defined {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Profile{}, fmt.Errorf("%w: %s: %v", ErrBadDuration, d.key, err)
		}
		*d.dst = v
	}

	payloads := p.Payloads()
	if err := payloads.Validate(p.KeepAliveEnabled); err != nil {
		return Profile{}, fmt.Errorf("lens profile %q: %w", p.Name, err)
	}

	return p, nil
}

func toByte(key string, v int) (byte, error) {
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("%w: %s = %d", ErrByteRange, key, v)
	}

	return byte(v), nil
}

func toBytes(key string, vs []int) ([]byte, error) {
	out := make([]byte, len(vs))
	for i, v := range vs {
		b, err := toByte(fmt.Sprintf("%s[%d]", key, i), v)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}

	return out, nil
}
