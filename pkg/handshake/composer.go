package handshake

import (
	"strconv"
	"strings"
	"time"

	qerrors "github.com/pzverkov/qstp-go/internal/errors"
)

// Artifacts is the complete output of one handshake execution: everything
// tunnel establishment needs to derive keys, plus the metadata carried in
// the serialized envelope.
type Artifacts struct {
	Threshold    ThresholdPolicy
	KEMState     KEMKeyState
	SigningState SigningKeyState
	Ciphertext   []byte
	SharedSecret []byte
	Signature    []byte
	TimestampMS  uint64
}

// Composer produces handshake artifacts from a raw request. Tunnel
// establishment consumes this interface; RuntimeComposer is the production
// implementation.
type Composer interface {
	BuildArtifacts(request []byte) (*Artifacts, error)
}

// RuntimeComposer drives the full handshake flow against a KeyManager and
// SignatureManager:
//
//  1. Rotate the ML-KEM key if its lifetime has elapsed.
//  2. Encapsulate a fresh shared secret to the current key.
//  3. Sign ciphertext || shared secret || request with ML-DSA.
//
// Requests may embed a "ts=<ms>" hint (ampersand-separated query syntax)
// to pin the handshake timestamp; the internal clock stays monotonic
// regardless. Not safe for concurrent use.
type RuntimeComposer struct {
	keys   *KeyManager
	signer *SignatureManager
	lastMS uint64
}

// NewRuntimeComposer wires a composer from an existing key manager and
// signer. The handshake clock starts at the current wall time.
func NewRuntimeComposer(keys *KeyManager, signer *SignatureManager) *RuntimeComposer {
	return &RuntimeComposer{
		keys:   keys,
		signer: signer,
		lastMS: uint64(time.Now().UnixMilli()),
	}
}

// NewDefaultComposer creates a composer with a default key manager and a
// fresh signing identity.
func NewDefaultComposer() (*RuntimeComposer, error) {
	now := uint64(time.Now().UnixMilli())
	signer, err := NewSignatureManager(now)
	if err != nil {
		return nil, err
	}
	return NewRuntimeComposer(DefaultKeyManager(), signer), nil
}

// SetClock resets the handshake clock. Intended for tests and deterministic
// replay; subsequent handshakes advance monotonically from nowMS.
func (c *RuntimeComposer) SetClock(nowMS uint64) {
	c.lastMS = nowMS
}

// KeyManager exposes the underlying key manager, for hosts that need
// decapsulation or rotation introspection.
func (c *RuntimeComposer) KeyManager() *KeyManager {
	return c.keys
}

// BuildArtifacts executes the handshake flow for one request.
func (c *RuntimeComposer) BuildArtifacts(request []byte) (*Artifacts, error) {
	if len(request) == 0 {
		return nil, qerrors.ErrEmptyRequest
	}

	nowMS := c.advanceTime(ParseTimestampHint(request))

	if _, err := c.keys.RotateIfNeeded(nowMS); err != nil {
		return nil, err
	}

	kemState, ciphertext, sharedSecret, err := c.keys.EncapsulateForCurrent()
	if err != nil {
		return nil, err
	}

	signature := c.signer.SignKEMTranscript(ciphertext, sharedSecret, request)

	return &Artifacts{
		Threshold:    c.keys.ThresholdPolicy(),
		KEMState:     kemState,
		SigningState: c.signer.State(),
		Ciphertext:   ciphertext,
		SharedSecret: sharedSecret,
		Signature:    signature,
		TimestampMS:  nowMS,
	}, nil
}

// Execute runs the handshake and serializes the envelope into response.
// Returns the number of bytes written, or ErrBufferTooSmall when response
// cannot hold the envelope.
func (c *RuntimeComposer) Execute(request, response []byte) (int, error) {
	artifacts, err := c.BuildArtifacts(request)
	if err != nil {
		return 0, err
	}
	return EnvelopeFromArtifacts(artifacts).EncodeTo(response)
}

// advanceTime keeps the handshake clock monotone: a hint ahead of the
// clock jumps it forward, anything else ticks it by one millisecond.
func (c *RuntimeComposer) advanceTime(hint *uint64) uint64 {
	if hint != nil && *hint > c.lastMS {
		c.lastMS = *hint
	} else {
		c.lastMS++
	}
	return c.lastMS
}

// ParseTimestampHint extracts a "ts=<ms>" hint from an ampersand-separated
// request string. Returns nil when no valid hint is present.
func ParseTimestampHint(request []byte) *uint64 {
	for _, part := range strings.Split(string(request), "&") {
		value, ok := strings.CutPrefix(part, "ts=")
		if !ok {
			continue
		}
		parsed, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			continue
		}
		return &parsed
	}
	return nil
}
