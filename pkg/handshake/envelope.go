package handshake

import (
	"bytes"
	"encoding/binary"

	"github.com/pzverkov/qstp-go/internal/constants"
	qerrors "github.com/pzverkov/qstp-go/internal/errors"
)

// Envelope is the byte-exact serialized handshake record exchanged between
// peers over a control channel.
//
// Wire layout (all multi-byte integers little-endian):
//
//	magic "PQC1" (4) | version (1) | kem level (1) | dsa level (1) |
//	threshold t (1) | threshold n (1) | reserved (1) |
//	kem key id (32) | dsa key id (32) |
//	kem created-at (8) | kem expires-at (8) |
//	five u16 section lengths |
//	ciphertext | shared secret | signature | kem pubkey | dsa pubkey
//
// The shared-secret section means a serialized envelope is as sensitive as
// the session keys themselves; it must only travel over an already-secured
// control channel.
type Envelope struct {
	Version   uint8
	KEMLevel  constants.SecurityLevel
	DSALevel  constants.SecurityLevel
	Threshold ThresholdPolicy

	KEMKeyID     [constants.KeyIDSize]byte
	SigningKeyID [constants.KeyIDSize]byte
	CreatedAt    uint64
	ExpiresAt    uint64

	Ciphertext       []byte
	SharedSecret     []byte
	Signature        []byte
	KEMPublicKey     []byte
	SigningPublicKey []byte
}

// EnvelopeFromArtifacts assembles an envelope from composer output.
func EnvelopeFromArtifacts(a *Artifacts) *Envelope {
	return &Envelope{
		Version:          constants.HandshakeVersion,
		KEMLevel:         a.KEMState.Level,
		DSALevel:         a.SigningState.Level,
		Threshold:        a.Threshold,
		KEMKeyID:         a.KEMState.ID,
		SigningKeyID:     a.SigningState.ID,
		CreatedAt:        a.KEMState.CreatedAt,
		ExpiresAt:        a.KEMState.ExpiresAt,
		Ciphertext:       a.Ciphertext,
		SharedSecret:     a.SharedSecret,
		Signature:        a.Signature,
		KEMPublicKey:     a.KEMState.PublicKey,
		SigningPublicKey: a.SigningState.PublicKey,
	}
}

// EncodedSize returns the exact serialized size of the envelope.
func (e *Envelope) EncodedSize() int {
	return constants.EnvelopeHeaderSize +
		len(e.Ciphertext) +
		len(e.SharedSecret) +
		len(e.Signature) +
		len(e.KEMPublicKey) +
		len(e.SigningPublicKey)
}

// EncodeTo serializes the envelope into out, returning the bytes written.
// Fails with ErrBufferTooSmall when out is short and ErrSectionTooLarge
// when any section exceeds the u16 length field.
func (e *Envelope) EncodeTo(out []byte) (int, error) {
	sections := [5][]byte{
		e.Ciphertext, e.SharedSecret, e.Signature, e.KEMPublicKey, e.SigningPublicKey,
	}
	for _, s := range sections {
		if len(s) > constants.MaxEnvelopeSectionSize {
			return 0, qerrors.ErrSectionTooLarge
		}
	}
	if len(out) < e.EncodedSize() {
		return 0, qerrors.ErrBufferTooSmall
	}

	offset := 0
	offset += copy(out[offset:], constants.HandshakeMagic)
	out[offset] = e.Version
	offset++
	out[offset] = uint8(e.KEMLevel)
	offset++
	out[offset] = uint8(e.DSALevel)
	offset++
	out[offset] = e.Threshold.T
	offset++
	out[offset] = e.Threshold.N
	offset++
	out[offset] = 0 // reserved
	offset++

	offset += copy(out[offset:], e.KEMKeyID[:])
	offset += copy(out[offset:], e.SigningKeyID[:])

	binary.LittleEndian.PutUint64(out[offset:], e.CreatedAt)
	offset += 8
	binary.LittleEndian.PutUint64(out[offset:], e.ExpiresAt)
	offset += 8

	for _, s := range sections {
		binary.LittleEndian.PutUint16(out[offset:], uint16(len(s)))
		offset += 2
	}

	for _, s := range sections {
		offset += copy(out[offset:], s)
	}

	return offset, nil
}

// Encode serializes the envelope into a freshly allocated buffer.
func (e *Envelope) Encode() ([]byte, error) {
	out := make([]byte, e.EncodedSize())
	n, err := e.EncodeTo(out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// DecodeEnvelope parses a serialized envelope, validating the magic,
// version, and section lengths against the actual payload size.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) < constants.EnvelopeHeaderSize {
		return nil, qerrors.ErrInvalidEnvelope
	}
	if !bytes.Equal(data[:4], []byte(constants.HandshakeMagic)) {
		return nil, qerrors.ErrInvalidEnvelope
	}

	e := &Envelope{}
	offset := 4

	e.Version = data[offset]
	offset++
	if e.Version != constants.HandshakeVersion {
		return nil, qerrors.ErrInvalidEnvelope
	}

	e.KEMLevel = constants.SecurityLevel(data[offset])
	offset++
	e.DSALevel = constants.SecurityLevel(data[offset])
	offset++
	e.Threshold.T = data[offset]
	offset++
	e.Threshold.N = data[offset]
	offset++
	if data[offset] != 0 { // reserved
		return nil, qerrors.ErrInvalidEnvelope
	}
	offset++

	offset += copy(e.KEMKeyID[:], data[offset:])
	offset += copy(e.SigningKeyID[:], data[offset:])

	e.CreatedAt = binary.LittleEndian.Uint64(data[offset:])
	offset += 8
	e.ExpiresAt = binary.LittleEndian.Uint64(data[offset:])
	offset += 8

	var lengths [5]int
	for i := range lengths {
		lengths[i] = int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
	}

	total := offset
	for _, l := range lengths {
		total += l
	}
	if len(data) != total {
		return nil, qerrors.ErrInvalidEnvelope
	}

	sections := make([][]byte, 5)
	for i, l := range lengths {
		sections[i] = append([]byte(nil), data[offset:offset+l]...)
		offset += l
	}

	e.Ciphertext = sections[0]
	e.SharedSecret = sections[1]
	e.Signature = sections[2]
	e.KEMPublicKey = sections[3]
	e.SigningPublicKey = sections[4]

	return e, nil
}
