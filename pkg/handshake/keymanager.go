// Package handshake implements the QSTP handshake plane: a rotating ML-KEM
// key manager, an ML-DSA transcript signer, the artifact composer consumed
// by tunnel establishment, and the byte-exact binary envelope that carries
// handshake output between peers.
package handshake

import (
	"encoding/binary"

	"github.com/pzverkov/qstp-go/internal/constants"
	qerrors "github.com/pzverkov/qstp-go/internal/errors"
	"github.com/pzverkov/qstp-go/pkg/crypto"
)

// ThresholdPolicy describes the Shamir-style sharing policy applied by the
// host to the KEM secret key. The core only carries the policy in envelope
// metadata; splitting and share storage happen outside.
type ThresholdPolicy struct {
	// T is the minimum number of shares required to recover the secret.
	T uint8

	// N is the total number of provisioned shares.
	N uint8
}

// DefaultThresholdPolicy returns the 3-of-5 default policy.
func DefaultThresholdPolicy() ThresholdPolicy {
	return ThresholdPolicy{T: constants.DefaultThresholdT, N: constants.DefaultThresholdN}
}

// KEMKeyState is the public metadata for one rotating ML-KEM key.
type KEMKeyState struct {
	// ID is the logical identifier, derived from the public key and the
	// creation time.
	ID [constants.KeyIDSize]byte

	// PublicKey is the packed ML-KEM-1024 encapsulation key.
	PublicKey []byte

	// Level is the security level of the key.
	Level constants.SecurityLevel

	// CreatedAt is the installation timestamp in milliseconds.
	CreatedAt uint64

	// ExpiresAt is the timestamp after which the key must rotate.
	ExpiresAt uint64
}

// Rotation reports an executed key rotation.
type Rotation struct {
	Old KEMKeyState
	New KEMKeyState
}

// KeyManager owns the node's rotating ML-KEM key.
//
// The manager holds the decapsulation key in memory; the host is expected
// to Shamir-split and persist it under the ThresholdPolicy. A KeyManager
// is not safe for concurrent use.
type KeyManager struct {
	threshold          ThresholdPolicy
	rotationIntervalMS uint64
	current            *KEMKeyState
	currentPair        *crypto.MLKEMKeyPair
}

// NewKeyManager creates a key manager with the given policy and rotation
// interval. No key is installed until KeygenAndInstall or RotateIfNeeded
// runs.
func NewKeyManager(threshold ThresholdPolicy, rotationIntervalMS uint64) *KeyManager {
	return &KeyManager{
		threshold:          threshold,
		rotationIntervalMS: rotationIntervalMS,
	}
}

// DefaultKeyManager creates a key manager with the default 3-of-5 policy
// and rotation interval.
func DefaultKeyManager() *KeyManager {
	return NewKeyManager(DefaultThresholdPolicy(), constants.DefaultRotationIntervalMS)
}

// ThresholdPolicy returns the sharing policy carried in envelopes.
func (km *KeyManager) ThresholdPolicy() ThresholdPolicy {
	return km.threshold
}

// RotationIntervalMS returns the configured key lifetime.
func (km *KeyManager) RotationIntervalMS() uint64 {
	return km.rotationIntervalMS
}

// KeygenAndInstall generates a fresh ML-KEM key pair and installs it as the
// current key, returning its public state.
func (km *KeyManager) KeygenAndInstall(nowMS uint64) (KEMKeyState, error) {
	pair, err := crypto.GenerateMLKEMKeyPair()
	if err != nil {
		return KEMKeyState{}, err
	}

	pub := pair.EncapsulationKey.Bytes()
	state := KEMKeyState{
		ID:        ComputeKeyID(pub, nowMS),
		PublicKey: pub,
		Level:     constants.Level256,
		CreatedAt: nowMS,
		ExpiresAt: nowMS + km.rotationIntervalMS,
	}

	km.current = &state
	km.currentPair = pair
	return state, nil
}

// RotateIfNeeded rotates the current key when it has expired. The first
// call installs an initial key and reports it as a rotation with Old == New.
// Returns nil when the current key is still fresh.
func (km *KeyManager) RotateIfNeeded(nowMS uint64) (*Rotation, error) {
	if km.current == nil {
		state, err := km.KeygenAndInstall(nowMS)
		if err != nil {
			return nil, err
		}
		return &Rotation{Old: state, New: state}, nil
	}

	if nowMS < km.current.ExpiresAt {
		return nil, nil
	}

	old := *km.current
	state, err := km.KeygenAndInstall(nowMS)
	if err != nil {
		return nil, err
	}
	return &Rotation{Old: old, New: state}, nil
}

// EncapsulateForCurrent encapsulates a fresh shared secret to the current
// public key, returning the key state alongside the ciphertext and secret.
func (km *KeyManager) EncapsulateForCurrent() (KEMKeyState, []byte, []byte, error) {
	if km.current == nil || km.currentPair == nil {
		return KEMKeyState{}, nil, nil, qerrors.ErrNoActiveKey
	}

	ciphertext, sharedSecret, err := crypto.MLKEMEncapsulate(km.currentPair.EncapsulationKey)
	if err != nil {
		return KEMKeyState{}, nil, nil, err
	}
	return *km.current, ciphertext, sharedSecret, nil
}

// DecapsulateCurrent recovers a shared secret with the current
// decapsulation key. Used by responders holding the key material locally.
func (km *KeyManager) DecapsulateCurrent(ciphertext []byte) ([]byte, error) {
	if km.currentPair == nil {
		return nil, qerrors.ErrNoActiveKey
	}
	return crypto.MLKEMDecapsulate(km.currentPair.DecapsulationKey, ciphertext)
}

// CurrentState returns the installed key state, or nil when no key exists.
func (km *KeyManager) CurrentState() *KEMKeyState {
	if km.current == nil {
		return nil
	}
	state := *km.current
	return &state
}

// ComputeKeyID derives the logical key id for a public key installed at
// nowMS: BLAKE2s-256(public key || nowMS little-endian).
func ComputeKeyID(publicKey []byte, nowMS uint64) [constants.KeyIDSize]byte {
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], nowMS)
	return crypto.Digest(publicKey, ts[:])
}
