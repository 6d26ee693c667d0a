// aead.go implements the suite-parameterized AEAD used for tunnel frames
// and tuple records.
//
// Two suites are supported:
//   - AES-256-GCM: FIPS-approved, hardware-accelerated on modern CPUs
//   - ChaCha20-Poly1305: constant-time in software everywhere
//
// Unlike a transport-level AEAD, this wrapper takes explicit nonces: the
// tunnel owns nonce composition (directional base || sequence number) and
// is responsible for uniqueness. Nonce reuse under one key completely
// breaks both suites.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pzverkov/qstp-go/internal/constants"
	qerrors "github.com/pzverkov/qstp-go/internal/errors"
)

// AEAD is an authenticated cipher bound to one 32-byte key and one suite.
type AEAD struct {
	aead  cipher.AEAD
	suite constants.CipherSuite
}

// NewAEAD creates an AEAD for the given suite and 32-byte key.
func NewAEAD(suite constants.CipherSuite, key []byte) (*AEAD, error) {
	if len(key) != constants.AEADKeySize {
		return nil, qerrors.ErrInvalidKeySize
	}

	var aead cipher.AEAD

	switch suite {
	case constants.SuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}
		aead, err = cipher.NewGCM(block)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}

	case constants.SuiteChaCha20Poly1305:
		var err error
		aead, err = chacha20poly1305.New(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}

	default:
		return nil, qerrors.ErrUnsupportedSuite
	}

	return &AEAD{aead: aead, suite: suite}, nil
}

// Seal encrypts and authenticates plaintext under the explicit 12-byte
// nonce, binding additionalData into the tag. The caller guarantees nonce
// uniqueness.
func (a *AEAD) Seal(nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != constants.AEADNonceSize {
		return nil, qerrors.ErrNonceMismatch
	}
	return a.aead.Seal(nil, nonce, plaintext, additionalData), nil
}

// Open decrypts and verifies ciphertext under the explicit nonce. Any
// authentication failure is reported uniformly as ErrVerifyFailed so the
// error does not distinguish tag failures from malformed ciphertext.
func (a *AEAD) Open(nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != constants.AEADNonceSize {
		return nil, qerrors.ErrNonceMismatch
	}
	plaintext, err := a.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, qerrors.ErrVerifyFailed
	}
	return plaintext, nil
}

// Suite returns the cipher suite identifier.
func (a *AEAD) Suite() constants.CipherSuite {
	return a.suite
}

// Overhead returns the tag bytes added by Seal.
func (a *AEAD) Overhead() int {
	return a.aead.Overhead()
}
