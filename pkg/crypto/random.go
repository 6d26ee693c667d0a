// Package crypto provides the cryptographic primitives for QSTP: the
// BLAKE2s counter-mode KDF, suite-parameterized AEAD, and wrappers over the
// circl ML-KEM and ML-DSA implementations.
//
// Security Note: all random number generation uses crypto/rand, which
// sources entropy from the operating system's CSPRNG.
package crypto

import (
	"crypto/rand"
	"io"

	qerrors "github.com/pzverkov/qstp-go/internal/errors"
)

// SecureRandom reads cryptographically secure random bytes into b.
//
// It only fails if the system CSPRNG fails, which should be treated as a
// critical system failure.
func SecureRandom(b []byte) error {
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return qerrors.NewCryptoError("SecureRandom", err)
	}
	return nil
}

// SecureRandomBytes returns n cryptographically secure random bytes.
func SecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := SecureRandom(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Reader is an io.Reader yielding cryptographically secure random bytes.
var Reader = rand.Reader

// Zeroize overwrites sensitive data with zeros.
//
// Note: the Go runtime may have copied the data, and the compiler may elide
// the stores. Treat this as hygiene, not a guarantee; use OS-level memory
// protection where the threat model demands it.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroizeMultiple overwrites several byte slices with zeros.
func ZeroizeMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zeroize(s)
	}
}
