// mlkem.go wraps the circl ML-KEM-1024 implementation (NIST FIPS 203).
//
// ML-KEM's security rests on the Module Learning With Errors problem over
// R_q = Z_q[X]/(X^n + 1) with n = 256, q = 3329, and module rank k = 4 for
// the 1024 parameter set, which provides NIST Category 5 security.
package crypto

import (
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"

	"github.com/pzverkov/qstp-go/internal/constants"
	qerrors "github.com/pzverkov/qstp-go/internal/errors"
)

// MLKEMPublicKey wraps an ML-KEM-1024 encapsulation key.
type MLKEMPublicKey struct {
	key *mlkem1024.PublicKey
}

// MLKEMPrivateKey wraps an ML-KEM-1024 decapsulation key.
type MLKEMPrivateKey struct {
	key *mlkem1024.PrivateKey
}

// MLKEMKeyPair holds both halves of an ML-KEM-1024 key.
type MLKEMKeyPair struct {
	EncapsulationKey *MLKEMPublicKey
	DecapsulationKey *MLKEMPrivateKey
}

// GenerateMLKEMKeyPair generates a fresh ML-KEM-1024 key pair from the
// system CSPRNG.
func GenerateMLKEMKeyPair() (*MLKEMKeyPair, error) {
	pk, sk, err := mlkem1024.GenerateKeyPair(Reader)
	if err != nil {
		return nil, qerrors.NewCryptoError("GenerateMLKEMKeyPair", err)
	}
	return &MLKEMKeyPair{
		EncapsulationKey: &MLKEMPublicKey{key: pk},
		DecapsulationKey: &MLKEMPrivateKey{key: sk},
	}, nil
}

// MLKEMEncapsulate encapsulates a fresh shared secret to ek.
//
// Returns the 1568-byte ciphertext and the 32-byte shared secret.
func MLKEMEncapsulate(ek *MLKEMPublicKey) (ciphertext, sharedSecret []byte, err error) {
	if ek == nil || ek.key == nil {
		return nil, nil, qerrors.ErrInvalidKeySize
	}

	ct := make([]byte, mlkem1024.CiphertextSize)
	ss := make([]byte, mlkem1024.SharedKeySize)

	seed := make([]byte, mlkem1024.EncapsulationSeedSize)
	if err := SecureRandom(seed); err != nil {
		return nil, nil, err
	}

	ek.key.EncapsulateTo(ct, ss, seed)
	return ct, ss, nil
}

// MLKEMDecapsulate recovers the shared secret from a ciphertext.
//
// ML-KEM uses implicit rejection: a malformed-but-well-sized ciphertext
// yields a pseudorandom secret rather than an error, so mismatches surface
// later as AEAD verification failures.
func MLKEMDecapsulate(dk *MLKEMPrivateKey, ciphertext []byte) ([]byte, error) {
	if dk == nil || dk.key == nil {
		return nil, qerrors.ErrInvalidKeySize
	}
	if len(ciphertext) != constants.MLKEMCiphertextSize {
		return nil, qerrors.ErrInvalidEnvelope
	}

	ss := make([]byte, mlkem1024.SharedKeySize)
	dk.key.DecapsulateTo(ss, ciphertext)
	return ss, nil
}

// Bytes returns the packed encoding of the public key.
func (pk *MLKEMPublicKey) Bytes() []byte {
	if pk == nil || pk.key == nil {
		return nil
	}
	buf := make([]byte, mlkem1024.PublicKeySize)
	pk.key.Pack(buf)
	return buf
}

// ParseMLKEMPublicKey parses a packed ML-KEM-1024 public key.
func ParseMLKEMPublicKey(data []byte) (*MLKEMPublicKey, error) {
	if len(data) != constants.MLKEMPublicKeySize {
		return nil, qerrors.ErrInvalidKeySize
	}

	pk := new(mlkem1024.PublicKey)
	if err := pk.Unpack(data); err != nil {
		return nil, qerrors.NewCryptoError("ParseMLKEMPublicKey", err)
	}
	return &MLKEMPublicKey{key: pk}, nil
}

// Zeroize drops references to the private key material. circl does not
// expose in-place erasure of unpacked keys.
func (kp *MLKEMKeyPair) Zeroize() {
	kp.DecapsulationKey = nil
	kp.EncapsulationKey = nil
}
