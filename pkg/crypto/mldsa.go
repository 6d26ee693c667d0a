// mldsa.go wraps the circl ML-DSA-87 implementation (NIST FIPS 204).
//
// ML-DSA signatures bind the handshake transcript (KEM ciphertext, shared
// secret, and the caller's request) to the responder's long-term signing
// identity, which is what stops an active adversary from splicing its own
// encapsulation into a handshake.
package crypto

import (
	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/schemes"

	qerrors "github.com/pzverkov/qstp-go/internal/errors"
)

const mldsaSchemeName = "ML-DSA-87"

// MLDSAKeyPair holds an ML-DSA-87 signing key pair.
type MLDSAKeyPair struct {
	PublicKey  sign.PublicKey
	PrivateKey sign.PrivateKey
}

func mldsaScheme() sign.Scheme {
	return schemes.ByName(mldsaSchemeName)
}

// GenerateMLDSAKeyPair generates a fresh ML-DSA-87 key pair.
func GenerateMLDSAKeyPair() (*MLDSAKeyPair, error) {
	pk, sk, err := mldsaScheme().GenerateKey()
	if err != nil {
		return nil, qerrors.NewCryptoError("GenerateMLDSAKeyPair", err)
	}
	return &MLDSAKeyPair{PublicKey: pk, PrivateKey: sk}, nil
}

// MLDSASign signs message with the private key.
func MLDSASign(sk sign.PrivateKey, message []byte) []byte {
	return mldsaScheme().Sign(sk, message, nil)
}

// MLDSAVerify reports whether signature is valid for message under pk.
func MLDSAVerify(pk sign.PublicKey, message, signature []byte) bool {
	return mldsaScheme().Verify(pk, message, signature, nil)
}

// MLDSAPublicKeyBytes returns the packed encoding of an ML-DSA public key.
func MLDSAPublicKeyBytes(pk sign.PublicKey) ([]byte, error) {
	b, err := pk.MarshalBinary()
	if err != nil {
		return nil, qerrors.NewCryptoError("MLDSAPublicKeyBytes", err)
	}
	return b, nil
}

// ParseMLDSAPublicKey parses a packed ML-DSA-87 public key.
func ParseMLDSAPublicKey(data []byte) (sign.PublicKey, error) {
	pk, err := mldsaScheme().UnmarshalBinaryPublicKey(data)
	if err != nil {
		return nil, qerrors.NewCryptoError("ParseMLDSAPublicKey", err)
	}
	return pk, nil
}

// MLDSASignatureSize returns the signature size in bytes.
func MLDSASignatureSize() int {
	return mldsaScheme().SignatureSize()
}
