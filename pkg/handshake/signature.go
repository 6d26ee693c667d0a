package handshake

import (
	"github.com/cloudflare/circl/sign"

	"github.com/pzverkov/qstp-go/internal/constants"
	qerrors "github.com/pzverkov/qstp-go/internal/errors"
	"github.com/pzverkov/qstp-go/pkg/crypto"
)

// SigningKeyState is the public metadata for a long-term ML-DSA key.
type SigningKeyState struct {
	// ID is the logical identifier, derived like a KEM key id.
	ID [constants.KeyIDSize]byte

	// PublicKey is the packed ML-DSA-87 public key.
	PublicKey []byte

	// Level is the security level of the key.
	Level constants.SecurityLevel

	// CreatedAt is the generation timestamp in milliseconds.
	CreatedAt uint64
}

// SignatureManager owns a node's long-term ML-DSA-87 signing identity and
// binds KEM transcripts to it.
type SignatureManager struct {
	pair  *crypto.MLDSAKeyPair
	state SigningKeyState
}

// NewSignatureManager generates a fresh ML-DSA-87 identity.
func NewSignatureManager(nowMS uint64) (*SignatureManager, error) {
	pair, err := crypto.GenerateMLDSAKeyPair()
	if err != nil {
		return nil, err
	}

	pub, err := crypto.MLDSAPublicKeyBytes(pair.PublicKey)
	if err != nil {
		return nil, err
	}

	return &SignatureManager{
		pair: pair,
		state: SigningKeyState{
			ID:        ComputeKeyID(pub, nowMS),
			PublicKey: pub,
			Level:     constants.Level256,
			CreatedAt: nowMS,
		},
	}, nil
}

// State returns the public signing key state.
func (sm *SignatureManager) State() SigningKeyState {
	return sm.state
}

// SignKEMTranscript signs ciphertext || shared secret || context as one
// atomic transcript, binding the encapsulation to both the signing identity
// and the caller's request.
func (sm *SignatureManager) SignKEMTranscript(ciphertext, sharedSecret, context []byte) []byte {
	transcript := buildKEMTranscript(ciphertext, sharedSecret, context)
	return crypto.MLDSASign(sm.pair.PrivateKey, transcript)
}

// VerifyKEMTranscript verifies a transcript signature against a packed
// public key. Returns ErrVerifyFailed on any mismatch.
func VerifyKEMTranscript(publicKey, ciphertext, sharedSecret, context, signature []byte) error {
	pk, err := crypto.ParseMLDSAPublicKey(publicKey)
	if err != nil {
		return err
	}
	return verifyTranscript(pk, buildKEMTranscript(ciphertext, sharedSecret, context), signature)
}

func verifyTranscript(pk sign.PublicKey, transcript, signature []byte) error {
	if !crypto.MLDSAVerify(pk, transcript, signature) {
		return qerrors.ErrVerifyFailed
	}
	return nil
}

func buildKEMTranscript(ciphertext, sharedSecret, context []byte) []byte {
	transcript := make([]byte, 0, len(ciphertext)+len(sharedSecret)+len(context))
	transcript = append(transcript, ciphertext...)
	transcript = append(transcript, sharedSecret...)
	transcript = append(transcript, context...)
	return transcript
}
