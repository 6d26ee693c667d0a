package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pzverkov/qstp-go/internal/constants"
	qerrors "github.com/pzverkov/qstp-go/internal/errors"
)

func TestExpandDeterministic(t *testing.T) {
	secret := bytes.Repeat([]byte{0xA5}, 32)
	context := []byte("tunnel|route|epoch")

	a := Expand(secret, []byte(constants.LabelDirInitToResp), context, constants.DirectionalMaterialSize)
	b := Expand(secret, []byte(constants.LabelDirInitToResp), context, constants.DirectionalMaterialSize)

	if len(a) != constants.DirectionalMaterialSize {
		t.Fatalf("expanded length = %d, want %d", len(a), constants.DirectionalMaterialSize)
	}
	if !bytes.Equal(a, b) {
		t.Error("expansion is not deterministic for identical inputs")
	}
}

func TestExpandLabelSeparation(t *testing.T) {
	secret := bytes.Repeat([]byte{0x11}, 32)
	context := []byte("ctx")

	fwd := Expand(secret, []byte(constants.LabelDirInitToResp), context, 44)
	rev := Expand(secret, []byte(constants.LabelDirRespToInit), context, 44)

	if bytes.Equal(fwd, rev) {
		t.Error("directional labels produced identical material")
	}
}

func TestExpandContextSeparation(t *testing.T) {
	secret := bytes.Repeat([]byte{0x22}, 32)

	a := Expand(secret, []byte(constants.LabelTupleKey), []byte("ctx-a"), 32)
	b := Expand(secret, []byte(constants.LabelTupleKey), []byte("ctx-b"), 32)

	if bytes.Equal(a, b) {
		t.Error("distinct contexts produced identical material")
	}
}

func TestExpandChaining(t *testing.T) {
	// A 44-byte expansion needs two chained blocks; its 32-byte prefix must
	// equal the single-block expansion because the counter chain is shared.
	secret := bytes.Repeat([]byte{0x33}, 32)
	label := []byte(constants.LabelDirInitToResp)

	long := Expand(secret, label, nil, 44)
	short := Expand(secret, label, nil, 32)

	if !bytes.Equal(long[:32], short) {
		t.Error("chained expansion prefix does not match single-block expansion")
	}
}

func TestDigestMatchesConcatenation(t *testing.T) {
	split := Digest([]byte("ab"), []byte("cd"))
	joined := Digest([]byte("abcd"))
	if split != joined {
		t.Error("digest of components differs from digest of concatenation")
	}
}

func TestAEADRoundTrip(t *testing.T) {
	for _, suite := range []constants.CipherSuite{
		constants.SuiteAES256GCM,
		constants.SuiteChaCha20Poly1305,
	} {
		t.Run(suite.String(), func(t *testing.T) {
			key := bytes.Repeat([]byte{0x42}, constants.AEADKeySize)
			aead, err := NewAEAD(suite, key)
			if err != nil {
				t.Fatalf("NewAEAD failed: %v", err)
			}

			nonce := make([]byte, constants.AEADNonceSize)
			plaintext := []byte("qstp frame payload")
			aad := []byte("tunnel-binding")

			ciphertext, err := aead.Seal(nonce, plaintext, aad)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			if len(ciphertext) != len(plaintext)+aead.Overhead() {
				t.Errorf("ciphertext length = %d, want %d", len(ciphertext), len(plaintext)+aead.Overhead())
			}

			recovered, err := aead.Open(nonce, ciphertext, aad)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if !bytes.Equal(recovered, plaintext) {
				t.Error("decrypted plaintext does not match original")
			}
		})
	}
}

func TestAEADTamperDetection(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, constants.AEADKeySize)
	aead, _ := NewAEAD(constants.SuiteChaCha20Poly1305, key)

	nonce := make([]byte, constants.AEADNonceSize)
	ciphertext, _ := aead.Seal(nonce, []byte("payload"), []byte("aad"))

	t.Run("FlippedCiphertextBit", func(t *testing.T) {
		tampered := append([]byte(nil), ciphertext...)
		tampered[0] ^= 0x01
		if _, err := aead.Open(nonce, tampered, []byte("aad")); !errors.Is(err, qerrors.ErrVerifyFailed) {
			t.Errorf("expected ErrVerifyFailed, got %v", err)
		}
	})

	t.Run("WrongAAD", func(t *testing.T) {
		if _, err := aead.Open(nonce, ciphertext, []byte("other")); !errors.Is(err, qerrors.ErrVerifyFailed) {
			t.Errorf("expected ErrVerifyFailed, got %v", err)
		}
	})

	t.Run("WrongNonce", func(t *testing.T) {
		other := make([]byte, constants.AEADNonceSize)
		other[11] = 1
		if _, err := aead.Open(other, ciphertext, []byte("aad")); !errors.Is(err, qerrors.ErrVerifyFailed) {
			t.Errorf("expected ErrVerifyFailed, got %v", err)
		}
	})
}

func TestNewAEADRejectsBadInputs(t *testing.T) {
	if _, err := NewAEAD(constants.SuiteAES256GCM, make([]byte, 16)); !errors.Is(err, qerrors.ErrInvalidKeySize) {
		t.Errorf("expected ErrInvalidKeySize for short key, got %v", err)
	}
	if _, err := NewAEAD(constants.CipherSuite(0xFF), make([]byte, 32)); !errors.Is(err, qerrors.ErrUnsupportedSuite) {
		t.Errorf("expected ErrUnsupportedSuite, got %v", err)
	}
}

func TestAEADNonceSizeEnforced(t *testing.T) {
	key := make([]byte, constants.AEADKeySize)
	aead, _ := NewAEAD(constants.SuiteAES256GCM, key)

	if _, err := aead.Seal(make([]byte, 8), []byte("x"), nil); !errors.Is(err, qerrors.ErrNonceMismatch) {
		t.Errorf("Seal with short nonce: expected ErrNonceMismatch, got %v", err)
	}
	if _, err := aead.Open(make([]byte, 8), []byte("x"), nil); !errors.Is(err, qerrors.ErrNonceMismatch) {
		t.Errorf("Open with short nonce: expected ErrNonceMismatch, got %v", err)
	}
}

func TestMLKEMRoundTrip(t *testing.T) {
	kp, err := GenerateMLKEMKeyPair()
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}

	ciphertext, sharedSecret, err := MLKEMEncapsulate(kp.EncapsulationKey)
	if err != nil {
		t.Fatalf("encapsulation failed: %v", err)
	}
	if len(ciphertext) != constants.MLKEMCiphertextSize {
		t.Errorf("ciphertext size = %d, want %d", len(ciphertext), constants.MLKEMCiphertextSize)
	}
	if len(sharedSecret) != constants.MLKEMSharedSecretSize {
		t.Errorf("shared secret size = %d, want %d", len(sharedSecret), constants.MLKEMSharedSecretSize)
	}

	recovered, err := MLKEMDecapsulate(kp.DecapsulationKey, ciphertext)
	if err != nil {
		t.Fatalf("decapsulation failed: %v", err)
	}
	if !bytes.Equal(sharedSecret, recovered) {
		t.Error("decapsulated secret does not match encapsulated secret")
	}
}

func TestMLKEMImplicitRejection(t *testing.T) {
	kp, err := GenerateMLKEMKeyPair()
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}

	ciphertext, sharedSecret, err := MLKEMEncapsulate(kp.EncapsulationKey)
	if err != nil {
		t.Fatalf("encapsulation failed: %v", err)
	}

	corrupted := append([]byte(nil), ciphertext...)
	corrupted[0] ^= 0xFF

	recovered, err := MLKEMDecapsulate(kp.DecapsulationKey, corrupted)
	if err != nil {
		t.Fatalf("decapsulation of corrupted ciphertext should not error: %v", err)
	}
	if bytes.Equal(sharedSecret, recovered) {
		t.Error("corrupted ciphertext yielded the original secret")
	}
}

func TestMLKEMDecapsulateRejectsWrongSize(t *testing.T) {
	kp, _ := GenerateMLKEMKeyPair()
	if _, err := MLKEMDecapsulate(kp.DecapsulationKey, make([]byte, 100)); !errors.Is(err, qerrors.ErrInvalidInput) {
		t.Errorf("expected an invalid-input error, got %v", err)
	}
}

func TestMLKEMPublicKeySerialization(t *testing.T) {
	kp, _ := GenerateMLKEMKeyPair()

	packed := kp.EncapsulationKey.Bytes()
	if len(packed) != constants.MLKEMPublicKeySize {
		t.Fatalf("packed key size = %d, want %d", len(packed), constants.MLKEMPublicKeySize)
	}

	parsed, err := ParseMLKEMPublicKey(packed)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// Encapsulation to the reparsed key must still decapsulate correctly.
	ct, ss, err := MLKEMEncapsulate(parsed)
	if err != nil {
		t.Fatalf("encapsulation to parsed key failed: %v", err)
	}
	recovered, err := MLKEMDecapsulate(kp.DecapsulationKey, ct)
	if err != nil {
		t.Fatalf("decapsulation failed: %v", err)
	}
	if !bytes.Equal(ss, recovered) {
		t.Error("secret mismatch after public key round-trip")
	}
}

func TestMLDSASignVerify(t *testing.T) {
	kp, err := GenerateMLDSAKeyPair()
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}

	message := []byte("handshake transcript")
	signature := MLDSASign(kp.PrivateKey, message)
	if len(signature) != MLDSASignatureSize() {
		t.Errorf("signature size = %d, want %d", len(signature), MLDSASignatureSize())
	}

	if !MLDSAVerify(kp.PublicKey, message, signature) {
		t.Error("valid signature rejected")
	}
	if MLDSAVerify(kp.PublicKey, []byte("other transcript"), signature) {
		t.Error("signature accepted for wrong message")
	}

	tampered := append([]byte(nil), signature...)
	tampered[0] ^= 0x01
	if MLDSAVerify(kp.PublicKey, message, tampered) {
		t.Error("tampered signature accepted")
	}
}

func TestMLDSAPublicKeySerialization(t *testing.T) {
	kp, _ := GenerateMLDSAKeyPair()

	packed, err := MLDSAPublicKeyBytes(kp.PublicKey)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	parsed, err := ParseMLDSAPublicKey(packed)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	message := []byte("cross-peer verification")
	signature := MLDSASign(kp.PrivateKey, message)
	if !MLDSAVerify(parsed, message, signature) {
		t.Error("reparsed public key rejected a valid signature")
	}
}

func TestSecureRandomBytes(t *testing.T) {
	a, err := SecureRandomBytes(32)
	if err != nil {
		t.Fatalf("SecureRandomBytes failed: %v", err)
	}
	b, err := SecureRandomBytes(32)
	if err != nil {
		t.Fatalf("SecureRandomBytes failed: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two random draws are identical")
	}
}

func TestZeroize(t *testing.T) {
	buf := bytes.Repeat([]byte{0xFF}, 16)
	Zeroize(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("byte %d not zeroed", i)
		}
	}
}
