// Package constants defines protocol parameters for the QSTP secure mesh
// transport.
//
// Security Level: NIST Category 5 (ML-KEM-1024 + ML-DSA-87), targeting
// long-lived mesh deployments that must resist harvest-now-decrypt-later
// adversaries.
package constants

// Protocol identification.
const (
	// HandshakeMagic prefixes every serialized handshake envelope.
	HandshakeMagic = "PQC1"

	// HandshakeVersion is the current envelope version.
	HandshakeVersion uint8 = 1
)

// Identifier and digest sizes.
const (
	// TunnelIDSize is the size of a tunnel identifier in bytes.
	TunnelIDSize = 16

	// PeerIDSize is the size of a mesh peer identifier in bytes.
	PeerIDSize = 32

	// KeyIDSize is the size of a logical key identifier in bytes.
	KeyIDSize = 32

	// RouteHashSize is the size of a route plan digest in bytes.
	RouteHashSize = 32

	// TuplePointerSize is the size of an opaque TupleChain pointer in bytes.
	TuplePointerSize = 16
)

// ML-KEM-1024 parameters (NIST FIPS 203).
const (
	// MLKEMPublicKeySize is the size of an ML-KEM-1024 encapsulation key.
	MLKEMPublicKeySize = 1568

	// MLKEMCiphertextSize is the size of an ML-KEM-1024 ciphertext.
	MLKEMCiphertextSize = 1568

	// MLKEMSharedSecretSize is the size of the ML-KEM shared secret.
	MLKEMSharedSecretSize = 32
)

// Symmetric parameters.
const (
	// AEADKeySize is the key size for both supported suites.
	AEADKeySize = 32

	// AEADNonceSize is the 96-bit nonce size shared by both suites.
	AEADNonceSize = 12

	// AEADTagSize is the authentication tag size for both suites.
	AEADTagSize = 16

	// NoncePrefixSize is how many leading nonce-base bytes survive into a
	// frame nonce; the remaining 8 bytes carry the sequence number.
	NoncePrefixSize = 4

	// DirectionalMaterialSize is the KDF output per direction:
	// a 32-byte AEAD key followed by a 12-byte nonce base.
	DirectionalMaterialSize = AEADKeySize + AEADNonceSize
)

// Key-derivation labels. Disjoint labels keep the three derivations off the
// shared secret from ever producing overlapping material.
const (
	// LabelDirInitToResp keys the initiator->responder direction.
	LabelDirInitToResp = "role:init->resp"

	// LabelDirRespToInit keys the responder->initiator direction.
	LabelDirRespToInit = "role:resp->init"

	// LabelRouteInitToResp refreshes the initiator->responder nonce base
	// after a reroute or rekey.
	LabelRouteInitToResp = "route:init->resp"

	// LabelRouteRespToInit refreshes the responder->initiator nonce base.
	LabelRouteRespToInit = "route:resp->init"

	// LabelTupleKey derives the metadata-at-rest key.
	LabelTupleKey = "QSTP:TUPLE"

	// LabelTupleNonce derives the nonce for the encrypted tuple record.
	LabelTupleNonce = "tuple-nonce"
)

// Envelope section limits.
const (
	// MaxEnvelopeSectionSize bounds each variable-length envelope section;
	// section lengths are carried as uint16.
	MaxEnvelopeSectionSize = 1<<16 - 1

	// EnvelopeHeaderSize is the fixed-size prefix of a handshake envelope:
	// magic, version, KEM level, DSA level, threshold (t, n), reserved,
	// two 32-byte key ids, two 8-byte timestamps, five 2-byte section
	// lengths.
	EnvelopeHeaderSize = 4 + 1 + 1 + 1 + 1 + 1 + 1 + KeyIDSize + KeyIDSize + 8 + 8 + 2*5
)

// Key management defaults.
const (
	// DefaultRotationIntervalMS is the default ML-KEM key lifetime.
	DefaultRotationIntervalMS = 300_000

	// DefaultThresholdT is the default minimum share count for the
	// host-side Shamir policy.
	DefaultThresholdT = 3

	// DefaultThresholdN is the default total share count.
	DefaultThresholdN = 5
)

// QACE heuristic tuning (SimpleQace).
const (
	// QaceBaselineScore is the unpenalized path score.
	QaceBaselineScore = 120_000

	// QaceLatencyCapMS caps the latency penalty input.
	QaceLatencyCapMS = 10_000

	// QaceThreatRerouteScore is the threat level at which the heuristic
	// fails over to an alternate route.
	QaceThreatRerouteScore = 80

	// QaceLossRekeyBPS is the loss level (basis points) at which the
	// heuristic requests a rekey.
	QaceLossRekeyBPS = 5_000
)

// CipherSuite identifies the AEAD construction protecting tunnel frames.
type CipherSuite uint16

const (
	// SuiteAES256GCM protects frames with AES-256-GCM.
	SuiteAES256GCM CipherSuite = 0x0001

	// SuiteChaCha20Poly1305 protects frames with ChaCha20-Poly1305.
	SuiteChaCha20Poly1305 CipherSuite = 0x0002
)

// String returns a human-readable name for the cipher suite.
func (cs CipherSuite) String() string {
	switch cs {
	case SuiteAES256GCM:
		return "AES-256-GCM"
	case SuiteChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	default:
		return "Unknown"
	}
}

// IsSupported returns true if the cipher suite is supported.
func (cs CipherSuite) IsSupported() bool {
	return cs == SuiteAES256GCM || cs == SuiteChaCha20Poly1305
}

// SecurityLevel encodes the strength class of a PQC key in envelope bytes.
type SecurityLevel uint8

const (
	// Level128 corresponds to NIST Category 1.
	Level128 SecurityLevel = 0x01

	// Level192 corresponds to NIST Category 3.
	Level192 SecurityLevel = 0x02

	// Level256 corresponds to NIST Category 5.
	Level256 SecurityLevel = 0x03
)

// String returns a human-readable name for the security level.
func (l SecurityLevel) String() string {
	switch l {
	case Level128:
		return "Category-1"
	case Level192:
		return "Category-3"
	case Level256:
		return "Category-5"
	default:
		return "Unknown"
	}
}
