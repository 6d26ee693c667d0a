package qstp

import "github.com/pzverkov/qstp-go/internal/constants"

// CipherSuite selects the AEAD protecting tunnel frames and tuple records.
type CipherSuite = constants.CipherSuite

// Supported cipher suites.
const (
	SuiteAES256GCM        = constants.SuiteAES256GCM
	SuiteChaCha20Poly1305 = constants.SuiteChaCha20Poly1305

	// DefaultSuite is used when callers have no hardware preference.
	// AES-256-GCM wins on AES-NI hardware; pick ChaCha20-Poly1305 where
	// AES acceleration is absent.
	DefaultSuite = SuiteAES256GCM
)
