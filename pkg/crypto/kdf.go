// kdf.go implements counter-mode key expansion over BLAKE2s-256.
//
// BLAKE2s (RFC 7693) is the protocol hash for QSTP: route hashes, tunnel
// identifiers, key identifiers, and all key expansion are BLAKE2s-256
// digests, so every identity and every derived key trace back to one
// primitive.
//
// The expansion chains fixed-size digest blocks:
//
//	block_i = BLAKE2s-256(label || counter_i || secret || context)
//
// with a one-byte counter starting at 1, concatenating blocks until the
// requested length is reached. Disjoint labels give domain separation; the
// context binds every derivation to a (tunnel id, route hash, epoch)
// triple, so no two tunnels, routes, or epochs ever share material.
package crypto

import (
	"golang.org/x/crypto/blake2s"
)

// Expand derives outLen bytes from secret under the given label and context.
//
// Callers must keep labels disjoint across independent derivations. A given
// (label, secret, context) triple always reproduces the same output; both
// tunnel endpoints rely on this to derive matching keys.
func Expand(secret, label, context []byte, outLen int) []byte {
	out := make([]byte, 0, outLen)
	counter := uint8(1)
	for len(out) < outLen {
		h, _ := blake2s.New256(nil)
		h.Write(label)
		h.Write([]byte{counter})
		h.Write(secret)
		h.Write(context)
		block := h.Sum(nil)

		take := outLen - len(out)
		if take > len(block) {
			take = len(block)
		}
		out = append(out, block[:take]...)
		counter++
	}
	return out
}

// Digest returns the BLAKE2s-256 digest of the concatenated components.
// Used for route hashes, tunnel ids, and key ids.
func Digest(components ...[]byte) [32]byte {
	h, _ := blake2s.New256(nil)
	for _, c := range components {
		h.Write(c)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
