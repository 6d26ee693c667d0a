// derive.go holds the key-derivation discipline for tunnels. One KDF
// primitive drives three disjoint derivations off the handshake secret:
//
//  1. Directional AEAD key + nonce base, role-labeled so initiator-send
//     material equals responder-receive material and vice versa.
//  2. The tuple key, used only for metadata-at-rest.
//  3. Post-reroute nonce-base refresh, derived from the tuple key plus the
//     new (tunnel id, route hash, epoch) salt, so every route gets fresh
//     nonce bases from a single KEM exchange.
//
// Every derivation folds in tunnel id || route hash || epoch; no two
// (tunnel, route, epoch) triples ever receive identical material.

package qstp

import (
	"encoding/binary"

	"github.com/pzverkov/qstp-go/internal/constants"
	qerrors "github.com/pzverkov/qstp-go/internal/errors"
	"github.com/pzverkov/qstp-go/pkg/crypto"
	"github.com/pzverkov/qstp-go/pkg/mesh"
)

// TunnelID is the 16-byte tunnel identifier: the truncated digest of the
// KEM ciphertext, transcript signature, and initial route hash. It binds
// the tunnel's identity to both the handshake and the route it was
// established over, and never changes for the tunnel's lifetime.
type TunnelID [constants.TunnelIDSize]byte

// DeriveTunnelID computes the tunnel identifier from handshake output.
func DeriveTunnelID(ciphertext, signature []byte, route *mesh.RoutePlan) TunnelID {
	routeHash := route.RouteHash()
	digest := crypto.Digest(ciphertext, signature, routeHash[:])

	var id TunnelID
	copy(id[:], digest[:constants.TunnelIDSize])
	return id
}

// deriveContext builds the KDF context binding: tunnel id || route hash ||
// epoch little-endian.
func deriveContext(tunnelID TunnelID, routeHash [constants.RouteHashSize]byte, epoch uint64) []byte {
	ctx := make([]byte, 0, constants.TunnelIDSize+constants.RouteHashSize+8)
	ctx = append(ctx, tunnelID[:]...)
	ctx = append(ctx, routeHash[:]...)
	ctx = binary.LittleEndian.AppendUint64(ctx, epoch)
	return ctx
}

// directionalState is one direction's cipher and nonce base. The sequence
// counter lives on the tunnel's send side only.
type directionalState struct {
	cipher    *crypto.AEAD
	nonceBase [constants.AEADNonceSize]byte
}

// deriveDirectionalStates expands the shared secret into the role-relative
// send and receive states. An initiator's send material is byte-identical
// to a responder's receive material for the same inputs.
func deriveDirectionalStates(
	sharedSecret []byte,
	tunnelID TunnelID,
	route *mesh.RoutePlan,
	role Role,
	suite constants.CipherSuite,
) (tx, rx directionalState, err error) {
	context := deriveContext(tunnelID, route.RouteHash(), route.Epoch)

	txLabel, rxLabel := constants.LabelDirInitToResp, constants.LabelDirRespToInit
	if role == RoleResponder {
		txLabel, rxLabel = rxLabel, txLabel
	}

	txMaterial := crypto.Expand(sharedSecret, []byte(txLabel), context, constants.DirectionalMaterialSize)
	rxMaterial := crypto.Expand(sharedSecret, []byte(rxLabel), context, constants.DirectionalMaterialSize)
	defer crypto.ZeroizeMultiple(txMaterial, rxMaterial)

	txCipher, err := crypto.NewAEAD(suite, txMaterial[:constants.AEADKeySize])
	if err != nil {
		return tx, rx, err
	}
	rxCipher, err := crypto.NewAEAD(suite, rxMaterial[:constants.AEADKeySize])
	if err != nil {
		return tx, rx, err
	}

	tx.cipher = txCipher
	copy(tx.nonceBase[:], txMaterial[constants.AEADKeySize:])
	rx.cipher = rxCipher
	copy(rx.nonceBase[:], rxMaterial[constants.AEADKeySize:])
	return tx, rx, nil
}

// deriveTupleKey expands the metadata-at-rest key. The label is disjoint
// from the directional labels, so frame keys and the tuple key never
// overlap even though they share the secret and context.
func deriveTupleKey(sharedSecret []byte, tunnelID TunnelID, route *mesh.RoutePlan) [constants.AEADKeySize]byte {
	context := deriveContext(tunnelID, route.RouteHash(), route.Epoch)
	material := crypto.Expand(sharedSecret, []byte(constants.LabelTupleKey), context, constants.AEADKeySize)

	var key [constants.AEADKeySize]byte
	copy(key[:], material)
	crypto.Zeroize(material)
	return key
}

// composeNonce builds a frame nonce: four fixed bytes from the directional
// base followed by the sequence number little-endian. Uniqueness holds as
// long as the base changes on every reroute and rekey.
func composeNonce(base [constants.AEADNonceSize]byte, seq uint64) [constants.AEADNonceSize]byte {
	var nonce [constants.AEADNonceSize]byte
	copy(nonce[:constants.NoncePrefixSize], base[:constants.NoncePrefixSize])
	binary.LittleEndian.PutUint64(nonce[constants.NoncePrefixSize:], seq)
	return nonce
}

// buildAAD assembles the frame's associated data: tunnel id || route hash
// || seq little-endian || caller context. A frame replayed against a stale
// route or epoch fails authentication regardless of the watermark.
func buildAAD(tunnelID TunnelID, routeHash [constants.RouteHashSize]byte, seq uint64, appAAD []byte) []byte {
	aad := make([]byte, 0, constants.TunnelIDSize+constants.RouteHashSize+8+len(appAAD))
	aad = append(aad, tunnelID[:]...)
	aad = append(aad, routeHash[:]...)
	aad = binary.LittleEndian.AppendUint64(aad, seq)
	aad = append(aad, appAAD...)
	return aad
}

// encryptTupleMetadata seals plaintext metadata into a storable record.
// The record nonce is derived from the tuple key itself; the key is used
// for exactly one record, so the fixed nonce is single-use.
func encryptTupleMetadata(tupleKey [constants.AEADKeySize]byte, suite constants.CipherSuite, plaintext []byte) (TupleRecord, error) {
	cipher, err := crypto.NewAEAD(suite, tupleKey[:])
	if err != nil {
		return TupleRecord{}, err
	}

	nonceMaterial := crypto.Expand(tupleKey[:], []byte(constants.LabelTupleNonce), nil, constants.AEADNonceSize)
	var record TupleRecord
	copy(record.Nonce[:], nonceMaterial)

	record.Ciphertext, err = cipher.Seal(record.Nonce[:], plaintext, nil)
	if err != nil {
		return TupleRecord{}, err
	}
	return record, nil
}

// decryptTupleMetadata opens a stored record, mapping authentication
// failure to ErrVerifyFailed.
func decryptTupleMetadata(tupleKey [constants.AEADKeySize]byte, suite constants.CipherSuite, record *TupleRecord) ([]byte, error) {
	cipher, err := crypto.NewAEAD(suite, tupleKey[:])
	if err != nil {
		return nil, err
	}
	plaintext, err := cipher.Open(record.Nonce[:], record.Ciphertext, nil)
	if err != nil {
		return nil, qerrors.ErrVerifyFailed
	}
	return plaintext, nil
}
