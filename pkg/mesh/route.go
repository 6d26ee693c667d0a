// Package mesh defines the routing vocabulary shared by the tunnel and the
// adaptive path engine: peer identifiers, QoS classes, and route plans.
package mesh

import (
	"encoding/binary"

	"github.com/pzverkov/qstp-go/internal/constants"
	qerrors "github.com/pzverkov/qstp-go/internal/errors"
	"github.com/pzverkov/qstp-go/pkg/crypto"
)

// PeerID is an opaque 32-byte mesh peer identifier.
type PeerID [constants.PeerIDSize]byte

// DerivePeerID deterministically derives a peer id from an arbitrary label.
// Tests and demos only; production peers carry real identities.
func DerivePeerID(label string) PeerID {
	return PeerID(crypto.Digest([]byte(label)))
}

// QoSClass is the service class propagated to mesh transports.
type QoSClass uint8

const (
	// QoSGossip is best-effort gossip traffic.
	QoSGossip QoSClass = iota

	// QoSLowLatency prioritizes delivery latency.
	QoSLowLatency

	// QoSControl carries control-plane traffic.
	QoSControl
)

// wireByte is part of the route hash preimage and the tuple metadata
// layout, so the values are fixed.
func (q QoSClass) wireByte() uint8 {
	switch q {
	case QoSLowLatency:
		return 0x02
	case QoSControl:
		return 0x03
	default:
		return 0x01
	}
}

// Byte returns the wire encoding of the QoS class.
func (q QoSClass) Byte() uint8 {
	return q.wireByte()
}

// QoSFromByte decodes a wire QoS byte.
func QoSFromByte(b uint8) (QoSClass, error) {
	switch b {
	case 0x01:
		return QoSGossip, nil
	case 0x02:
		return QoSLowLatency, nil
	case 0x03:
		return QoSControl, nil
	default:
		return 0, qerrors.ErrUnknownQoSClass
	}
}

// String returns the class name.
func (q QoSClass) String() string {
	switch q {
	case QoSLowLatency:
		return "low-latency"
	case QoSControl:
		return "control"
	default:
		return "gossip"
	}
}

// RoutePlan is the routing hint for publishing frames across the mesh: a
// pub-sub topic, an ordered hop list, a QoS class, and a monotonic epoch
// scoping the plan's freshness.
type RoutePlan struct {
	Topic string
	Hops  []PeerID
	QoS   QoSClass
	Epoch uint64
}

// RouteHash computes the stable digest of the plan:
// BLAKE2s-256(topic || qos byte || epoch-LE || hop ids). Every key
// derivation and every frame binds this value, so two plans with equal
// hashes are interchangeable for tunnel purposes.
func (r RoutePlan) RouteHash() [constants.RouteHashSize]byte {
	var epoch [8]byte
	binary.LittleEndian.PutUint64(epoch[:], r.Epoch)

	components := make([][]byte, 0, 3+len(r.Hops))
	components = append(components, []byte(r.Topic), []byte{r.QoS.wireByte()}, epoch[:])
	for i := range r.Hops {
		components = append(components, r.Hops[i][:])
	}
	return crypto.Digest(components...)
}

// Equal reports whether two plans hash identically.
func (r *RoutePlan) Equal(other *RoutePlan) bool {
	if other == nil {
		return false
	}
	return r.RouteHash() == other.RouteHash()
}

// Clone returns a deep copy of the plan.
func (r *RoutePlan) Clone() RoutePlan {
	out := RoutePlan{Topic: r.Topic, QoS: r.QoS, Epoch: r.Epoch}
	if len(r.Hops) > 0 {
		out.Hops = append([]PeerID(nil), r.Hops...)
	}
	return out
}
