package qstp

import (
	"fmt"

	"github.com/pzverkov/qstp-go/internal/constants"
	qerrors "github.com/pzverkov/qstp-go/internal/errors"
	"github.com/pzverkov/qstp-go/pkg/handshake"
	"github.com/pzverkov/qstp-go/pkg/mesh"
)

// PeerMetadata is the establishment summary shipped to the responder
// alongside the shared secret. It carries everything Hydrate needs to
// rebuild the mirrored tunnel state, and nothing secret.
type PeerMetadata struct {
	TunnelID      TunnelID
	KEMKeyID      [constants.KeyIDSize]byte
	SigningKeyID  [constants.KeyIDSize]byte
	Threshold     handshake.ThresholdPolicy
	TuplePointer  TuplePointer
	EstablishedAt uint64
}

// EstablishedTunnel bundles the initiator-side establishment output: the
// live tunnel, the serialized handshake envelope for the wire, the peer
// metadata summary, and the session secret for the key-transport layer
// that delivers it to the responder.
//
// SessionSecret must be zeroized by the caller once the responder has
// hydrated.
type EstablishedTunnel struct {
	Tunnel            *Tunnel
	HandshakeEnvelope []byte
	PeerMetadata      PeerMetadata
	SessionSecret     []byte
}

// Establish runs the full initiator flow: execute the handshake through
// the composer, derive the tunnel identity from its output, persist the
// encrypted metadata record, and bring up the directional cipher states.
// A route with epoch zero adopts the handshake timestamp as its epoch,
// so first-use routes get a fresh epoch without caller coordination.
func Establish(
	composer handshake.Composer,
	request []byte,
	peer mesh.PeerID,
	route *mesh.RoutePlan,
	store TupleStore,
	suite constants.CipherSuite,
) (*EstablishedTunnel, error) {
	if len(request) == 0 {
		return nil, qerrors.ErrEmptyRequest
	}
	if route.Topic == "" {
		return nil, qerrors.ErrEmptyTopic
	}

	artifacts, err := composer.BuildArtifacts(request)
	if err != nil {
		return nil, err
	}

	plan := route.Clone()
	if plan.Epoch == 0 {
		plan.Epoch = artifacts.TimestampMS
	}
	return finalizeTunnel(artifacts, peer, plan, store, suite)
}

// finalizeTunnel turns handshake artifacts into a live initiator tunnel
// plus the material the responder needs.
func finalizeTunnel(
	artifacts *handshake.Artifacts,
	peer mesh.PeerID,
	plan mesh.RoutePlan,
	store TupleStore,
	suite constants.CipherSuite,
) (*EstablishedTunnel, error) {
	envelope, err := handshake.EnvelopeFromArtifacts(artifacts).Encode()
	if err != nil {
		return nil, err
	}

	tunnelID := DeriveTunnelID(artifacts.Ciphertext, artifacts.Signature, &plan)
	tupleKey := deriveTupleKey(artifacts.SharedSecret, tunnelID, &plan)

	plain := TupleMetadataPlain{
		TunnelID:      tunnelID,
		KEMKeyID:      artifacts.KEMState.ID,
		SigningKeyID:  artifacts.SigningState.ID,
		Threshold:     artifacts.Threshold,
		RouteHash:     plan.RouteHash(),
		QoS:           plan.QoS,
		RouteEpoch:    plan.Epoch,
		EstablishedAt: artifacts.TimestampMS,
	}
	record, err := encryptTupleMetadata(tupleKey, suite, plain.ToBytes())
	if err != nil {
		return nil, err
	}
	pointer, err := store.Put(record)
	if err != nil {
		return nil, err
	}

	tx, rx, err := deriveDirectionalStates(artifacts.SharedSecret, tunnelID, &plan, RoleInitiator, suite)
	if err != nil {
		return nil, err
	}

	tunnel := &Tunnel{
		metadata: TunnelMetadata{
			TunnelID:      tunnelID,
			KEMKeyID:      artifacts.KEMState.ID,
			SigningKeyID:  artifacts.SigningState.ID,
			Threshold:     artifacts.Threshold,
			Peer:          peer,
			QoS:           plan.QoS,
			EstablishedAt: artifacts.TimestampMS,
			TuplePointer:  pointer,
		},
		role:      RoleInitiator,
		suite:     suite,
		route:     plan,
		routeHash: plan.RouteHash(),
		tupleKey:  tupleKey,
		tx:        tx,
		rx:        rx,
		observer:  nopObserver{},
	}

	return &EstablishedTunnel{
		Tunnel:            tunnel,
		HandshakeEnvelope: envelope,
		PeerMetadata: PeerMetadata{
			TunnelID:      tunnelID,
			KEMKeyID:      artifacts.KEMState.ID,
			SigningKeyID:  artifacts.SigningState.ID,
			Threshold:     artifacts.Threshold,
			TuplePointer:  pointer,
			EstablishedAt: artifacts.TimestampMS,
		},
		SessionSecret: append([]byte(nil), artifacts.SharedSecret...),
	}, nil
}

// Hydrate rebuilds a tunnel from a delivered shared secret and peer
// metadata. The route must match the initiator's installed plan exactly
// (including the epoch Establish may have stamped); any divergence shows
// up as a route-hash mismatch on the first frame, not here.
func Hydrate(
	sharedSecret []byte,
	peer mesh.PeerID,
	route *mesh.RoutePlan,
	peerMeta *PeerMetadata,
	role Role,
	suite constants.CipherSuite,
) (*Tunnel, error) {
	if len(sharedSecret) == 0 {
		return nil, fmt.Errorf("%w: shared secret missing", qerrors.ErrInvalidInput)
	}
	if route.Topic == "" {
		return nil, qerrors.ErrEmptyTopic
	}

	plan := route.Clone()
	tupleKey := deriveTupleKey(sharedSecret, peerMeta.TunnelID, &plan)
	tx, rx, err := deriveDirectionalStates(sharedSecret, peerMeta.TunnelID, &plan, role, suite)
	if err != nil {
		return nil, err
	}

	return &Tunnel{
		metadata: TunnelMetadata{
			TunnelID:      peerMeta.TunnelID,
			KEMKeyID:      peerMeta.KEMKeyID,
			SigningKeyID:  peerMeta.SigningKeyID,
			Threshold:     peerMeta.Threshold,
			Peer:          peer,
			QoS:           plan.QoS,
			EstablishedAt: peerMeta.EstablishedAt,
			TuplePointer:  peerMeta.TuplePointer,
		},
		role:      role,
		suite:     suite,
		route:     plan,
		routeHash: plan.RouteHash(),
		tupleKey:  tupleKey,
		tx:        tx,
		rx:        rx,
		observer:  nopObserver{},
	}, nil
}
