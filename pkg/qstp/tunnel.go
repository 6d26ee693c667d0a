// Package qstp implements the Quantum Secure Tunneling Protocol: a
// post-quantum secure channel over a topic-addressed mesh. Establish runs
// the ML-KEM handshake and brings up an initiator tunnel; Hydrate mirrors
// the state on the responder from the delivered shared secret. A live
// Tunnel seals and opens AEAD frames bound to its current route, persists
// its metadata as an encrypted tuple record, and adapts its route through
// a pluggable QACE engine.
package qstp

import (
	"github.com/pzverkov/qstp-go/internal/constants"
	qerrors "github.com/pzverkov/qstp-go/internal/errors"
	"github.com/pzverkov/qstp-go/pkg/crypto"
	"github.com/pzverkov/qstp-go/pkg/handshake"
	"github.com/pzverkov/qstp-go/pkg/mesh"
	"github.com/pzverkov/qstp-go/pkg/qace"
)

// Role distinguishes the two tunnel endpoints. Directional key labels are
// assigned relative to the role, so an initiator's send direction is the
// responder's receive direction.
type Role uint8

const (
	// RoleInitiator established the tunnel via a handshake composer.
	RoleInitiator Role = iota

	// RoleResponder hydrated the tunnel from a received shared secret.
	RoleResponder
)

// String returns the role name.
func (r Role) String() string {
	if r == RoleResponder {
		return "responder"
	}
	return "initiator"
}

// TunnelMetadata is the local endpoint's view of tunnel identity: the
// tunnel id, the key ids that produced it, the threshold policy, and the
// pointer to the encrypted metadata record.
type TunnelMetadata struct {
	TunnelID      TunnelID
	KEMKeyID      [constants.KeyIDSize]byte
	SigningKeyID  [constants.KeyIDSize]byte
	Threshold     handshake.ThresholdPolicy
	Peer          mesh.PeerID
	QoS           mesh.QoSClass
	EstablishedAt uint64
	TuplePointer  TuplePointer
}

// Tunnel is an established secure channel over one mesh route. It owns
// the directional cipher states, the send counter, and the receive
// watermark; a tunnel belongs to exactly one goroutine and performs no
// internal locking.
//
// Route changes are local: ApplyQace installs routes on this endpoint
// only, and both endpoints must evaluate the same telemetry (or exchange
// decisions out of band) to stay in step. Frames sealed under a route the
// peer has not installed yet fail its route-hash check and are dropped.
type Tunnel struct {
	metadata  TunnelMetadata
	role      Role
	suite     constants.CipherSuite
	route     mesh.RoutePlan
	routeHash [constants.RouteHashSize]byte
	tupleKey  [constants.AEADKeySize]byte

	tx            directionalState
	txSeq         uint64
	rx            directionalState
	recvWatermark uint64

	alternates   []mesh.RoutePlan
	lastDecision *qace.Decision
	observer     Observer
}

// Metadata returns a copy of the tunnel's identity metadata.
func (t *Tunnel) Metadata() TunnelMetadata {
	return t.metadata
}

// Role returns the endpoint's role.
func (t *Tunnel) Role() Role {
	return t.role
}

// Suite returns the cipher suite protecting frames.
func (t *Tunnel) Suite() constants.CipherSuite {
	return t.suite
}

// Route returns a copy of the currently installed route.
func (t *Tunnel) Route() mesh.RoutePlan {
	return t.route.Clone()
}

// LastDecision returns the most recent QACE decision, or nil before the
// first evaluation.
func (t *Tunnel) LastDecision() *qace.Decision {
	return t.lastDecision
}

// SetObserver installs a lifecycle observer. A nil observer restores the
// no-op default.
func (t *Tunnel) SetObserver(observer Observer) {
	if observer == nil {
		observer = nopObserver{}
	}
	t.observer = observer
}

// RegisterAlternateRoutes replaces the failover candidate list consulted
// on the next ApplyQace. Both endpoints must register equivalent
// candidates for a threat-driven failover to land on the same route.
func (t *Tunnel) RegisterAlternateRoutes(routes []mesh.RoutePlan) {
	t.alternates = make([]mesh.RoutePlan, len(routes))
	for i := range routes {
		t.alternates[i] = routes[i].Clone()
	}
}

// Seal encrypts payload into a frame stamped with the current route. The
// appAAD is authenticated but not transmitted; the peer must present the
// same bytes to Open. The send counter advances even though the frame
// has not been published yet, so a dropped frame burns its sequence
// number.
func (t *Tunnel) Seal(payload, appAAD []byte) (*Frame, error) {
	seq := t.txSeq
	nonce := composeNonce(t.tx.nonceBase, seq)
	aad := buildAAD(t.metadata.TunnelID, t.routeHash, seq, appAAD)

	ciphertext, err := t.tx.cipher.Seal(nonce[:], payload, aad)
	if err != nil {
		return nil, err
	}
	t.txSeq++

	t.observer.OnSeal(seq)
	return &Frame{
		TunnelID:   t.metadata.TunnelID,
		Topic:      t.route.Topic,
		Seq:        seq,
		Nonce:      nonce,
		RouteHash:  t.routeHash,
		RouteEpoch: t.route.Epoch,
		Ciphertext: ciphertext,
	}, nil
}

// Open authenticates and decrypts a received frame. Checks run in a fixed
// order so callers can branch on the error class: addressing first
// (tunnel id, route hash, route epoch), then the replay watermark, then
// nonce consistency, then AEAD verification. The watermark only advances
// on success; frames skipped by loss or reordering remain openable until
// a later frame lands.
func (t *Tunnel) Open(frame *Frame, appAAD []byte) ([]byte, error) {
	if frame.TunnelID != t.metadata.TunnelID {
		return nil, qerrors.ErrTunnelIDMismatch
	}
	if frame.RouteHash != t.routeHash {
		return nil, qerrors.ErrRouteHashMismatch
	}
	if frame.RouteEpoch != t.route.Epoch {
		return nil, qerrors.ErrRouteEpochMismatch
	}
	if frame.Seq < t.recvWatermark {
		t.observer.OnReplayDetected(frame.Seq, t.recvWatermark)
		return nil, qerrors.ErrFrameReplayed
	}

	expected := composeNonce(t.rx.nonceBase, frame.Seq)
	if expected != frame.Nonce {
		t.observer.OnAuthFailure(frame.Seq)
		return nil, qerrors.ErrNonceMismatch
	}

	aad := buildAAD(t.metadata.TunnelID, t.routeHash, frame.Seq, appAAD)
	plaintext, err := t.rx.cipher.Open(frame.Nonce[:], frame.Ciphertext, aad)
	if err != nil {
		t.observer.OnAuthFailure(frame.Seq)
		return nil, qerrors.ErrVerifyFailed
	}

	t.recvWatermark = frame.Seq + 1
	t.observer.OnOpen(frame.Seq)
	return plaintext, nil
}

// ApplyQace runs one adaptive evaluation: it snapshots the current route
// and alternates, forwards them with the telemetry to the engine, and
// applies the decision. Reroute installs the decision's primary and
// refreshes nonce bases; Rekey refreshes nonce bases in place; Maintain
// changes nothing. The decision's alternates always replace the
// registered candidate list, so the engine's reordering persists across
// evaluations.
func (t *Tunnel) ApplyQace(telemetry qace.Metrics, engine qace.Engine) (*qace.Decision, error) {
	pathSet := qace.PathSet{Primary: t.route.Clone()}
	if len(t.alternates) > 0 {
		pathSet.Alternates = make([]mesh.RoutePlan, len(t.alternates))
		for i := range t.alternates {
			pathSet.Alternates[i] = t.alternates[i].Clone()
		}
	}

	request := &qace.Request{
		TunnelID:       [constants.TunnelIDSize]byte(t.metadata.TunnelID),
		TelemetryEpoch: t.route.Epoch,
		Metrics:        telemetry,
		PathSet:        pathSet,
	}
	decision, err := engine.Evaluate(request)
	if err != nil {
		return nil, err
	}

	switch decision.Action {
	case qace.ActionReroute:
		oldHash := t.routeHash
		t.installRoute(&decision.PathSet.Primary)
		t.observer.OnReroute(oldHash, t.routeHash, decision)
	case qace.ActionRekey:
		t.rotateRouteMaterial()
		t.observer.OnRekey(decision)
	}

	t.RegisterAlternateRoutes(decision.PathSet.Alternates)
	t.lastDecision = decision
	return decision, nil
}

// FetchTupleMetadata retrieves and decrypts this tunnel's metadata record.
func (t *Tunnel) FetchTupleMetadata(store TupleStore) (*TupleMetadataPlain, error) {
	record, ok := store.Fetch(t.metadata.TuplePointer)
	if !ok {
		return nil, qerrors.ErrTupleMissing
	}
	plaintext, err := decryptTupleMetadata(t.tupleKey, t.suite, record)
	if err != nil {
		return nil, err
	}
	return TupleMetadataFromBytes(plaintext)
}

// installRoute swaps in a new route and rebinds the nonce bases to it.
// The AEAD keys are untouched; only the nonce space moves, which is
// enough to keep (key, nonce) pairs unique across the route change while
// both directions keep their established keys.
func (t *Tunnel) installRoute(route *mesh.RoutePlan) {
	t.route = route.Clone()
	t.routeHash = t.route.RouteHash()
	t.rotateRouteMaterial()
}

// rotateRouteMaterial re-derives both directional nonce bases from the
// tuple key, salted with the current tunnel id, route hash, and epoch.
// Counters keep running; the moved nonce space is what keeps (key, nonce)
// pairs unique. The peer performs the mirrored derivation when it
// installs the same route.
func (t *Tunnel) rotateRouteMaterial() {
	salt := deriveContext(t.metadata.TunnelID, t.routeHash, t.route.Epoch)

	sendLabel, recvLabel := constants.LabelRouteInitToResp, constants.LabelRouteRespToInit
	if t.role == RoleResponder {
		sendLabel, recvLabel = recvLabel, sendLabel
	}

	sendMaterial := crypto.Expand(t.tupleKey[:], []byte(sendLabel), salt, constants.AEADNonceSize)
	recvMaterial := crypto.Expand(t.tupleKey[:], []byte(recvLabel), salt, constants.AEADNonceSize)
	copy(t.tx.nonceBase[:], sendMaterial)
	copy(t.rx.nonceBase[:], recvMaterial)
	crypto.ZeroizeMultiple(sendMaterial, recvMaterial)
}
