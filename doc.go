// Package qstpgo provides a post-quantum secure mesh transport: the QSTP
// tunnel protocol (Quantum Secure Tunnel Protocol) combined with QACE, its
// adaptive path-selection engine.
//
// QSTP binds an ML-KEM + ML-DSA handshake to a route plan, derives
// directional AEAD keys from the shared secret, and exchanges
// self-describing encrypted frames over an untrusted mesh. QACE consumes
// live telemetry and decides whether a tunnel should keep its route, rotate
// its nonce bases, or fail over to an alternate path.
//
// # Quick Start
//
// Establishing a tunnel pair:
//
//	import (
//	    "github.com/pzverkov/qstp-go/pkg/handshake"
//	    "github.com/pzverkov/qstp-go/pkg/mesh"
//	    "github.com/pzverkov/qstp-go/pkg/qstp"
//	)
//
//	composer, _ := handshake.NewDefaultComposer()
//	store := qstp.NewInMemoryTupleStore()
//
//	route := mesh.RoutePlan{Topic: "mesh/alpha", QoS: mesh.QoSLowLatency, Epoch: 42}
//	est, _ := qstp.Establish(composer, []byte("client=a&ts=42"), peer, &route, store,
//	    qstp.DefaultSuite)
//
//	// est.PeerMetadata and est.SessionSecret travel to the responder over a
//	// control channel; the responder materializes its half without another
//	// round trip:
//	resp, _ := qstp.Hydrate(est.SessionSecret, localPeer, &route, &est.PeerMetadata,
//	    qstp.RoleResponder, qstp.DefaultSuite)
//
//	frame, _ := est.Tunnel.Seal([]byte("payload"), []byte("ctx"))
//	plain, _ := resp.Open(frame, []byte("ctx"))
//
// Adapting to telemetry:
//
//	import "github.com/pzverkov/qstp-go/pkg/qace"
//
//	engine := qace.NewSimpleQace()
//	decision, _ := est.Tunnel.ApplyQace(qace.Metrics{ThreatScore: 95}, engine)
//
// # Package Structure
//
//   - pkg/qstp: tunnel state machine, framing, replay defense, key derivation
//   - pkg/qace: adaptive path decision engines (heuristic and genetic)
//   - pkg/mesh: route plans, peer ids, and QoS classes shared by both
//   - pkg/handshake: ML-KEM/ML-DSA handshake composer and binary envelope
//   - pkg/crypto: KDF, AEAD, ML-KEM and ML-DSA primitive wrappers
//   - pkg/metrics: structured logging and pluggable tracing
//   - internal/constants: protocol sizes, labels, and tuning defaults
//   - internal/errors: error taxonomy shared by all packages
//
// # Security Properties
//
//   - Post-quantum key exchange: ML-KEM-1024 (NIST FIPS 203, Category 5)
//   - Transcript authentication: ML-DSA-87 (NIST FIPS 204)
//   - Authenticated framing: AES-256-GCM or ChaCha20-Poly1305
//   - Nonce uniqueness: directional nonce bases scoped to
//     (tunnel id, route hash, epoch), refreshed on every reroute and rekey
//   - Replay defense: monotone forward watermark plus AAD binding of every
//     frame to its tunnel, route, and sequence number
//
// A QSTP tunnel is a single-owner value: it performs no internal locking,
// and callers that share one instance across goroutines must serialize
// access themselves.
package qstpgo
