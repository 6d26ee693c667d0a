// Package benchmark provides performance benchmarks for the QSTP mesh
// tunnel system.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./test/benchmark/
//
// For profiling:
//
//	go test -bench=. -cpuprofile=cpu.prof -memprofile=mem.prof ./test/benchmark/
package benchmark

import (
	"testing"

	"github.com/pzverkov/qstp-go/internal/constants"
	"github.com/pzverkov/qstp-go/pkg/crypto"
	"github.com/pzverkov/qstp-go/pkg/handshake"
	"github.com/pzverkov/qstp-go/pkg/mesh"
	"github.com/pzverkov/qstp-go/pkg/qace"
	"github.com/pzverkov/qstp-go/pkg/qstp"
)

// --- Cryptographic Primitive Benchmarks ---

func BenchmarkSecureRandom32(b *testing.B) {
	buf := make([]byte, 32)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		crypto.SecureRandom(buf)
	}
}

func BenchmarkKDFExpand44(b *testing.B) {
	secret := make([]byte, 32)
	context := make([]byte, 56)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		crypto.Expand(secret, []byte("role:init->resp"), context, constants.DirectionalMaterialSize)
	}
}

// --- ML-KEM-1024 Benchmarks ---

func BenchmarkMLKEMKeyGeneration(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := crypto.GenerateMLKEMKeyPair(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMLKEMEncapsulation(b *testing.B) {
	kp, _ := crypto.GenerateMLKEMKeyPair()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := crypto.MLKEMEncapsulate(kp.EncapsulationKey); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMLKEMDecapsulation(b *testing.B) {
	kp, _ := crypto.GenerateMLKEMKeyPair()
	ciphertext, _, _ := crypto.MLKEMEncapsulate(kp.EncapsulationKey)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := crypto.MLKEMDecapsulate(kp.DecapsulationKey, ciphertext); err != nil {
			b.Fatal(err)
		}
	}
}

// --- ML-DSA-87 Benchmarks ---

func BenchmarkMLDSASign(b *testing.B) {
	kp, _ := crypto.GenerateMLDSAKeyPair()
	message := make([]byte, 1600+32+64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		crypto.MLDSASign(kp.PrivateKey, message)
	}
}

func BenchmarkMLDSAVerify(b *testing.B) {
	kp, _ := crypto.GenerateMLDSAKeyPair()
	message := make([]byte, 1600+32+64)
	signature := crypto.MLDSASign(kp.PrivateKey, message)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !crypto.MLDSAVerify(kp.PublicKey, message, signature) {
			b.Fatal("verification failed")
		}
	}
}

// --- AEAD Benchmarks ---

func benchmarkSeal(b *testing.B, suite constants.CipherSuite, size int) {
	key := make([]byte, constants.AEADKeySize)
	cipher, err := crypto.NewAEAD(suite, key)
	if err != nil {
		b.Fatal(err)
	}
	nonce := make([]byte, constants.AEADNonceSize)
	plaintext := make([]byte, size)
	aad := make([]byte, 56)

	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cipher.Seal(nonce, plaintext, aad); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAESGCMSeal1K(b *testing.B)    { benchmarkSeal(b, constants.SuiteAES256GCM, 1024) }
func BenchmarkAESGCMSeal64K(b *testing.B)   { benchmarkSeal(b, constants.SuiteAES256GCM, 64*1024) }
func BenchmarkChaCha20Seal1K(b *testing.B)  { benchmarkSeal(b, constants.SuiteChaCha20Poly1305, 1024) }
func BenchmarkChaCha20Seal64K(b *testing.B) { benchmarkSeal(b, constants.SuiteChaCha20Poly1305, 64*1024) }

// --- Handshake Benchmarks ---

func BenchmarkComposerBuildArtifacts(b *testing.B) {
	composer, err := handshake.NewDefaultComposer()
	if err != nil {
		b.Fatal(err)
	}
	request := []byte("client=bench")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := composer.BuildArtifacts(request); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Tunnel Benchmarks ---

func benchRoute() mesh.RoutePlan {
	return mesh.RoutePlan{
		Topic: "mesh/bench",
		Hops:  []mesh.PeerID{mesh.DerivePeerID("relay-a"), mesh.DerivePeerID("relay-b")},
		QoS:   mesh.QoSLowLatency,
		Epoch: 1,
	}
}

func benchTunnelPair(b *testing.B, suite constants.CipherSuite) (*qstp.Tunnel, *qstp.Tunnel) {
	b.Helper()
	composer, err := handshake.NewDefaultComposer()
	if err != nil {
		b.Fatal(err)
	}
	route := benchRoute()
	est, err := qstp.Establish(composer, []byte("client=bench"), mesh.DerivePeerID("responder"),
		&route, qstp.NewInMemoryTupleStore(), suite)
	if err != nil {
		b.Fatal(err)
	}
	installed := est.Tunnel.Route()
	responder, err := qstp.Hydrate(est.SessionSecret, mesh.DerivePeerID("initiator"),
		&installed, &est.PeerMetadata, qstp.RoleResponder, suite)
	if err != nil {
		b.Fatal(err)
	}
	return est.Tunnel, responder
}

func BenchmarkTunnelEstablish(b *testing.B) {
	composer, err := handshake.NewDefaultComposer()
	if err != nil {
		b.Fatal(err)
	}
	store := qstp.NewInMemoryTupleStore()
	route := benchRoute()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := qstp.Establish(composer, []byte("client=bench"),
			mesh.DerivePeerID("responder"), &route, store, qstp.DefaultSuite); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkSealOpen(b *testing.B, suite constants.CipherSuite, size int) {
	initiator, responder := benchTunnelPair(b, suite)
	payload := make([]byte, size)

	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		frame, err := initiator.Seal(payload, nil)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := responder.Open(frame, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTunnelSealOpenAES1K(b *testing.B) {
	benchmarkSealOpen(b, constants.SuiteAES256GCM, 1024)
}

func BenchmarkTunnelSealOpenChaCha1K(b *testing.B) {
	benchmarkSealOpen(b, constants.SuiteChaCha20Poly1305, 1024)
}

func BenchmarkFrameCodec(b *testing.B) {
	initiator, _ := benchTunnelPair(b, qstp.DefaultSuite)
	frame, err := initiator.Seal(make([]byte, 1024), nil)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		encoded, err := frame.Encode()
		if err != nil {
			b.Fatal(err)
		}
		if _, err := qstp.DecodeFrame(encoded); err != nil {
			b.Fatal(err)
		}
	}
}

// --- QACE Benchmarks ---

func benchQaceRequest() *qace.Request {
	return &qace.Request{
		TelemetryEpoch: 7,
		Metrics: qace.Metrics{
			LatencyMS:     12,
			LossBPS:       3_000,
			ThreatScore:   40,
			JitterMS:      4,
			BandwidthMbps: 80,
		},
		PathSet: qace.PathSet{
			Primary: benchRoute(),
			Alternates: []mesh.RoutePlan{
				{Topic: "mesh/bench/alt-1", QoS: mesh.QoSControl, Epoch: 2},
				{Topic: "mesh/bench/alt-2", QoS: mesh.QoSGossip, Epoch: 3},
			},
		},
	}
}

func BenchmarkSimpleQaceEvaluate(b *testing.B) {
	engine := qace.NewSimpleQace()
	request := benchQaceRequest()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Evaluate(request); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGaQaceEvaluate(b *testing.B) {
	config := qace.DefaultGaConfig()
	config.Seed = 1
	engine := qace.NewGaQace(config, qace.DefaultWeights())
	request := benchQaceRequest()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Evaluate(request); err != nil {
			b.Fatal(err)
		}
	}
}
