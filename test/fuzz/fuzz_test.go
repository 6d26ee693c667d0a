// Package fuzz provides fuzz tests for security-critical parsing
// functions.
//
// Run fuzz tests with:
//
//	go test -fuzz=FuzzDecodeEnvelope -fuzztime=30s ./test/fuzz/
//	go test -fuzz=FuzzDecodeFrame -fuzztime=30s ./test/fuzz/
//	go test -fuzz=FuzzTupleMetadata -fuzztime=30s ./test/fuzz/
//	go test -fuzz=FuzzParseMLKEMPublicKey -fuzztime=30s ./test/fuzz/
package fuzz

import (
	"bytes"
	"testing"

	"github.com/pzverkov/qstp-go/internal/constants"
	"github.com/pzverkov/qstp-go/pkg/crypto"
	"github.com/pzverkov/qstp-go/pkg/handshake"
	"github.com/pzverkov/qstp-go/pkg/mesh"
	"github.com/pzverkov/qstp-go/pkg/qstp"
)

// FuzzDecodeEnvelope fuzzes the handshake envelope parser, the first
// code that touches untrusted bytes off the mesh.
func FuzzDecodeEnvelope(f *testing.F) {
	if composer, err := handshake.NewDefaultComposer(); err == nil {
		if artifacts, err := composer.BuildArtifacts([]byte("seed")); err == nil {
			if encoded, err := handshake.EnvelopeFromArtifacts(artifacts).Encode(); err == nil {
				f.Add(encoded)
				f.Add(encoded[:constants.EnvelopeHeaderSize])
			}
		}
	}
	f.Add([]byte{})
	f.Add([]byte("PQC1"))
	f.Add(make([]byte, constants.EnvelopeHeaderSize))

	f.Fuzz(func(t *testing.T, data []byte) {
		envelope, err := handshake.DecodeEnvelope(data)
		if err != nil {
			return
		}
		// A decoded envelope must re-encode to the same bytes.
		reencoded, err := envelope.Encode()
		if err != nil {
			t.Fatalf("decoded envelope failed to encode: %v", err)
		}
		if !bytes.Equal(reencoded, data) {
			t.Error("envelope round trip diverged")
		}
	})
}

// FuzzDecodeFrame fuzzes the tunnel frame parser.
func FuzzDecodeFrame(f *testing.F) {
	seed := &qstp.Frame{Topic: "mesh/fuzz", Seq: 7, RouteEpoch: 3, Ciphertext: []byte("ct")}
	if encoded, err := seed.Encode(); err == nil {
		f.Add(encoded)
	}
	f.Add([]byte{})
	f.Add(make([]byte, 16))
	f.Add(make([]byte, 128))

	f.Fuzz(func(t *testing.T, data []byte) {
		frame, err := qstp.DecodeFrame(data)
		if err != nil {
			return
		}
		reencoded, err := frame.Encode()
		if err != nil {
			t.Fatalf("decoded frame failed to encode: %v", err)
		}
		if !bytes.Equal(reencoded, data) {
			t.Error("frame round trip diverged")
		}
	})
}

// FuzzTupleMetadata fuzzes the tuple metadata parser.
func FuzzTupleMetadata(f *testing.F) {
	plain := qstp.TupleMetadataPlain{QoS: mesh.QoSControl, RouteEpoch: 9, EstablishedAt: 1}
	f.Add(plain.ToBytes())
	f.Add([]byte{})
	f.Add(make([]byte, 64))

	f.Fuzz(func(t *testing.T, data []byte) {
		decoded, err := qstp.TupleMetadataFromBytes(data)
		if err != nil {
			return
		}
		if !bytes.Equal(decoded.ToBytes(), data[:len(decoded.ToBytes())]) {
			t.Error("metadata round trip diverged")
		}
	})
}

// FuzzParseMLKEMPublicKey fuzzes the ML-KEM public key parser.
func FuzzParseMLKEMPublicKey(f *testing.F) {
	if kp, err := crypto.GenerateMLKEMKeyPair(); err == nil {
		f.Add(kp.EncapsulationKey.Bytes())
	}
	f.Add([]byte{})
	f.Add(make([]byte, constants.MLKEMPublicKeySize-1))
	f.Add(make([]byte, constants.MLKEMPublicKeySize))

	f.Fuzz(func(t *testing.T, data []byte) {
		pk, err := crypto.ParseMLKEMPublicKey(data)
		if err != nil {
			return
		}
		if len(pk.Bytes()) != constants.MLKEMPublicKeySize {
			t.Errorf("reserialized key has wrong size: %d", len(pk.Bytes()))
		}
	})
}
