package qstp

import (
	"encoding/binary"
	"fmt"

	"github.com/pzverkov/qstp-go/internal/constants"
	qerrors "github.com/pzverkov/qstp-go/internal/errors"
	"github.com/pzverkov/qstp-go/pkg/crypto"
	"github.com/pzverkov/qstp-go/pkg/handshake"
	"github.com/pzverkov/qstp-go/pkg/mesh"
)

// TuplePointer addresses an encrypted metadata record in a TupleStore.
// Pointers are content-derived, so the same record always lands at the
// same address.
type TuplePointer [constants.TuplePointerSize]byte

// TupleRecord is the encrypted metadata blob as stored. The nonce travels
// with the ciphertext so any store capable of holding opaque bytes works.
type TupleRecord struct {
	Nonce      [constants.AEADNonceSize]byte
	Ciphertext []byte
}

// TupleStore is the persistence contract for encrypted tunnel metadata.
// Implementations decide durability; the protocol only needs put and
// fetch by pointer.
type TupleStore interface {
	Put(record TupleRecord) (TuplePointer, error)
	Fetch(pointer TuplePointer) (*TupleRecord, bool)
}

// TupleMetadataPlain is the decrypted metadata content: enough for an
// operator holding the tuple key to audit which keys and route produced a
// tunnel, without ever exposing session secrets.
type TupleMetadataPlain struct {
	TunnelID      TunnelID
	KEMKeyID      [constants.KeyIDSize]byte
	SigningKeyID  [constants.KeyIDSize]byte
	Threshold     handshake.ThresholdPolicy
	RouteHash     [constants.RouteHashSize]byte
	QoS           mesh.QoSClass
	RouteEpoch    uint64
	EstablishedAt uint64
}

// tupleMetadataSize is the fixed serialized size of a metadata record.
const tupleMetadataSize = constants.TunnelIDSize + 2*constants.KeyIDSize +
	2 + constants.RouteHashSize + 1 + 8 + 8

// ToBytes serializes the metadata. Layout, integers little-endian: tunnel
// id, KEM key id, signing key id, threshold t and n, route hash, QoS wire
// byte, route epoch, established-at.
func (m *TupleMetadataPlain) ToBytes() []byte {
	out := make([]byte, 0, tupleMetadataSize)
	out = append(out, m.TunnelID[:]...)
	out = append(out, m.KEMKeyID[:]...)
	out = append(out, m.SigningKeyID[:]...)
	out = append(out, m.Threshold.T, m.Threshold.N)
	out = append(out, m.RouteHash[:]...)
	out = append(out, m.QoS.Byte())
	out = binary.LittleEndian.AppendUint64(out, m.RouteEpoch)
	out = binary.LittleEndian.AppendUint64(out, m.EstablishedAt)
	return out
}

// TupleMetadataFromBytes parses a serialized metadata record.
func TupleMetadataFromBytes(data []byte) (*TupleMetadataPlain, error) {
	if len(data) < tupleMetadataSize {
		return nil, fmt.Errorf("%w: %d bytes", qerrors.ErrMetadataTruncated, len(data))
	}

	m := &TupleMetadataPlain{}
	offset := 0
	offset += copy(m.TunnelID[:], data[offset:])
	offset += copy(m.KEMKeyID[:], data[offset:])
	offset += copy(m.SigningKeyID[:], data[offset:])
	m.Threshold.T = data[offset]
	m.Threshold.N = data[offset+1]
	offset += 2
	offset += copy(m.RouteHash[:], data[offset:])

	qos, err := mesh.QoSFromByte(data[offset])
	if err != nil {
		return nil, err
	}
	m.QoS = qos
	offset++

	m.RouteEpoch = binary.LittleEndian.Uint64(data[offset:])
	offset += 8
	m.EstablishedAt = binary.LittleEndian.Uint64(data[offset:])
	return m, nil
}

// InMemoryTupleStore keeps records in a map keyed by content-derived
// pointer. Suitable for tests and single-process deployments; not safe
// for concurrent use.
type InMemoryTupleStore struct {
	records map[TuplePointer]TupleRecord
}

// NewInMemoryTupleStore creates an empty store.
func NewInMemoryTupleStore() *InMemoryTupleStore {
	return &InMemoryTupleStore{records: make(map[TuplePointer]TupleRecord)}
}

// Put stores a record under a pointer derived from its nonce and
// ciphertext.
func (s *InMemoryTupleStore) Put(record TupleRecord) (TuplePointer, error) {
	digest := crypto.Digest(record.Nonce[:], record.Ciphertext)

	var pointer TuplePointer
	copy(pointer[:], digest[:constants.TuplePointerSize])
	s.records[pointer] = record
	return pointer, nil
}

// Fetch returns the record at pointer, if present.
func (s *InMemoryTupleStore) Fetch(pointer TuplePointer) (*TupleRecord, bool) {
	record, ok := s.records[pointer]
	if !ok {
		return nil, false
	}
	return &record, true
}

// Len returns the number of stored records.
func (s *InMemoryTupleStore) Len() int {
	return len(s.records)
}
