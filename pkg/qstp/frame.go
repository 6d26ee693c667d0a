package qstp

import (
	"encoding/binary"
	"fmt"

	"github.com/pzverkov/qstp-go/internal/constants"
	qerrors "github.com/pzverkov/qstp-go/internal/errors"
)

// Frame is one sealed payload in transit. Everything except the ciphertext
// travels in the clear; the tunnel id, route hash, and sequence number are
// additionally bound into the AEAD associated data, so tampering with any
// of them fails authentication at the receiver.
type Frame struct {
	TunnelID   TunnelID
	Topic      string
	Seq        uint64
	Nonce      [constants.AEADNonceSize]byte
	RouteHash  [constants.RouteHashSize]byte
	RouteEpoch uint64
	Ciphertext []byte
}

// frameFixedSize is the serialized size of everything except the two
// variable-length fields (topic and ciphertext) and their length prefixes.
const frameFixedSize = constants.TunnelIDSize + constants.AEADNonceSize +
	constants.RouteHashSize + 8 + 8

// EncodedSize returns the serialized frame size.
func (f *Frame) EncodedSize() int {
	return frameFixedSize + 2 + len(f.Topic) + 4 + len(f.Ciphertext)
}

// Encode serializes the frame. Layout, all integers little-endian:
// tunnel id, topic (u16 length prefix), seq, nonce, route hash, route
// epoch, ciphertext (u32 length prefix).
func (f *Frame) Encode() ([]byte, error) {
	if len(f.Topic) > constants.MaxEnvelopeSectionSize {
		return nil, fmt.Errorf("%w: topic %d bytes", qerrors.ErrSectionTooLarge, len(f.Topic))
	}

	out := make([]byte, 0, f.EncodedSize())
	out = append(out, f.TunnelID[:]...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(f.Topic)))
	out = append(out, f.Topic...)
	out = binary.LittleEndian.AppendUint64(out, f.Seq)
	out = append(out, f.Nonce[:]...)
	out = append(out, f.RouteHash[:]...)
	out = binary.LittleEndian.AppendUint64(out, f.RouteEpoch)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(f.Ciphertext)))
	out = append(out, f.Ciphertext...)
	return out, nil
}

// DecodeFrame parses a serialized frame, copying both variable-length
// sections out of the input buffer.
func DecodeFrame(data []byte) (*Frame, error) {
	frame := &Frame{}
	cursor := data

	take := func(n int) ([]byte, error) {
		if len(cursor) < n {
			return nil, fmt.Errorf("%w: frame truncated", qerrors.ErrInvalidInput)
		}
		chunk := cursor[:n]
		cursor = cursor[n:]
		return chunk, nil
	}

	chunk, err := take(constants.TunnelIDSize)
	if err != nil {
		return nil, err
	}
	copy(frame.TunnelID[:], chunk)

	chunk, err = take(2)
	if err != nil {
		return nil, err
	}
	topicLen := int(binary.LittleEndian.Uint16(chunk))
	chunk, err = take(topicLen)
	if err != nil {
		return nil, err
	}
	frame.Topic = string(chunk)

	chunk, err = take(8)
	if err != nil {
		return nil, err
	}
	frame.Seq = binary.LittleEndian.Uint64(chunk)

	chunk, err = take(constants.AEADNonceSize)
	if err != nil {
		return nil, err
	}
	copy(frame.Nonce[:], chunk)

	chunk, err = take(constants.RouteHashSize)
	if err != nil {
		return nil, err
	}
	copy(frame.RouteHash[:], chunk)

	chunk, err = take(8)
	if err != nil {
		return nil, err
	}
	frame.RouteEpoch = binary.LittleEndian.Uint64(chunk)

	chunk, err = take(4)
	if err != nil {
		return nil, err
	}
	ctLen := int(binary.LittleEndian.Uint32(chunk))
	chunk, err = take(ctLen)
	if err != nil {
		return nil, err
	}
	frame.Ciphertext = append([]byte(nil), chunk...)

	if len(cursor) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after frame", qerrors.ErrInvalidInput, len(cursor))
	}
	return frame, nil
}
