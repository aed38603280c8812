// Package wire implements the length-prefixed binary frame envelope (spec
// §3, §4.1) and the incremental framer that assembles frames out of a byte
// stream (§4.2). Both are grounded in the original C++ reference's
// DataPackage (original_source/utils/network/dataPackage.{hpp,cpp}) and
// Package<T> (original_source/utils/network/package.hpp): a 24-byte
// network-order header, followed by a payload whose size is
// length-header-size.
package wire

import (
	"encoding/binary"

	"chatd/tools/errs"
)

// Type is the frame's payload kind (§3).
type Type uint32

const (
	Unknown    Type = 0
	Text       Type = 1
	Binary     Type = 2
	FileStream Type = 3
	HeartBeat  Type = 4
)

// HeaderSize is the fixed header length: length(4) + type(4) +
// sequenceSize(4) + sequence(4) + requestID(8).
const HeaderSize = 24

// Frame is one on-the-wire envelope.
type Frame struct {
	Type         Type
	SequenceSize uint32
	Sequence     uint32
	RequestID    int64
	Payload      []byte
}

// Encode renders f into its canonical big-endian wire representation.
func Encode(f Frame) []byte {
	total := HeaderSize + len(f.Payload)
	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:4], uint32(total))
	binary.BigEndian.PutUint32(buf[4:8], uint32(f.Type))
	binary.BigEndian.PutUint32(buf[8:12], f.SequenceSize)
	binary.BigEndian.PutUint32(buf[12:16], f.Sequence)
	binary.BigEndian.PutUint64(buf[16:24], uint64(f.RequestID))
	copy(buf[24:], f.Payload)
	return buf
}

// Decode parses a single complete frame out of buf. buf must contain
// exactly one frame (the framer is responsible for slicing the stream
// into frame-sized chunks before calling Decode).
func Decode(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, errs.ErrDataTooSmall
	}
	length := binary.BigEndian.Uint32(buf[0:4])
	if int(length) != len(buf) || length < HeaderSize {
		return Frame{}, errs.ErrInvalidData
	}
	f := Frame{
		Type:         Type(binary.BigEndian.Uint32(buf[4:8])),
		SequenceSize: binary.BigEndian.Uint32(buf[8:12]),
		Sequence:     binary.BigEndian.Uint32(buf[12:16]),
		RequestID:    int64(binary.BigEndian.Uint64(buf[16:24])),
	}
	if length > HeaderSize {
		payload := make([]byte, length-HeaderSize)
		copy(payload, buf[24:])
		f.Payload = payload
	}
	return f, nil
}
