package wire

import (
	"testing"

	"chatd/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{
		Type:         Text,
		SequenceSize: 1,
		Sequence:     0,
		RequestID:    42,
		Payload:      []byte(`{"function":"ping"}`),
	}
	decoded, err := Decode(Encode(f))
	require.NoError(t, err)
	assert.Equal(t, f, decoded)
}

func TestDecodeEmptyPayloadAccepted(t *testing.T) {
	f := Frame{Type: HeartBeat}
	decoded, err := Decode(Encode(f))
	require.NoError(t, err)
	assert.Empty(t, decoded.Payload)
	assert.Equal(t, HeaderSize, len(Encode(f)))
}

func TestDecodeTooSmall(t *testing.T) {
	_, err := Decode(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, errs.ErrDataTooSmall)
}

func TestDecodeLengthMismatch(t *testing.T) {
	f := Frame{Type: Text, Payload: []byte("hi")}
	buf := Encode(f)
	buf = append(buf, 0xFF) // length field no longer matches buffer size
	_, err := Decode(buf)
	assert.ErrorIs(t, err, errs.ErrInvalidData)
}

func TestDecodeLengthBelowHeaderSize(t *testing.T) {
	buf := make([]byte, HeaderSize)
	// length field (first 4 bytes) declares less than HeaderSize
	buf[3] = 10
	_, err := Decode(buf)
	assert.ErrorIs(t, err, errs.ErrInvalidData)
}
