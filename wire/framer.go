package wire

import (
	"encoding/binary"

	"chatd/tools/errs"
)

// Framer accumulates bytes from a stream and yields complete frames,
// mirroring the original's Package<T>: write appends, canRead reports
// whether a full frame is at the head of the buffer, read consumes it.
type Framer struct {
	buf []byte
}

func NewFramer() *Framer {
	return &Framer{}
}

// Write appends newly read bytes to the internal buffer.
func (f *Framer) Write(b []byte) {
	f.buf = append(f.buf, b...)
}

// CanRead reports whether a complete frame is present at the head of the
// buffer.
func (f *Framer) CanRead() bool {
	if len(f.buf) < HeaderSize {
		return false
	}
	length := binary.BigEndian.Uint32(f.buf[0:4])
	return length <= uint32(len(f.buf))
}

func (f *Framer) firstMsgLength() uint32 {
	if len(f.buf) < HeaderSize {
		return 0
	}
	return binary.BigEndian.Uint32(f.buf[0:4])
}

// Read removes and returns the first complete frame's raw bytes. Callers
// pass the result to Decode.
func (f *Framer) Read() ([]byte, error) {
	if !f.CanRead() {
		return nil, errs.ErrIncompletePackage
	}
	n := f.firstMsgLength()
	if n == 0 {
		return nil, errs.ErrEmptyLength
	}
	out := make([]byte, n)
	copy(out, f.buf[:n])
	f.buf = f.buf[n:]
	return out, nil
}
