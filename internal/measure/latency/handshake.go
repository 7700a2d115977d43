package latency

import (
	"encoding/binary"
	"fmt"
)

// HelloSize is the length of the client hello: magic byte + u32 LE frame size.
const HelloSize = 5

// EncodeHello builds the client hello announcing the frame size.
func EncodeHello(frameSize uint32) []byte {
	buf := make([]byte, HelloSize)
	buf[0] = Magic
	binary.LittleEndian.PutUint32(buf[1:], frameSize)
	return buf
}

// DecodeHello validates a client hello and returns the announced frame size.
// Sizes outside [MinFrameSize, MaxFrameSize] are rejected.
func DecodeHello(buf []byte) (uint32, error) {
	if len(buf) != HelloSize {
		return 0, &HandshakeError{Reason: fmt.Sprintf("invalid hello length: %d", len(buf))}
	}
	if buf[0] != Magic {
		return 0, &HandshakeError{Reason: "invalid hello"}
	}
	size := binary.LittleEndian.Uint32(buf[1:])
	if size < MinFrameSize || size > MaxFrameSize {
		return 0, &HandshakeError{Reason: fmt.Sprintf("invalid frame size: %d", size)}
	}
	return size, nil
}
