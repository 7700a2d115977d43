package latency

import (
	"errors"
	"fmt"
)

// HandshakeError is returned when the peer does not speak the probe protocol
// or announces an unusable frame size.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string {
	return "handshake failed: " + e.Reason
}

// IntegrityError is returned when an echoed frame differs from the request.
type IntegrityError struct {
	Size     int
	Got      int
	Expected uint64
	Actual   uint64
}

func (e *IntegrityError) Error() string {
	if e.Size != e.Got {
		return fmt.Sprintf("invalid packet: expected %d bytes, got %d", e.Size, e.Got)
	}
	return fmt.Sprintf("invalid packet: digest %016x, expected %016x", e.Actual, e.Expected)
}

// IOError wraps a transport failure: timeouts, refused or reset connections.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Reason classifies a session error for logging and metric labels.
func Reason(err error) string {
	var (
		he *HandshakeError
		ie *IntegrityError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &he):
		return "handshake"
	case errors.As(err, &ie):
		return "integrity"
	default:
		return "io"
	}
}
