package latency

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"time"

	"github.com/cespare/xxhash"
)

const (
	// Magic is the first byte on every TCP probe connection, sent by the
	// server and echoed back by the client in its hello.
	Magic byte = 0xEE

	MinFrameSize = 1
	// MaxFrameSize bounds the frame size a TCP server accepts from a hello.
	MaxFrameSize = 10_000_000
	// MaxUDPFrameSize is the largest UDP payload over IPv4.
	MaxUDPFrameSize = 65507
)

// Session is one established probe session. Exchange runs a single
// request/response iteration; any error makes the session unusable.
type Session interface {
	Exchange(ctx context.Context) error
	Close() error
}

// Dialer opens a new Session, performing any handshake the transport needs.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// Frame is the fixed request payload for TCP and UDP sessions.
type Frame []byte

// NewFrame returns a frame of the given size filled with random bytes.
func NewFrame(size int) (Frame, error) {
	if size < MinFrameSize {
		return nil, fmt.Errorf("invalid frame size: %d", size)
	}
	f := make(Frame, size)
	if _, err := rand.Read(f); err != nil {
		return nil, fmt.Errorf("error generating frame: %w", err)
	}
	return f, nil
}

// Digest returns the xxhash64 of the frame contents.
func (f Frame) Digest() uint64 {
	return xxhash.Sum64(f)
}

// deadline returns the absolute deadline for a single socket operation.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// closeOnCancel closes conn if ctx is cancelled before the returned stop
// function is called, unblocking any pending I/O.
func closeOnCancel(ctx context.Context, conn net.Conn) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		conn.Close()
	})
}
