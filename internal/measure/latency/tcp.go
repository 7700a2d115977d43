package latency

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
)

// TCPDialer connects to a TCP echo server and performs the hello exchange.
type TCPDialer struct {
	Addr    *net.TCPAddr
	Timeout time.Duration
	Frame   Frame
}

type tcpSession struct {
	conn    *net.TCPConn
	timeout time.Duration
	req     Frame
	resp    []byte
}

// Dial connects and completes the handshake. The returned session is ready
// to exchange frames.
func (d *TCPDialer) Dial(ctx context.Context) (Session, error) {
	if len(d.Frame) < MinFrameSize {
		return nil, fmt.Errorf("invalid frame size: %d", len(d.Frame))
	}

	dialer := &net.Dialer{Timeout: d.Timeout}
	c, err := dialer.DialContext(ctx, "tcp", d.Addr.String())
	if err != nil {
		return nil, &IOError{Op: "connect", Err: errors.WithStack(err)}
	}
	conn := c.(*net.TCPConn)
	conn.SetNoDelay(true)

	stop := closeOnCancel(ctx, conn)
	defer stop()

	if err := ClientHandshake(conn, uint32(len(d.Frame)), deadline(ctx, d.Timeout)); err != nil {
		conn.Close()
		return nil, err
	}

	return &tcpSession{
		conn:    conn,
		timeout: d.Timeout,
		req:     d.Frame,
		resp:    make([]byte, len(d.Frame)),
	}, nil
}

// ClientHandshake reads the server magic and answers with the client hello.
func ClientHandshake(conn net.Conn, frameSize uint32, deadline time.Time) error {
	conn.SetDeadline(deadline)

	var buf [1]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return &IOError{Op: "read hello", Err: errors.WithStack(err)}
	}
	if buf[0] != Magic {
		return &HandshakeError{Reason: "invalid hello"}
	}
	if _, err := conn.Write(EncodeHello(frameSize)); err != nil {
		return &IOError{Op: "write hello", Err: errors.WithStack(err)}
	}
	return nil
}

// ServerHandshake sends the magic byte and reads the client hello, returning
// the frame size the client will use.
func ServerHandshake(conn net.Conn, deadline time.Time) (uint32, error) {
	conn.SetDeadline(deadline)

	if _, err := conn.Write([]byte{Magic}); err != nil {
		return 0, &IOError{Op: "write hello", Err: errors.WithStack(err)}
	}
	buf := make([]byte, HelloSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return 0, &IOError{Op: "read hello", Err: errors.WithStack(err)}
	}
	return DecodeHello(buf)
}

// Exchange writes the request frame and waits for the full echo.
func (s *tcpSession) Exchange(ctx context.Context) error {
	stop := closeOnCancel(ctx, s.conn)
	defer stop()

	s.conn.SetDeadline(deadline(ctx, s.timeout))

	if _, err := s.conn.Write(s.req); err != nil {
		return &IOError{Op: "write", Err: errors.WithStack(err)}
	}
	if _, err := io.ReadFull(s.conn, s.resp); err != nil {
		return &IOError{Op: "read", Err: errors.WithStack(err)}
	}
	if !bytes.Equal(s.req, s.resp) {
		return &IntegrityError{
			Size:     len(s.req),
			Got:      len(s.resp),
			Expected: s.req.Digest(),
			Actual:   Frame(s.resp).Digest(),
		}
	}
	return nil
}

func (s *tcpSession) Close() error {
	return s.conn.Close()
}
