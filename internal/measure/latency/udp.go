package latency

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
)

// UDPDialer binds an ephemeral local socket used to send frames to Addr.
type UDPDialer struct {
	Addr    *net.UDPAddr
	Timeout time.Duration
	Frame   Frame
}

type udpSession struct {
	conn    *net.UDPConn
	addr    *net.UDPAddr
	timeout time.Duration
	req     Frame
	// one byte larger than the request so oversized echoes are detected
	resp []byte
}

func (d *UDPDialer) Dial(ctx context.Context) (Session, error) {
	if len(d.Frame) < MinFrameSize || len(d.Frame) > MaxUDPFrameSize {
		return nil, fmt.Errorf("invalid frame size: %d", len(d.Frame))
	}

	local := &net.UDPAddr{IP: net.IPv4zero}
	if d.Addr.IP.To4() == nil {
		local.IP = net.IPv6unspecified
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, &IOError{Op: "bind", Err: errors.WithStack(err)}
	}

	return &udpSession{
		conn:    conn,
		addr:    d.Addr,
		timeout: d.Timeout,
		req:     d.Frame,
		resp:    make([]byte, len(d.Frame)+1),
	}, nil
}

func (s *udpSession) Exchange(ctx context.Context) error {
	stop := closeOnCancel(ctx, s.conn)
	defer stop()

	s.conn.SetDeadline(deadline(ctx, s.timeout))

	if _, err := s.conn.WriteToUDP(s.req, s.addr); err != nil {
		return &IOError{Op: "send", Err: errors.WithStack(err)}
	}
	n, _, err := s.conn.ReadFromUDP(s.resp)
	if err != nil {
		return &IOError{Op: "recv", Err: errors.WithStack(err)}
	}
	if n != len(s.req) || !bytes.Equal(s.req, s.resp[:n]) {
		return &IntegrityError{
			Size:     len(s.req),
			Got:      n,
			Expected: s.req.Digest(),
			Actual:   Frame(s.resp[:n]).Digest(),
		}
	}
	return nil
}

func (s *udpSession) Close() error {
	return s.conn.Close()
}
