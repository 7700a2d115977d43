package latency

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	probing "github.com/prometheus-community/pro-bing"
)

// Pinger sends a single ICMP echo request and waits for the reply.
type Pinger interface {
	Ping(ctx context.Context, ip net.IP, timeout time.Duration) error
}

// ProbingPinger implements Pinger on top of pro-bing.
type ProbingPinger struct {
	// Privileged selects raw ICMP sockets instead of unprivileged UDP pings.
	Privileged bool
	Source     net.IP
}

func (p *ProbingPinger) Ping(ctx context.Context, ip net.IP, timeout time.Duration) error {
	pinger, err := probing.NewPinger(ip.String())
	if err != nil {
		return &IOError{Op: "ping", Err: errors.WithStack(err)}
	}
	if p.Source != nil {
		pinger.Source = p.Source.String()
	}
	pinger.SetPrivileged(p.Privileged)
	pinger.Count = 1
	pinger.Timeout = timeout

	if err := pinger.RunWithContext(ctx); err != nil { // Blocks until finished.
		return &IOError{Op: "ping", Err: errors.WithStack(err)}
	}
	if pinger.Statistics().PacketsRecv == 0 {
		return &IOError{Op: "ping", Err: fmt.Errorf("no reply from %s within %v", ip, timeout)}
	}
	return nil
}

// ICMPDialer hands out sessions that ping IP on every exchange. ICMP has no
// connection, so Dial never fails.
type ICMPDialer struct {
	IP      net.IP
	Timeout time.Duration
	Pinger  Pinger
}

type icmpSession struct {
	d *ICMPDialer
}

func (d *ICMPDialer) Dial(ctx context.Context) (Session, error) {
	return &icmpSession{d: d}, nil
}

func (s *icmpSession) Exchange(ctx context.Context) error {
	return s.d.Pinger.Ping(ctx, s.d.IP, s.d.Timeout)
}

func (s *icmpSession) Close() error {
	return nil
}
