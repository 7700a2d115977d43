package netctl

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// Egress describes how the kernel routes packets to a destination.
type Egress struct {
	Interface string
	Src       net.IP
	Gateway   net.IP
}

func (e Egress) String() string {
	s := "dev " + e.Interface
	if e.Gateway != nil {
		s = "via " + e.Gateway.String() + " " + s
	}
	if e.Src != nil {
		s += " src " + e.Src.String()
	}
	return s
}

// LookupEgress asks the kernel for the route it would use to reach dst.
func LookupEgress(dst net.IP) (Egress, error) {
	if dst == nil {
		return Egress{}, fmt.Errorf("destination cannot be nil")
	}

	routes, err := netlink.RouteGet(dst)
	if err != nil {
		return Egress{}, fmt.Errorf("failed to get route to %s: %v", dst, err)
	}
	if len(routes) == 0 {
		return Egress{}, fmt.Errorf("no route to %s", dst)
	}
	r := routes[0]

	link, err := netlink.LinkByIndex(r.LinkIndex)
	if err != nil {
		return Egress{}, fmt.Errorf("failed to get link %d: %v", r.LinkIndex, err)
	}

	return Egress{
		Interface: link.Attrs().Name,
		Src:       r.Src,
		Gateway:   r.Gw,
	}, nil
}
