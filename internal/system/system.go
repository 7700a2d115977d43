package system

import (
	"github.com/DrC0ns0le/net-latency/internal/config"
	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

// Node carries process-wide state shared by the servers and the probe.
type Node struct {
	// StopCh is closed on SIGINT/SIGTERM.
	StopCh chan struct{}

	Config   *config.Config
	Endpoint config.Endpoint

	Logger logging.Logger
}
