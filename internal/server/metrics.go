package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	echoConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "echo_connections",
		Help: "open echo connections",
	}, []string{"protocol"})
	echoFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_frames_total",
		Help: "frames echoed back to clients",
	}, []string{"protocol"})
	echoErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_errors_total",
		Help: "echo connections or datagrams that ended in an error",
	}, []string{"protocol"})
)
