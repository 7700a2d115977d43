package measure

import (
	"math"

	"github.com/DrC0ns0le/net-latency/internal/measure/latency"
	"github.com/DrC0ns0le/net-latency/internal/output"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	latencyStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "probe_status",
		Help: "outcome of the last probe iteration, 1 for success",
	}, []string{"protocol", "target"})
	latencyDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "probe_latency_seconds",
		Help: "round-trip time of the last probe iteration in seconds",
	}, []string{"protocol", "target"})
	latencyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "probe_failures_total",
		Help: "failed probe iterations by reason",
	}, []string{"protocol", "target", "reason"})
	loopOverruns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "probe_loop_overruns_total",
		Help: "iterations that ran past their pacing deadline",
	}, []string{"protocol", "target"})
)

func generateLatencyMetrics(protocol, target string, o output.Outcome) {
	if o.Err != nil {
		latencyStatus.WithLabelValues(protocol, target).Set(0)
		latencyDuration.WithLabelValues(protocol, target).Set(math.NaN())
		latencyFailures.WithLabelValues(protocol, target, latency.Reason(o.Err)).Inc()
		return
	}
	latencyStatus.WithLabelValues(protocol, target).Set(1)
	latencyDuration.WithLabelValues(protocol, target).Set(o.Latency.Seconds())
}

func unregisterLatencyMetrics(protocol, target string) {
	latencyStatus.DeleteLabelValues(protocol, target)
	latencyDuration.DeleteLabelValues(protocol, target)
	loopOverruns.DeleteLabelValues(protocol, target)
	latencyFailures.DeletePartialMatch(prometheus.Labels{"protocol": protocol, "target": target})
}
