package measure

import (
	"context"
	"errors"
	"time"

	"github.com/DrC0ns0le/net-latency/internal/measure/latency"
	"github.com/DrC0ns0le/net-latency/internal/output"
	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

// Config wires a Runner to one target.
type Config struct {
	// Protocol and Target label log lines and metrics.
	Protocol string
	Target   string
	Interval time.Duration

	Dialer latency.Dialer
	Sink   output.Sink
	Logger logging.Logger
}

// Runner drives probe sessions against a single target at a fixed cadence
// and reports one outcome per iteration to the sink.
type Runner struct {
	protocol string
	target   string

	dialer latency.Dialer
	sink   output.Sink
	clock  *Clock
	logger logging.Logger
}

func NewRunner(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		protocol: cfg.Protocol,
		target:   cfg.Target,
		dialer:   cfg.Dialer,
		sink:     cfg.Sink,
		clock:    NewClock(cfg.Interval),
		logger:   logger,
	}
}

// Run loops until ctx is cancelled or the sink fails to render. Session
// errors are reported and followed by a fresh session after the pacing wait.
func (r *Runner) Run(ctx context.Context) error {
	defer unregisterLatencyMetrics(r.protocol, r.target)

	for {
		err := r.runSession(ctx)
		if ctx.Err() != nil {
			return nil
		}
		var re *output.RenderError
		if errors.As(err, &re) {
			return err
		}
		if err := r.report(output.Outcome{Err: err}); err != nil {
			return err
		}
		if err := r.wait(ctx); err != nil {
			return nil
		}
	}
}

// runSession dials a session and exchanges frames until an error occurs.
// It always returns a non-nil error.
func (r *Runner) runSession(ctx context.Context) error {
	sess, err := r.dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if r.protocol == "tcp" {
		r.logger.Infof("connected to %s", r.target)
	}
	r.clock.Reset()

	for {
		if err := sess.Exchange(ctx); err != nil {
			return err
		}
		if err := r.report(output.Outcome{Latency: r.clock.Elapsed()}); err != nil {
			return err
		}
		if err := r.wait(ctx); err != nil {
			return err
		}
	}
}

func (r *Runner) report(o output.Outcome) error {
	generateLatencyMetrics(r.protocol, r.target, o)
	if o.Err != nil {
		r.logger.Debugf("%s session failed (%s): %v", r.protocol, latency.Reason(o.Err), o.Err)
	}
	return r.sink.Render(o)
}

func (r *Runner) wait(ctx context.Context) error {
	overrun, err := r.clock.Wait(ctx)
	if err != nil {
		return err
	}
	if overrun {
		loopOverruns.WithLabelValues(r.protocol, r.target).Inc()
		r.sink.Warn("loop timeout")
	}
	return nil
}
