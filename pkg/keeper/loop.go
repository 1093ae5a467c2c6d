// Package keeper runs the reconnection loop: probe, record the verdict in
// an observable cell, log in through the portal while disconnected, sleep,
// repeat.
//
// Everything runs on the caller's goroutine. Cancelling the context stops
// the loop at the next probe or during the sleep; a login in progress sees
// the same context and tears its browser session down.
package keeper

import (
	"context"
	"time"

	"github.com/entrhq/portalkeeper/pkg/logging"
	"github.com/entrhq/portalkeeper/pkg/observable"
	"github.com/entrhq/portalkeeper/pkg/status"
)

// DefaultInterval is used when Options.Interval is not positive.
const DefaultInterval = 10 * time.Second

// Prober reports internet reachability. *probe.Prober implements it.
type Prober interface {
	IsReachable(ctx context.Context) bool
}

// Recoverer restores connectivity. *portal.Driver implements it.
type Recoverer interface {
	Login(ctx context.Context) error
}

// Options configures a Loop.
type Options struct {
	Interval time.Duration
	Reporter status.Reporter
	Logger   *logging.Logger
}

// Loop owns the connectivity state. The cell stores "disconnected"; it
// starts true and its first write always notifies.
type Loop struct {
	state     *observable.Cell[bool]
	prober    Prober
	recoverer Recoverer
	reporter  status.Reporter
	interval  time.Duration
	log       *logging.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a loop.
func New(prober Prober, recoverer Recoverer, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Reporter == nil {
		opts.Reporter = status.Multi{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	l := &Loop{
		state:     observable.NewWithInitial("disconnected", true),
		prober:    prober,
		recoverer: recoverer,
		reporter:  opts.Reporter,
		interval:  opts.Interval,
		log:       opts.Logger,
		sleep:     sleep,
	}
	l.state.SetObserver(l.onTransition)
	return l
}

func (l *Loop) onTransition(disconnected bool) {
	if disconnected {
		l.log.Warnf("network disconnected")
	} else {
		l.log.Infof("network connected")
	}
	l.reporter.Transition(disconnected)
}

// Disconnected reports the last recorded state.
func (l *Loop) Disconnected() bool {
	return l.state.Get()
}

// Cycle runs one probe and, if the network is down, one login attempt. The
// login error is returned after it has been reported.
func (l *Loop) Cycle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	reachable := l.prober.IsReachable(ctx)
	// a probe cut short by shutdown reads as disconnected
	if err := ctx.Err(); err != nil {
		return err
	}

	l.state.Set(!reachable)
	if !l.state.Get() {
		return nil
	}

	l.reporter.RecoveryStarted()
	l.log.Infof("starting portal login")

	start := time.Now()
	if err := l.recoverer.Login(ctx); err != nil {
		if ctx.Err() != nil {
			l.log.Infof("portal login interrupted: %v", err)
			return ctx.Err()
		}
		l.log.Errorf("portal login failed after %v: %v", time.Since(start).Round(time.Millisecond), err)
		l.reporter.RecoveryFailed(err)
		return err
	}

	l.log.Infof("portal login completed in %v", time.Since(start).Round(time.Millisecond))
	l.reporter.RecoverySucceeded()
	return nil
}

// Run cycles until ctx is cancelled, sleeping the interval after every
// cycle. Failed logins are retried on the next cycle. It returns nil on
// cancellation.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Infof("listening (interval %v)", l.interval)
	l.reporter.Listening()

	for {
		_ = l.Cycle(ctx)
		if ctx.Err() != nil {
			break
		}
		if err := l.sleep(ctx, l.interval); err != nil {
			break
		}
	}

	l.log.Infof("stopped")
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
