package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// script is a shared event log for fakes, so ordering across them can be
// asserted.
type script struct {
	events []string
}

func (s *script) add(e string) { s.events = append(s.events, e) }

type fakeProber struct {
	s       *script
	results []bool
	calls   int
}

func (p *fakeProber) IsReachable(context.Context) bool {
	r := p.results[p.calls%len(p.results)]
	p.calls++
	if r {
		p.s.add("probe:up")
	} else {
		p.s.add("probe:down")
	}
	return r
}

type fakeRecoverer struct {
	s     *script
	errs  []error
	calls int
	hook  func()
}

func (r *fakeRecoverer) Login(context.Context) error {
	r.s.add("login")
	var err error
	if r.calls < len(r.errs) {
		err = r.errs[r.calls]
	}
	r.calls++
	if r.hook != nil {
		r.hook()
	}
	return err
}

type fakeReporter struct {
	s *script
}

func (f fakeReporter) Listening() { f.s.add("listening") }
func (f fakeReporter) Transition(disconnected bool) {
	if disconnected {
		f.s.add("down")
		return
	}
	f.s.add("up")
}
func (f fakeReporter) RecoveryStarted()   { f.s.add("started") }
func (f fakeReporter) RecoverySucceeded() { f.s.add("succeeded") }
func (f fakeReporter) RecoveryFailed(err error) {
	f.s.add("failed: " + err.Error())
}

func newTestLoop(s *script, p *fakeProber, r *fakeRecoverer) *Loop {
	l := New(p, r, Options{Interval: time.Minute, Reporter: fakeReporter{s: s}})
	l.sleep = func(ctx context.Context, _ time.Duration) error {
		s.add("sleep")
		return ctx.Err()
	}
	return l
}

func TestNew_StartsDisconnected(t *testing.T) {
	s := &script{}
	l := newTestLoop(s, &fakeProber{s: s, results: []bool{true}}, &fakeRecoverer{s: s})

	assert.True(t, l.Disconnected())
	assert.Equal(t, DefaultInterval, New(nil, nil, Options{}).interval)
}

func TestCycle_FirstProbeSucceeds_NoRecovery(t *testing.T) {
	s := &script{}
	r := &fakeRecoverer{s: s}
	l := newTestLoop(s, &fakeProber{s: s, results: []bool{true}}, r)

	require.NoError(t, l.Cycle(context.Background()))

	assert.Equal(t, 0, r.calls)
	assert.False(t, l.Disconnected())
	assert.Equal(t, []string{"probe:up", "up"}, s.events)
}

func TestCycle_FirstProbeFails_RecoversOnce(t *testing.T) {
	s := &script{}
	r := &fakeRecoverer{s: s}
	l := newTestLoop(s, &fakeProber{s: s, results: []bool{false}}, r)

	require.NoError(t, l.Cycle(context.Background()))

	assert.Equal(t, 1, r.calls)
	assert.Equal(t, []string{"probe:down", "down", "started", "login", "succeeded"}, s.events)
}

func TestCycle_LoginFailureIsReturnedAndReported(t *testing.T) {
	s := &script{}
	boom := errors.New("recovery failed at identifier: timeout")
	l := newTestLoop(s, &fakeProber{s: s, results: []bool{false}}, &fakeRecoverer{s: s, errs: []error{boom}})

	err := l.Cycle(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, s.events, "failed: recovery failed at identifier: timeout")
}

func TestCycle_CancelledContextDoesNothing(t *testing.T) {
	s := &script{}
	p := &fakeProber{s: s, results: []bool{false}}
	l := newTestLoop(s, p, &fakeRecoverer{s: s})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, l.Cycle(ctx), context.Canceled)
	assert.Equal(t, 0, p.calls)
	assert.Empty(t, s.events)
}

func TestRun_SequenceAcrossCycles(t *testing.T) {
	s := &script{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// up, down (login fails), down (login succeeds), up
	p := &fakeProber{s: s, results: []bool{true, false, false, true}}
	r := &fakeRecoverer{s: s, errs: []error{errors.New("no form")}}
	l := newTestLoop(s, p, r)
	l.sleep = func(ctx context.Context, _ time.Duration) error {
		s.add("sleep")
		if p.calls == 4 {
			cancel()
		}
		return ctx.Err()
	}

	require.NoError(t, l.Run(ctx))

	assert.Equal(t, []string{
		"listening",
		"probe:up", "up", "sleep",
		"probe:down", "down", "started", "login", "failed: no form", "sleep",
		"probe:down", "started", "login", "succeeded", "sleep",
		"probe:up", "up", "sleep",
	}, s.events)
	assert.Equal(t, 2, r.calls)
}

func TestRun_CancelDuringLoginStopsWithoutReportingFailure(t *testing.T) {
	s := &script{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeRecoverer{s: s, errs: []error{context.Canceled}}
	r.hook = cancel
	l := newTestLoop(s, &fakeProber{s: s, results: []bool{false}}, r)

	require.NoError(t, l.Run(ctx))

	assert.Equal(t, []string{"listening", "probe:down", "down", "started", "login"}, s.events)
}

func TestRun_RealSleepHonoursCancellation(t *testing.T) {
	s := &script{}
	l := New(&fakeProber{s: s, results: []bool{true}}, &fakeRecoverer{s: s}, Options{Interval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}
