package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/client/syncer"
	"github.com/dmitrijs2005/autoledger/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	// errs is consumed one per call; further calls succeed.
	errs    []error
	block   chan struct{}
	entered chan struct{}
	report  *syncer.Report
}

func (f *fakeRunner) SyncServer(ctx context.Context, creds models.Credentials) (*syncer.Report, error) {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	block, entered, rep := f.block, f.entered, f.report
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if rep == nil {
		rep = &syncer.Report{ServerID: creds.ServerID}
	}
	return rep, err
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var creds = models.Credentials{ServerID: "home"}

func fastConfig() Config {
	return Config{Interval: time.Hour, RetryBase: time.Millisecond, RetryCap: 5 * time.Millisecond, RetryMax: 3}
}

func TestScheduler_RunsOnStartAndOnTrigger(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, creds, logging.Nop(), fastConfig())
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.count() == 1 }, time.Second, 5*time.Millisecond)

	s.Trigger()
	assert.Eventually(t, func() bool { return r.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_TriggersCoalesce(t *testing.T) {
	r := &fakeRunner{block: make(chan struct{}), entered: make(chan struct{}, 8)}
	s := New(r, creds, logging.Nop(), fastConfig())
	s.Start(context.Background())
	defer s.Stop()

	<-r.entered
	s.Trigger()
	s.Trigger()
	s.Trigger()
	close(r.block)

	assert.Eventually(t, func() bool { return r.count() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, r.count())
}

func TestScheduler_RetriesFailedPass(t *testing.T) {
	boom := errors.New("502 Bad Gateway")
	r := &fakeRunner{errs: []error{boom, boom}}
	s := New(r, creds, logging.Nop(), fastConfig())
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.count() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, r.count(), "a successful retry ends the cycle")
}

func TestScheduler_GivesUpAfterRetryCeiling(t *testing.T) {
	boom := errors.New("timeout")
	r := &fakeRunner{errs: []error{boom, boom, boom, boom, boom, boom, boom, boom}}
	cfg := fastConfig()
	cfg.RetryMax = 2
	s := New(r, creds, logging.Nop(), cfg)
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.count() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, r.count())

	// The next trigger starts a fresh cycle.
	s.Trigger()
	assert.Eventually(t, func() bool { return r.count() == 6 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_ExhaustedOperationsAreNotRetried(t *testing.T) {
	r := &fakeRunner{report: &syncer.Report{Exhausted: []syncer.ExhaustedOp{{OperationID: "op-1", Attempts: 5}}}}
	s := New(r, creds, logging.Nop(), fastConfig())
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, r.count())
}

func TestScheduler_PeriodicTicks(t *testing.T) {
	r := &fakeRunner{}
	cfg := fastConfig()
	cfg.Interval = 10 * time.Millisecond
	s := New(r, creds, logging.Nop(), cfg)
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.count() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_StopInterruptsBackoff(t *testing.T) {
	r := &fakeRunner{errs: []error{errors.New("down")}}
	cfg := fastConfig()
	cfg.RetryBase = time.Hour
	cfg.RetryCap = time.Hour
	s := New(r, creds, logging.Nop(), cfg)
	s.Start(context.Background())

	assert.Eventually(t, func() bool { return r.count() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt the backoff wait")
	}

	s.Stop()
}

func TestScheduler_StartTwiceIsNoop(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, creds, logging.Nop(), fastConfig())
	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, r.count())
}

func TestScheduler_SyncNow(t *testing.T) {
	r := &fakeRunner{errs: []error{errors.New("offline")}}
	s := New(r, creds, logging.Nop(), fastConfig())

	_, err := s.SyncNow(context.Background())
	require.Error(t, err)

	rep, err := s.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "home", rep.ServerID)
	assert.Equal(t, 2, r.count())
}

func TestNew_AppliesDefaults(t *testing.T) {
	s := New(&fakeRunner{}, creds, logging.Nop(), Config{})
	assert.Equal(t, DefaultConfig().Interval, s.cfg.Interval)
	assert.Equal(t, 30*time.Second, s.cfg.RetryBase)
	assert.Equal(t, 10*time.Minute, s.cfg.RetryCap)
	assert.Zero(t, s.cfg.RetryMax)
}

func TestScheduler_ZeroRetryMaxRunsOnce(t *testing.T) {
	boom := errors.New("timeout")
	r := &fakeRunner{errs: []error{boom, boom, boom}}
	cfg := fastConfig()
	cfg.RetryMax = 0
	s := New(r, creds, logging.Nop(), cfg)
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, r.count())
}
