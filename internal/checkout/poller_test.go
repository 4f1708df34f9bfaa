package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mirrorchyan/storefront/internal/billing"

	testingclock "k8s.io/utils/clock/testing"
)

func TestPollerStopsAfterFulfilled(t *testing.T) {
	backend := &fakeBackend{queryFn: func(n int, _ string) (*billing.OrderStatus, error) {
		if n < 3 {
			return &billing.OrderStatus{Code: 1}, nil
		}
		return &billing.OrderStatus{Code: 0, CDK: "NEWKEY"}, nil
	}}
	fulfilled := make(chan string, 1)
	poller := NewPoller(backend, PollerOptions{
		InitialDelay: 5 * time.Millisecond,
		Interval:     5 * time.Millisecond,
		MaxWait:      time.Minute,
	}, PollerCallbacks{
		OnFulfilled: func(_ string, status *billing.OrderStatus) { fulfilled <- status.CDK },
	})

	poller.Start("c1")
	select {
	case cdk := <-fulfilled:
		if cdk != "NEWKEY" {
			t.Fatalf("unexpected cdk %s", cdk)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not fulfil")
	}

	time.Sleep(50 * time.Millisecond)
	if _, _, queries, _ := backend.counts(); queries != 3 {
		t.Fatalf("expected exactly 3 queries, got %d", queries)
	}
	if poller.State() != PollFulfilled || poller.Result().CDK != "NEWKEY" {
		t.Fatalf("unexpected poller state %s", poller.State())
	}
}

func TestPollerWatchdogTimesOut(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	backend := &fakeBackend{}
	var mu sync.Mutex
	timedOut := ""
	poller := NewPoller(backend, PollerOptions{
		InitialDelay: time.Hour,
		Interval:     time.Hour,
		MaxWait:      40 * time.Minute,
		Clock:        clk,
	}, PollerCallbacks{
		OnTimeout: func(id string) {
			mu.Lock()
			timedOut = id
			mu.Unlock()
		},
	})

	poller.Start("c1")
	clk.Step(40 * time.Minute)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return timedOut == "c1"
	})
	if poller.State() != PollTimedOut {
		t.Fatalf("expected timed out state, got %s", poller.State())
	}

	clk.Step(2 * time.Hour)
	time.Sleep(20 * time.Millisecond)
	if _, _, queries, _ := backend.counts(); queries != 0 {
		t.Fatalf("no queries expected after timeout, got %d", queries)
	}
}

func TestPollerWarnsOncePerFlow(t *testing.T) {
	backend := &fakeBackend{queryFn: func(int, string) (*billing.OrderStatus, error) {
		return nil, billing.ErrRequestFailed
	}}
	var mu sync.Mutex
	warnings := 0
	poller := NewPoller(backend, PollerOptions{
		InitialDelay: 2 * time.Millisecond,
		Interval:     2 * time.Millisecond,
		MaxWait:      time.Minute,
	}, PollerCallbacks{
		OnWarning: func(_ string, err error) {
			if !errors.Is(err, billing.ErrRequestFailed) {
				t.Errorf("unexpected warning error %v", err)
			}
			mu.Lock()
			warnings++
			mu.Unlock()
		},
	})

	poller.Start("c1")
	waitFor(t, func() bool {
		_, _, queries, _ := backend.counts()
		return queries >= 4
	})
	poller.Stop()

	mu.Lock()
	defer mu.Unlock()
	if warnings != 1 {
		t.Fatalf("expected a single warning, got %d", warnings)
	}
	if poller.State() != PollIdle {
		t.Fatalf("expected idle after stop, got %s", poller.State())
	}
}

func TestPollerRestartDiscardsInFlightResult(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	backend := &fakeBackend{queryFn: func(_ int, id string) (*billing.OrderStatus, error) {
		if id == "old" {
			entered <- struct{}{}
			<-release
		}
		return &billing.OrderStatus{Code: 0, CDK: "KEY-" + id}, nil
	}}
	var mu sync.Mutex
	var fulfilled []string
	poller := NewPoller(backend, PollerOptions{
		InitialDelay: time.Second,
		Interval:     time.Second,
		MaxWait:      time.Hour,
		Clock:        clk,
	}, PollerCallbacks{
		OnFulfilled: func(id string, _ *billing.OrderStatus) {
			mu.Lock()
			fulfilled = append(fulfilled, id)
			mu.Unlock()
		},
	})

	poller.Start("old")
	clk.Step(time.Second)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("old query never started")
	}

	poller.Start("new")
	close(release)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	if len(fulfilled) != 0 {
		mu.Unlock()
		t.Fatalf("superseded result must be discarded, got %v", fulfilled)
	}
	mu.Unlock()
	if poller.State() != PollPolling {
		t.Fatalf("expected new flow still polling, got %s", poller.State())
	}

	clk.Step(time.Second)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fulfilled) == 1 && fulfilled[0] == "new"
	})
}

func TestPollerQueryHonoursTimeout(t *testing.T) {
	blocked := make(chan struct{})
	var once sync.Once
	querier := queryFunc(func(ctx context.Context, _ string) (*billing.OrderStatus, error) {
		<-ctx.Done()
		once.Do(func() { close(blocked) })
		return nil, ctx.Err()
	})
	poller := NewPoller(querier, PollerOptions{
		InitialDelay: time.Millisecond,
		QueryTimeout: 10 * time.Millisecond,
		MaxWait:      time.Minute,
	}, PollerCallbacks{})
	poller.Start("c1")
	select {
	case <-blocked:
	case <-time.After(2 * time.Second):
		t.Fatalf("query context was not cancelled")
	}
	poller.Stop()
}

type queryFunc func(ctx context.Context, id string) (*billing.OrderStatus, error)

func (f queryFunc) QueryOrder(ctx context.Context, id string) (*billing.OrderStatus, error) {
	return f(ctx, id)
}
