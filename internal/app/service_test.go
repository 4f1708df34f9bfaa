package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mirrorchyan/storefront/internal/config"
)

type recordingService struct {
	name     string
	startErr error
	mu       *sync.Mutex
	stops    *[]string
}

func (s *recordingService) Name() string { return s.name }

func (s *recordingService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	<-ctx.Done()
	return nil
}

func (s *recordingService) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.stops = append(*s.stops, s.name)
	return nil
}

func TestRunnerNamesFailingServiceAndStopsInReverse(t *testing.T) {
	var mu sync.Mutex
	var stops []string
	boom := errors.New("boom")
	runner := NewRunner(
		&recordingService{name: "http", mu: &mu, stops: &stops},
		nil,
		&recordingService{name: "sweeper", mu: &mu, stops: &stops},
		&recordingService{name: "scheduler", startErr: boom, mu: &mu, stops: &stops},
	)

	err := runner.Run(context.Background(), time.Second, nil)
	if !errors.Is(err, boom) || !strings.HasPrefix(err.Error(), "scheduler:") {
		t.Fatalf("expected scheduler error, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(stops, ",") != "scheduler,sweeper,http" {
		t.Fatalf("unexpected stop order %v", stops)
	}
}

func TestRunnerCanceledContextIsCleanExit(t *testing.T) {
	var mu sync.Mutex
	var stops []string
	runner := NewRunner(&recordingService{name: "http", mu: &mu, stops: &stops})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := runner.Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}
	if len(stops) != 1 {
		t.Fatalf("expected service stopped, got %v", stops)
	}
}

func TestRunnerWithoutServices(t *testing.T) {
	if err := NewRunner(nil).Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected error for empty runner")
	}
}

func TestNewHTTPServiceTimeouts(t *testing.T) {
	svc := NewHTTPService(config.ServerConfig{Host: "127.0.0.1", Port: "9000", WriteTimeoutSeconds: 5}, nil)
	if svc.server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %s", svc.server.Addr)
	}
	if svc.server.WriteTimeout != 5*time.Second || svc.server.ReadHeaderTimeout != 10*time.Second || svc.server.IdleTimeout != 2*time.Minute {
		t.Fatalf("unexpected timeouts: %+v", svc.server)
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]string{"": ModeAll, " API ": ModeAPI, "worker": ModeWorker}
	for raw, want := range cases {
		got, err := ParseMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseMode("cron"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
