package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewResetScheduler_InvalidExpression(t *testing.T) {
	_, err := NewResetScheduler("not a cron", func(ctx context.Context) error { return nil }, newTestLogger())
	if err == nil {
		t.Error("Expected error for invalid cron expression")
	}
}

func TestNewResetScheduler_NilFunc(t *testing.T) {
	if _, err := NewResetScheduler("0 3 * * *", nil, newTestLogger()); err == nil {
		t.Error("Expected error when reset function is nil")
	}
}

func TestResetScheduler_Run(t *testing.T) {
	calls := 0
	failing := errors.New("received error code 500")

	s, err := NewResetScheduler("@every 1h", func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return failing
		}
		return nil
	}, newTestLogger())
	if err != nil {
		t.Fatalf("NewResetScheduler() error = %v", err)
	}

	s.Start()
	defer s.Stop()

	s.run()
	runs, lastErr := s.Stats()
	if runs != 1 || lastErr != nil {
		t.Errorf("After first run: runs=%d lastErr=%v", runs, lastErr)
	}

	s.run()
	runs, lastErr = s.Stats()
	if runs != 2 || !errors.Is(lastErr, failing) {
		t.Errorf("After second run: runs=%d lastErr=%v", runs, lastErr)
	}
}
