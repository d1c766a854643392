package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func newTestScheduler(refresh RefreshFunc) *Scheduler {
	return New(refresh, WithLogger(slog.New(slog.DiscardHandler)))
}

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

func TestSetSchedule(t *testing.T) {
	s := newTestScheduler(func(ctx context.Context) error { return nil })

	if err := s.SetSchedule("0 2 * * *"); err != nil {
		t.Fatalf("SetSchedule() error: %v", err)
	}
	first := s.entry
	if err := s.SetSchedule("0 3 * * *"); err != nil {
		t.Fatalf("SetSchedule() replacement error: %v", err)
	}
	if s.entry == first {
		t.Error("entry was not replaced")
	}
	if got := len(s.cron.Entries()); got != 1 {
		t.Errorf("cron entries = %d, want 1", got)
	}
	if st := s.Status(); st.Schedule != "0 3 * * *" || st.NextRun.IsZero() {
		t.Errorf("Status() = %+v", st)
	}
}

func TestSetSchedule_Invalid(t *testing.T) {
	s := newTestScheduler(func(ctx context.Context) error { return nil })
	if err := s.SetSchedule("every five minutes"); err == nil {
		t.Fatal("SetSchedule() with invalid expression = nil, want error")
	}
	if s.Status().Schedule != "" {
		t.Error("invalid expression was recorded")
	}
}

func TestTrigger(t *testing.T) {
	var calls atomic.Int32
	s := newTestScheduler(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	if err := s.Trigger(); !errors.Is(err, ErrNotScheduled) {
		t.Fatalf("Trigger() without schedule = %v, want ErrNotScheduled", err)
	}
	if err := s.SetSchedule("0 0 1 1 *"); err != nil {
		t.Fatal(err)
	}
	if err := s.Trigger(); err != nil {
		t.Fatalf("Trigger() error: %v", err)
	}

	waitDone(t, s.Stop())
	if calls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", calls.Load())
	}
	st := s.Status()
	if st.Runs != 1 || st.LastRun.IsZero() || st.LastError != "" {
		t.Errorf("Status() = %+v", st)
	}
}

func TestTrigger_NoOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	s := newTestScheduler(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	s.SetSchedule("0 0 1 1 *")

	if err := s.Trigger(); err != nil {
		t.Fatalf("Trigger() error: %v", err)
	}
	<-started
	if err := s.Trigger(); !errors.Is(err, ErrRunning) {
		t.Errorf("second Trigger() = %v, want ErrRunning", err)
	}
	if !s.Status().Running {
		t.Error("Status().Running = false during refresh")
	}

	// a tick during the run is skipped
	s.tick()

	close(release)
	waitDone(t, s.Stop())
	if st := s.Status(); st.Runs != 1 {
		t.Errorf("Runs = %d, want 1", st.Runs)
	}
}

func TestTrigger_RecordsError(t *testing.T) {
	s := newTestScheduler(func(ctx context.Context) error {
		return errors.New("provider down")
	})
	s.SetSchedule("0 0 1 1 *")
	s.Trigger()
	waitDone(t, s.Stop())

	st := s.Status()
	if st.LastError != "provider down" {
		t.Errorf("LastError = %q, want provider down", st.LastError)
	}
	if !st.LastRun.IsZero() {
		t.Error("LastRun set after a failed refresh")
	}
}

func TestStop_CancelsRunningRefresh(t *testing.T) {
	started := make(chan struct{})
	s := newTestScheduler(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	s.SetSchedule("0 0 1 1 *")
	s.Start()
	s.Trigger()
	<-started

	waitDone(t, s.Stop())
	if err := s.Trigger(); !errors.Is(err, ErrStopped) {
		t.Errorf("Trigger() after Stop = %v, want ErrStopped", err)
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"0 2 * * 1-5", false},
		{"0 0 * * * *", true},
		{"", true},
		{"bogus", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateSchedule(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSchedule(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}
