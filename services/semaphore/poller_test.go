package semaphore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func stubTaskServer(t *testing.T, statuses func(poll int64) string) (*Client, *atomic.Int64) {
	t.Helper()

	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := polls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 9, "status": statuses(n)})
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, &polls
}

func TestPollerPendingThenSuccess(t *testing.T) {
	const pendingPolls = 3
	client, polls := stubTaskServer(t, func(poll int64) string {
		if poll <= pendingPolls {
			return "pending"
		}
		return StatusSuccess
	})

	poller := &Poller{Client: client, Interval: 5 * time.Millisecond}
	result, err := poller.Run(context.Background(), 1, 9)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.State != StateSucceeded {
		t.Fatalf("state = %s", result.State)
	}
	if result.Task.Status != StatusSuccess {
		t.Fatalf("final status = %q", result.Task.Status)
	}
	if got := polls.Load(); got != pendingPolls+1 {
		t.Fatalf("issued %d polls, want %d", got, pendingPolls+1)
	}
	if result.Polls != pendingPolls+1 {
		t.Fatalf("result.Polls = %d, want %d", result.Polls, pendingPolls+1)
	}
}

func TestPollerErrorIsNormalReturn(t *testing.T) {
	client, polls := stubTaskServer(t, func(int64) string { return StatusError })

	poller := &Poller{Client: client, Interval: 5 * time.Millisecond}
	result, err := poller.Run(context.Background(), 1, 9)
	if err != nil {
		t.Fatalf("terminal error status must not be a Go error, got %v", err)
	}

	if result.State != StateFailed {
		t.Fatalf("state = %s", result.State)
	}
	if result.Task.Status != StatusError {
		t.Fatalf("final status = %q", result.Task.Status)
	}
	if polls.Load() != 1 {
		t.Fatalf("issued %d polls, want 1", polls.Load())
	}
}

func TestPollerTimesOut(t *testing.T) {
	client, _ := stubTaskServer(t, func(int64) string { return "running" })

	poller := &Poller{
		Client:   client,
		Interval: 10 * time.Millisecond,
		Timeout:  35 * time.Millisecond,
	}
	result, err := poller.Run(context.Background(), 1, 9)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.State != StateTimedOut {
		t.Fatalf("state = %s", result.State)
	}
	if result.Polls == 0 {
		t.Fatal("no polls issued before timeout")
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	client, polls := stubTaskServer(t, func(int64) string { return "running" })

	ctx, cancel := context.WithCancel(context.Background())
	poller := &Poller{Client: client, Interval: time.Hour}

	done := make(chan error, 1)
	go func() {
		_, err := poller.Run(ctx, 1, 9)
		done <- err
	}()

	// Let the first poll land, then cancel while the poller waits out its
	// interval.
	deadline := time.After(2 * time.Second)
	for polls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first poll never issued")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

func TestStateStrings(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StatePolling, "polling"},
		{StateSucceeded, "succeeded"},
		{StateFailed, "failed"},
		{StateTimedOut, "timed_out"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Fatalf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
