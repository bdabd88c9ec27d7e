package semaphore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Terminal status strings reported by the job execution service.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// State tracks a polled job through its lifecycle.
type State int

const (
	StateCreated State = iota
	StatePolling
	StateSucceeded
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

const (
	// DefaultInterval matches the 3 second cadence the UI has always assumed.
	DefaultInterval = 3 * time.Second
	// DefaultTimeout bounds a run; a permanently stuck upstream job must not
	// hang the caller forever.
	DefaultTimeout = 15 * time.Minute
)

var (
	pollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "haforge_semaphore_polls_total",
		Help: "Task status polls issued against the job service.",
	})
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haforge_semaphore_jobs_total",
		Help: "Polled jobs by terminal outcome.",
	}, []string{"outcome"})
)

// Poller drives a started task to a terminal state. Each Run owns its own
// timer, so one stuck job cannot starve other requests.
type Poller struct {
	Client   *Client
	Interval time.Duration
	Timeout  time.Duration
}

// Result carries the terminal state, the last observed task payload, and how
// many polls were issued.
type Result struct {
	State State
	Task  Task
	Polls int
}

// Run polls the task on a fixed interval until it reaches success or error,
// the deadline passes, or ctx is cancelled. A terminal "error" status is a
// normal return; the caller decides how to present it. On cancellation the
// loop stops promptly and the job keeps running upstream.
func (p *Poller) Run(ctx context.Context, projectID, taskID int) (Result, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	result := Result{State: StatePolling}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task, err := p.Client.TaskStatus(ctx, projectID, taskID)
		if err != nil {
			return result, err
		}
		result.Task = task
		result.Polls++
		pollsTotal.Inc()

		switch task.Status {
		case StatusSuccess:
			result.State = StateSucceeded
			jobsTotal.WithLabelValues("success").Inc()
			return result, nil
		case StatusError:
			result.State = StateFailed
			jobsTotal.WithLabelValues("error").Inc()
			return result, nil
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-deadline.C:
			result.State = StateTimedOut
			jobsTotal.WithLabelValues("timeout").Inc()
			return result, nil
		case <-ticker.C:
		}
	}
}
