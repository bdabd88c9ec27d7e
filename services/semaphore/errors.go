package semaphore

import "fmt"

// UpstreamError reports a non-2xx response from the job execution service.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("semaphore: upstream status %d: %s", e.Status, e.Body)
}

// ProtocolError reports a 2xx response missing fields the contract requires.
type ProtocolError struct {
	Op     string
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("semaphore: %s: %s", e.Op, e.Detail)
}

// TransportError reports a network-level failure reaching the service. The
// client never retries these; retry policy belongs to the caller.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("semaphore: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
