package console

import (
	"encoding/json"
	"errors"
	"net/http"

	"haforge/services/docstore"
	"haforge/services/orchestrator"
	"haforge/services/semaphore"
)

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// respondFailure classifies a workflow error and answers with it. Internal
// failures are logged in full and surfaced as a generic message; storage
// paths and database errors never reach the client. Client-correctable and
// upstream-shaped errors keep their detail.
func (a *API) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := errStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		a.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		respondError(w, status, errors.New("internal server error"))
		return
	}
	respondError(w, status, err)
}

// errStatus maps workflow errors onto HTTP status codes. Anything
// unclassified is an internal failure.
func errStatus(err error) int {
	var (
		vErr      *orchestrator.ValidationError
		storErr   *docstore.StorageError
		upErr     *semaphore.UpstreamError
		protoErr  *semaphore.ProtocolError
		transpErr *semaphore.TransportError
	)
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &upErr),
		errors.As(err, &protoErr),
		errors.As(err, &transpErr):
		return http.StatusBadGateway
	case errors.As(err, &storErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
