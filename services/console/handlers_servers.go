package console

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"haforge/services/orchestrator"
)

func (a *API) handleListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := a.orch.ListServers(r.Context())
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"servers": servers})
}

func (a *API) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.ServerInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.orch.CreateServer(r.Context(), req)
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}

	a.logger.Info().
		Int64("id", result.Server.ID).
		Str("name", result.Server.NewVMName).
		Msg("server created")
	respondJSON(w, http.StatusCreated, result)
}

func (a *API) handleCreateReplica(w http.ResponseWriter, r *http.Request) {
	parentID, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req orchestrator.ReplicaInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.orch.CreateReplica(r.Context(), parentID, req)
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}

	a.logger.Info().
		Int64("id", result.Server.ID).
		Str("name", result.Server.NewVMName).
		Str("role", result.Server.IsMaster).
		Msg("replica created")
	respondJSON(w, http.StatusCreated, result)
}

func (a *API) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Status *string `json:"status"`
		IP     *string `json:"ip"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Status == nil && req.IP == nil {
		respondError(w, http.StatusBadRequest, errors.New("status or ip is required"))
		return
	}
	if req.Status != nil && strings.TrimSpace(*req.Status) == "" {
		respondError(w, http.StatusBadRequest, errors.New("status must not be empty"))
		return
	}
	if req.IP != nil && net.ParseIP(*req.IP) == nil {
		respondError(w, http.StatusBadRequest, errors.New("ip must be a valid address"))
		return
	}

	server, err := a.orch.UpdateServer(r.Context(), id, req.Status, req.IP)
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"server": server})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return id, nil
}
