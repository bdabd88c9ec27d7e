package console

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"haforge/pkg/db"
)

var knownAlgorithms = map[string]bool{
	"round_robin": true,
	"least_conn":  true,
	"ip_hash":     true,
}

func (a *API) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups := []Group{}
	err := db.Select(r.Context(), a.db, &groups,
		`SELECT id, server_id, lb_algorithm, coalesce(proxy_ip, '') as proxy_ip,
			settings, created_at
		 FROM groups ORDER BY id DESC`)
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (a *API) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServerID    int64          `json:"server_id"`
		LBAlgorithm string         `json:"lb_algorithm"`
		ProxyIP     string         `json:"proxy_ip"`
		Settings    map[string]any `json:"settings"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if req.ServerID < 1 {
		respondError(w, http.StatusBadRequest, errors.New("server_id must be a positive integer"))
		return
	}
	req.LBAlgorithm = strings.TrimSpace(req.LBAlgorithm)
	if !knownAlgorithms[req.LBAlgorithm] {
		respondError(w, http.StatusBadRequest, errors.New("lb_algorithm must be one of round_robin, least_conn, ip_hash"))
		return
	}
	if req.ProxyIP != "" && net.ParseIP(req.ProxyIP) == nil {
		respondError(w, http.StatusBadRequest, errors.New("proxy_ip must be a valid address"))
		return
	}
	if req.Settings == nil {
		req.Settings = map[string]any{}
	}

	settings, err := json.Marshal(req.Settings)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var group Group
	err = db.Get(r.Context(), a.db, &group,
		`INSERT INTO groups (server_id, lb_algorithm, proxy_ip, settings)
		 VALUES ($1, $2, $3, $4::jsonb)
		 RETURNING id, server_id, lb_algorithm, coalesce(proxy_ip, '') as proxy_ip,
			settings, created_at`,
		req.ServerID, req.LBAlgorithm, req.ProxyIP, string(settings))
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			respondError(w, http.StatusBadRequest, errors.New("server_id references no server"))
			return
		}
		a.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"group": group})
}
