package console

import (
	"errors"
	"net/http"
	"strings"

	"haforge/pkg/db"
)

// credColumns never includes api_token; the stored token is write-only.
const credColumns = `id, credential_name, api_user, api_url,
	coalesce(api_token_id, '') as api_token_id, created_at`

func (a *API) handleListCreds(w http.ResponseWriter, r *http.Request) {
	creds := []ProxmoxCred{}
	err := db.Select(r.Context(), a.db, &creds,
		`SELECT `+credColumns+` FROM proxmox_creds ORDER BY id DESC`)
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"proxmox_creds": creds})
}

func (a *API) handleCreateCred(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CredentialName string `json:"credential_name"`
		APIUser        string `json:"api_user"`
		APIToken       string `json:"api_token"`
		APIURL         string `json:"api_url"`
		APITokenID     string `json:"api_token_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	for field, value := range map[string]string{
		"credential_name": req.CredentialName,
		"api_user":        req.APIUser,
		"api_token":       req.APIToken,
		"api_url":         req.APIURL,
		"api_token_id":    req.APITokenID,
	} {
		if strings.TrimSpace(value) == "" {
			respondError(w, http.StatusBadRequest, errors.New(field+" is required"))
			return
		}
		if len(value) > 255 {
			respondError(w, http.StatusBadRequest, errors.New(field+" exceeds 255 characters"))
			return
		}
	}

	var cred ProxmoxCred
	err := db.Get(r.Context(), a.db, &cred,
		`INSERT INTO proxmox_creds
			(credential_name, api_user, api_token, api_url, api_token_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+credColumns,
		req.CredentialName, req.APIUser, req.APIToken, req.APIURL, req.APITokenID)
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}

	a.logger.Info().Str("credential", cred.CredentialName).Msg("proxmox credential stored")
	respondJSON(w, http.StatusCreated, map[string]any{"proxmox_cred": cred})
}
