// Package console exposes the provisioning HTTP surface: server and
// credential records, load balancing groups, and the job endpoints that
// drive the external execution service.
package console

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"haforge/services/orchestrator"
)

// ProxmoxCred is a stored hypervisor API credential. The token value is
// write-only; reads never include it.
type ProxmoxCred struct {
	ID             int64     `json:"id" db:"id"`
	CredentialName string    `json:"credential_name" db:"credential_name"`
	APIUser        string    `json:"api_user" db:"api_user"`
	APIURL         string    `json:"api_url" db:"api_url"`
	APITokenID     string    `json:"api_token_id" db:"api_token_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Group is a load balancing group row pointing at a backend server.
type Group struct {
	ID          int64          `json:"id" db:"id"`
	ServerID    int64          `json:"server_id" db:"server_id"`
	LBAlgorithm string         `json:"lb_algorithm" db:"lb_algorithm"`
	ProxyIP     string         `json:"proxy_ip" db:"proxy_ip"`
	Settings    map[string]any `json:"settings" db:"settings"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// API holds the handler dependencies. Record lists and credential CRUD query
// the pool directly; everything stateful about servers goes through the
// orchestrator.
type API struct {
	db     *pgxpool.Pool
	orch   *orchestrator.Orchestrator
	logger zerolog.Logger
}

// New initialises the API layer.
func New(pool *pgxpool.Pool, orch *orchestrator.Orchestrator, logger zerolog.Logger) (*API, error) {
	if orch == nil {
		return nil, errors.New("orchestrator is required")
	}
	return &API{db: pool, orch: orch, logger: logger}, nil
}
