// Package orchestrator sequences the provisioning workflows: persist the
// record, render its automation document, store it, and drive the external
// job service to a terminal state. HTTP handlers stay thin and call in here.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"haforge/pkg/bus"
	"haforge/pkg/db"
	"haforge/services/docstore"
	"haforge/services/playbook"
	"haforge/services/semaphore"
)

// RoleMaster marks a server record as a replication primary. Replicas carry
// their primary's name in the same column instead.
const RoleMaster = "master"

// DefaultProvider is assumed when neither the request nor the parent record
// names one.
const DefaultProvider = "proxmox"

// Orchestrator owns the create and job workflows. Bus may be nil; events are
// then skipped. ORM is only used for post-job status writeback.
type Orchestrator struct {
	DB     *pgxpool.Pool
	ORM    *gorm.DB
	Docs   *docstore.Store
	Jobs   *semaphore.Client
	Poller *semaphore.Poller
	Bus    *bus.Bus
	Logger zerolog.Logger

	// BcryptCost applies to both stored credentials; zero means bcrypt's default.
	BcryptCost int
}

// ServerInput is the payload for creating a standalone server.
type ServerInput struct {
	NewVMName     string `json:"new_vm_name"`
	VMMemory      int    `json:"vm_memory"`
	VMCores       int    `json:"vm_cores"`
	CIUser        string `json:"ci_user"`
	CIPassword    string `json:"ci_password"`
	MySQLPassword string `json:"mysql_password"`
	IPConfig0     string `json:"ipconfig0"`
	IsMaster      string `json:"is_master"`
	Provider      string `json:"provider"`
}

// ReplicaInput is the payload for creating a replica of an existing server.
// Role and, unless overridden, provider derive from the parent.
type ReplicaInput struct {
	NewVMName     string `json:"new_vm_name"`
	VMMemory      int    `json:"vm_memory"`
	VMCores       int    `json:"vm_cores"`
	CIUser        string `json:"ci_user"`
	CIPassword    string `json:"ci_password"`
	MySQLPassword string `json:"mysql_password"`
	IPConfig0     string `json:"ipconfig0"`
	Provider      string `json:"provider"`
}

// ServerRecord is the stored server row as exposed over the API. Credential
// hashes never appear here.
type ServerRecord struct {
	ID        int64     `json:"id" db:"id"`
	NewVMName string    `json:"new_vm_name" db:"new_vm_name"`
	VMMemory  int       `json:"vm_memory" db:"vm_memory"`
	VMCores   int       `json:"vm_cores" db:"vm_cores"`
	CIUser    string    `json:"ci_user" db:"ci_user"`
	IPConfig0 string    `json:"ipconfig0" db:"ipconfig0"`
	IsMaster  string    `json:"is_master" db:"is_master"`
	Provider  string    `json:"provider" db:"provider"`
	Status    string    `json:"status" db:"status"`
	IP        string    `json:"ip" db:"ip"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const serverColumns = `id, new_vm_name, vm_memory, vm_cores, ci_user, ipconfig0,
	is_master, provider, status, coalesce(ip, '') as ip, created_at, updated_at`

// CreateResult pairs the persisted record with the locator of its rendered
// document.
type CreateResult struct {
	Server   ServerRecord     `json:"server"`
	Document docstore.Locator `json:"document"`
}

// CreateServer validates the input, persists the record with hashed
// credentials, renders the provisioning document, and stores it. The record
// survives even if a later job run fails; documents can be re-rendered.
func (o *Orchestrator) CreateServer(ctx context.Context, in ServerInput) (*CreateResult, error) {
	if err := validateServerInput(in); err != nil {
		return nil, err
	}

	record, err := o.insertServer(ctx, insertParams{
		Name:          in.NewVMName,
		Memory:        in.VMMemory,
		Cores:         in.VMCores,
		CIUser:        in.CIUser,
		CIPassword:    in.CIPassword,
		MySQLPassword: in.MySQLPassword,
		IPConfig0:     in.IPConfig0,
		Role:          in.IsMaster,
		Provider:      in.Provider,
	})
	if err != nil {
		return nil, err
	}

	doc := playbook.BuildProvision(playbook.VMInput{
		Name:     in.NewVMName,
		Memory:   in.VMMemory,
		Cores:    in.VMCores,
		User:     in.CIUser,
		Password: in.CIPassword,
		IPConfig: in.IPConfig0,
	})

	locator, err := o.storeDocument(ctx, in.NewVMName, doc)
	if err != nil {
		return nil, err
	}

	o.publishCreated(ctx, record)

	return &CreateResult{Server: record, Document: locator}, nil
}

// CreateReplica creates a replica of the server identified by parentID. The
// new record's role column carries the primary's name; a primary's own role
// propagates unchanged when the parent is itself a replica.
func (o *Orchestrator) CreateReplica(ctx context.Context, parentID int64, in ReplicaInput) (*CreateResult, error) {
	if err := validateReplicaInput(in); err != nil {
		return nil, err
	}

	var parent ServerRecord
	err := db.Get(ctx, o.DB, &parent,
		`SELECT `+serverColumns+` FROM servers WHERE id = $1`, parentID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load parent %d: %w", parentID, err)
	}

	plan, err := playbook.NewReplicationPlan(parent.IPConfig0, in.IPConfig0, in.NewVMName)
	if err != nil {
		return nil, &ValidationError{Field: "ipconfig0", Message: err.Error()}
	}

	record, err := o.insertServer(ctx, insertParams{
		Name:          in.NewVMName,
		Memory:        in.VMMemory,
		Cores:         in.VMCores,
		CIUser:        in.CIUser,
		CIPassword:    in.CIPassword,
		MySQLPassword: in.MySQLPassword,
		IPConfig0:     in.IPConfig0,
		Role:          deriveRole(parent.IsMaster, parent.NewVMName),
		Provider:      deriveProvider(in.Provider, parent.Provider),
	})
	if err != nil {
		return nil, err
	}

	doc := playbook.BuildReplica(playbook.VMInput{
		Name:     in.NewVMName,
		Memory:   in.VMMemory,
		Cores:    in.VMCores,
		User:     in.CIUser,
		Password: in.CIPassword,
		IPConfig: in.IPConfig0,
	}, plan)

	locator, err := o.storeDocument(ctx, in.NewVMName, doc)
	if err != nil {
		return nil, err
	}

	o.publishCreated(ctx, record)

	return &CreateResult{Server: record, Document: locator}, nil
}

// deriveRole computes the role column for a new replica. A parent marked as
// primary lends its name; anything else is already a primary name and passes
// through, chaining replicas under one primary.
func deriveRole(parentRole, parentName string) string {
	if strings.EqualFold(strings.TrimSpace(parentRole), RoleMaster) {
		return parentName
	}
	return parentRole
}

// deriveProvider picks the first non-empty of request, parent, default.
func deriveProvider(requested, parent string) string {
	if requested != "" {
		return requested
	}
	if parent != "" {
		return parent
	}
	return DefaultProvider
}

type insertParams struct {
	Name          string
	Memory        int
	Cores         int
	CIUser        string
	CIPassword    string
	MySQLPassword string
	IPConfig0     string
	Role          string
	Provider      string
}

func (o *Orchestrator) insertServer(ctx context.Context, p insertParams) (ServerRecord, error) {
	ciHash, err := o.hash(p.CIPassword)
	if err != nil {
		return ServerRecord{}, err
	}
	mysqlHash, err := o.hash(p.MySQLPassword)
	if err != nil {
		return ServerRecord{}, err
	}

	provider := p.Provider
	if provider == "" {
		provider = DefaultProvider
	}

	var record ServerRecord
	err = db.Get(ctx, o.DB, &record,
		`INSERT INTO servers
			(new_vm_name, vm_memory, vm_cores, ci_user, ci_password,
			 mysql_password, ipconfig0, is_master, provider, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'queued')
		 RETURNING `+serverColumns,
		p.Name, p.Memory, p.Cores, p.CIUser, ciHash,
		mysqlHash, p.IPConfig0, p.Role, provider)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ServerRecord{}, ErrConflict
		}
		return ServerRecord{}, fmt.Errorf("insert server %q: %w", p.Name, err)
	}
	return record, nil
}

func (o *Orchestrator) hash(plaintext string) (string, error) {
	cost := o.BcryptCost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(h), nil
}

func (o *Orchestrator) storeDocument(ctx context.Context, name string, doc playbook.Playbook) (docstore.Locator, error) {
	data, err := doc.Marshal()
	if err != nil {
		return docstore.Locator{}, fmt.Errorf("render document for %q: %w", name, err)
	}
	return o.Docs.Write(ctx, name, data)
}

func (o *Orchestrator) publishCreated(ctx context.Context, record ServerRecord) {
	err := o.Bus.Publish(ctx, bus.SubjectServerCreated, map[string]any{
		"id":       record.ID,
		"name":     record.NewVMName,
		"role":     record.IsMaster,
		"provider": record.Provider,
	})
	if err != nil {
		o.Logger.Warn().Err(err).Str("server", record.NewVMName).Msg("publish created event")
	}
}

// ListServers returns all server records, newest first.
func (o *Orchestrator) ListServers(ctx context.Context) ([]ServerRecord, error) {
	records := []ServerRecord{}
	err := db.Select(ctx, o.DB, &records,
		`SELECT `+serverColumns+` FROM servers ORDER BY id DESC`)
	return records, err
}

// UpdateServer applies a partial status and address update to one record.
func (o *Orchestrator) UpdateServer(ctx context.Context, id int64, status, ip *string) (ServerRecord, error) {
	var record ServerRecord
	err := db.Get(ctx, o.DB, &record,
		`UPDATE servers
		 SET status = coalesce($2, status),
		     ip = coalesce($3, ip),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+serverColumns,
		id, status, ip)
	if err != nil {
		if db.IsNoRows(err) {
			return ServerRecord{}, ErrNotFound
		}
		return ServerRecord{}, fmt.Errorf("update server %d: %w", id, err)
	}
	return record, nil
}
