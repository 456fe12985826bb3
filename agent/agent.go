// Package agent provides the agent lookups the policy write path depends on,
// plus seeding of agent records.
package agent

import (
	"context"
	"errors"

	"polisync/canon"
	"polisync/docstore"
	"polisync/fault"
)

// Agent is the API-facing view of an agent document.
type Agent struct {
	RecordID string
	AgentID  string
	Name     string
	Active   bool
}

type Store interface {
	FindByKey(ctx context.Context, collection, keyField, key string) (string, docstore.Record, error)
	Insert(ctx context.Context, collection string, rec docstore.Record) (string, error)
}

type Repository struct {
	docs Store
}

func NewRepository(docs Store) *Repository {
	return &Repository{docs: docs}
}

// Get fetches an agent by its identity key.
func (r *Repository) Get(ctx context.Context, agentID any) (Agent, error) {
	key := canon.Key(agentID)
	if key == "" {
		return Agent{}, fault.New(fault.Validation, "missing_required_fields")
	}

	id, rec, err := r.docs.FindByKey(ctx, docstore.Agents, "agent_id", key)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Agent{}, fault.New(fault.NotFound, "agent_not_found")
		}
		return Agent{}, fault.Wrap(fault.Internal, "primary_store_failure", err)
	}

	return Agent{
		RecordID: id,
		AgentID:  key,
		Name:     canon.Key(rec["name"]),
		Active:   canon.Truthy(rec["active"], true),
	}, nil
}

type CreateParams struct {
	AgentID any
	Name    string
	Active  any
}

// Create seeds an agent record.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Agent, error) {
	key := canon.Key(params.AgentID)
	if key == "" {
		return Agent{}, fault.New(fault.Validation, "missing_required_fields")
	}

	rec := docstore.Record{
		"agent_id": key,
		"active":   canon.Truthy(params.Active, true),
	}
	if params.Name != "" {
		rec["name"] = params.Name
	}

	id, err := r.docs.Insert(ctx, docstore.Agents, rec)
	if err != nil {
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return Agent{}, fault.New(fault.Conflict, "agent_exists")
		}
		return Agent{}, fault.Wrap(fault.Internal, "primary_store_failure", err)
	}

	return Agent{RecordID: id, AgentID: key, Name: params.Name, Active: canon.Truthy(params.Active, true)}, nil
}
