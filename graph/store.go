// Package graph is the derived-store adapter. The projection holds nothing
// that is not rebuildable from the primary store: typed nodes keyed by a
// canonical string id plus HAS and MANAGES relationships.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Mutator is the write surface shared by the request path and the
// reconciliation job. All calls run inside the unit of work that produced
// the Mutator.
type Mutator interface {
	MergeNode(ctx context.Context, label, key string, fields map[string]any, mode MergeMode) error
	MergeEdge(ctx context.Context, fromLabel, fromKey, edgeType, toLabel, toKey string) error
}

// Applier runs one scoped unit of work against the projection. Satisfied by
// *Store; faked in service tests.
type Applier interface {
	Apply(ctx context.Context, fn func(m Mutator) error) error
}

// Store wraps the Neo4j driver.
type Store struct {
	driver neo4j.DriverWithContext
}

func NewStore(driver neo4j.DriverWithContext) *Store {
	return &Store{driver: driver}
}

// Connect builds a Store from connection parameters.
func Connect(uri, user, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: build driver: %w", err)
	}
	return &Store{driver: driver}, nil
}

// Ping verifies the projection store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("graph: ping: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Apply opens a write session and transaction scoped to fn: commit on nil,
// rollback otherwise. The session never outlives the call.
func (s *Store) Apply(ctx context.Context, fn func(m Mutator) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("graph: begin: %w", err)
	}

	if err := fn(&txMutator{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("graph: commit: %w", err)
	}
	return nil
}

// Begin opens an explicit batch transaction. The caller owns Commit or
// Rollback; either releases the session.
func (s *Store) Begin(ctx context.Context) (*Batch, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return nil, fmt.Errorf("graph: begin batch: %w", err)
	}
	return &Batch{session: session, mut: txMutator{tx: tx}}, nil
}

// Batch is a transaction handle over a batch of merges.
type Batch struct {
	session neo4j.SessionWithContext
	mut     txMutator
}

func (b *Batch) MergeNode(ctx context.Context, label, key string, fields map[string]any, mode MergeMode) error {
	return b.mut.MergeNode(ctx, label, key, fields, mode)
}

func (b *Batch) MergeEdge(ctx context.Context, fromLabel, fromKey, edgeType, toLabel, toKey string) error {
	return b.mut.MergeEdge(ctx, fromLabel, fromKey, edgeType, toLabel, toKey)
}

func (b *Batch) Commit(ctx context.Context) error {
	defer b.session.Close(ctx)
	if err := b.mut.tx.Commit(ctx); err != nil {
		return fmt.Errorf("graph: commit batch: %w", err)
	}
	return nil
}

func (b *Batch) Rollback(ctx context.Context) error {
	defer b.session.Close(ctx)
	return b.mut.tx.Rollback(ctx)
}

type txMutator struct {
	tx neo4j.ExplicitTransaction
}

func (m *txMutator) MergeNode(ctx context.Context, label, key string, fields map[string]any, mode MergeMode) error {
	query, err := nodeQuery(label, fields, mode)
	if err != nil {
		return err
	}

	params := map[string]any{"key": key}
	if len(fields) > 0 {
		params["props"] = fields
	}

	res, err := m.tx.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("graph: merge %s node %s: %w", label, key, err)
	}
	if _, err := res.Consume(ctx); err != nil {
		return fmt.Errorf("graph: merge %s node %s: %w", label, key, err)
	}
	return nil
}

func (m *txMutator) MergeEdge(ctx context.Context, fromLabel, fromKey, edgeType, toLabel, toKey string) error {
	query, err := edgeQuery(fromLabel, edgeType, toLabel)
	if err != nil {
		return err
	}

	res, err := m.tx.Run(ctx, query, map[string]any{"from": fromKey, "to": toKey})
	if err != nil {
		return fmt.Errorf("graph: merge %s edge %s->%s: %w", edgeType, fromKey, toKey, err)
	}
	if _, err := res.Consume(ctx); err != nil {
		return fmt.Errorf("graph: merge %s edge %s->%s: %w", edgeType, fromKey, toKey, err)
	}
	return nil
}
