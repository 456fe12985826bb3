package policy

import (
	"context"
	"errors"
	"fmt"

	"polisync/canon"
	"polisync/docstore"
	"polisync/dualwrite"
	"polisync/fault"
	"polisync/graph"
)

// Store is the slice of the primary store the service needs. Customer and
// agent lookups go through the same document interface.
type Store interface {
	FindByKey(ctx context.Context, collection, keyField, key string) (string, docstore.Record, error)
	Insert(ctx context.Context, collection string, rec docstore.Record) (string, error)
}

type Syncer interface {
	Propagate(ctx context.Context, kind dualwrite.Kind, target dualwrite.Target, fn func(m graph.Mutator) error) (dualwrite.Outcome, error)
}

type Service struct {
	docs Store
	sync Syncer
}

func NewService(docs Store, sync Syncer) *Service {
	return &Service{docs: docs, sync: sync}
}

type CreateParams struct {
	PolicyNumber   any
	CustomerID     any
	AgentID        any
	Type           string
	StartDate      any
	EndDate        any
	MonthlyPremium *float64
	TotalCoverage  *float64
	Status         string
}

// Create validates the policy against its customer and agent, inserts it,
// then mirrors the Policy node and its HAS/MANAGES edges. A failed mirror
// marks the policy record and is otherwise swallowed; the create has already
// succeeded once the insert commits.
func (s *Service) Create(ctx context.Context, params CreateParams) (Policy, error) {
	number := canon.Key(params.PolicyNumber)
	customerKey := canon.Key(params.CustomerID)
	agentKey := canon.Key(params.AgentID)
	if number == "" || customerKey == "" || agentKey == "" || params.Type == "" {
		return Policy{}, fault.New(fault.Validation, "missing_required_fields")
	}

	if _, _, err := s.docs.FindByKey(ctx, docstore.Policies, "policy_number", number); err == nil {
		return Policy{}, fault.New(fault.Conflict, "policy_exists")
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return Policy{}, fault.Wrap(fault.Internal, "primary_store_failure", err)
	}

	_, customerRec, err := s.docs.FindByKey(ctx, docstore.Customers, "customer_id", customerKey)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Policy{}, fault.New(fault.Validation, "customer_missing")
		}
		return Policy{}, fault.Wrap(fault.Internal, "primary_store_failure", err)
	}

	_, agentRec, err := s.docs.FindByKey(ctx, docstore.Agents, "agent_id", agentKey)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Policy{}, fault.New(fault.Validation, "agent_missing")
		}
		return Policy{}, fault.Wrap(fault.Internal, "primary_store_failure", err)
	}

	if !canon.Truthy(customerRec["active"], true) {
		return Policy{}, fault.New(fault.Validation, "customer_inactive")
	}
	if !canon.Truthy(agentRec["active"], true) {
		return Policy{}, fault.New(fault.Validation, "agent_inactive")
	}

	start, okStart := canon.ParseDate(params.StartDate)
	end, okEnd := canon.ParseDate(params.EndDate)
	if !okStart || !okEnd {
		return Policy{}, fault.New(fault.Validation, "invalid_dates")
	}
	if start.After(end) {
		return Policy{}, fault.New(fault.Validation, "invalid_date_range")
	}

	status := canon.Upper(params.Status)
	if status == "" {
		status = StatusActive
	}

	// Dates are normalized to ISO at the write boundary; legacy documents
	// may still carry the day-first form.
	rec := docstore.Record{
		"policy_number": number,
		"customer_id":   customerKey,
		"agent_id":      agentKey,
		"type":          params.Type,
		"start_date":    start.Format("2006-01-02"),
		"end_date":      end.Format("2006-01-02"),
		"status":        status,
	}
	if params.MonthlyPremium != nil {
		rec["monthly_premium"] = *params.MonthlyPremium
	}
	if params.TotalCoverage != nil {
		rec["total_coverage"] = *params.TotalCoverage
	}

	id, err := s.docs.Insert(ctx, docstore.Policies, rec)
	if err != nil {
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return Policy{}, fault.New(fault.Conflict, "policy_exists")
		}
		return Policy{}, fault.Wrap(fault.Internal, "primary_store_failure", fmt.Errorf("policy: insert: %w", err))
	}

	nodeFields := map[string]any{
		"policy_number": number,
		"type":          params.Type,
		"status":        status,
		"start_date":    start.Format("2006-01-02"),
		"end_date":      end.Format("2006-01-02"),
	}
	// Coverage only overwrites the node when actually supplied.
	if params.TotalCoverage != nil {
		nodeFields["total_coverage"] = *params.TotalCoverage
	}

	_, _ = s.sync.Propagate(ctx, dualwrite.CreatePolicy,
		dualwrite.Target{Collection: docstore.Policies, RecordID: id},
		func(m graph.Mutator) error {
			if err := m.MergeNode(ctx, graph.LabelPolicy, number, nodeFields, graph.Overwrite); err != nil {
				return err
			}
			if err := m.MergeEdge(ctx, graph.LabelCustomer, customerKey, graph.EdgeHas, graph.LabelPolicy, number); err != nil {
				return err
			}
			return m.MergeEdge(ctx, graph.LabelAgent, agentKey, graph.EdgeManages, graph.LabelPolicy, number)
		})

	return fromRecord(id, rec), nil
}
