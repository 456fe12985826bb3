package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"polisync/canon"
	"polisync/docstore"
	"polisync/dualwrite"
	"polisync/fault"
	"polisync/graph"
)

// Store is the slice of the primary store the service needs. NextClaimSeq is
// the store-side sequence replacing the old count-plus-offset numbering,
// which was unsafe under concurrent creation.
type Store interface {
	FindByKey(ctx context.Context, collection, keyField, key string) (string, docstore.Record, error)
	Insert(ctx context.Context, collection string, rec docstore.Record) (string, error)
	NextClaimSeq(ctx context.Context) (int64, error)
}

type Syncer interface {
	Propagate(ctx context.Context, kind dualwrite.Kind, target dualwrite.Target, fn func(m graph.Mutator) error) (dualwrite.Outcome, error)
}

type Service struct {
	docs Store
	sync Syncer
	now  func() time.Time
}

func NewService(docs Store, sync Syncer) *Service {
	return &Service{docs: docs, sync: sync, now: time.Now}
}

// WithClock fixes the default-date clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateParams struct {
	PolicyNumber   any
	Type           string
	AmountEstimate *float64
	Description    string
	Status         string
	Date           any
}

// Create files a claim against an eligible policy. Unlike every other
// mutation, the graph write here is a hard dependency: a failed mirror marks
// the claim record and the create reports failure.
func (s *Service) Create(ctx context.Context, params CreateParams) (Claim, error) {
	number := canon.Key(params.PolicyNumber)
	if number == "" {
		return Claim{}, fault.New(fault.Validation, "policy_missing")
	}
	if params.Type == "" {
		return Claim{}, fault.New(fault.Validation, "missing_required_fields")
	}

	policyID, policyRec, err := s.docs.FindByKey(ctx, docstore.Policies, "policy_number", number)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Claim{}, fault.New(fault.Validation, "policy_missing")
		}
		return Claim{}, fault.Wrap(fault.Internal, "primary_store_failure", err)
	}

	if !Eligible(policyRec["status"]) {
		return Claim{}, fault.New(fault.Validation, "policy_not_eligible")
	}

	seq, err := s.docs.NextClaimSeq(ctx)
	if err != nil {
		return Claim{}, fault.Wrap(fault.Internal, "primary_store_failure", err)
	}

	date := canon.Key(params.Date)
	if date == "" {
		date = canon.DMY(s.now())
	}
	status := params.Status
	if status == "" {
		status = DefaultStatus
	}

	rec := docstore.Record{
		"claim_seq":     seq,
		"policy_number": number,
		"policy_id":     policyID,
		"type":          params.Type,
		"status":        status,
		"date":          date,
	}
	if params.AmountEstimate != nil {
		rec["amount_estimate"] = *params.AmountEstimate
	}
	if params.Description != "" {
		rec["description"] = params.Description
	}

	id, err := s.docs.Insert(ctx, docstore.Claims, rec)
	if err != nil {
		return Claim{}, fault.Wrap(fault.Internal, "primary_store_failure", fmt.Errorf("claim: insert: %w", err))
	}

	nodeFields := map[string]any{
		"claim_seq": seq,
		"type":      params.Type,
	}
	if iso := canon.ISODate(date); iso != "" {
		nodeFields["date"] = iso
	}
	if params.AmountEstimate != nil {
		nodeFields["amount"] = *params.AmountEstimate
	}

	statusUp := canon.Upper(status)
	if _, err := s.sync.Propagate(ctx, dualwrite.CreateClaim,
		dualwrite.Target{Collection: docstore.Claims, RecordID: id},
		func(m graph.Mutator) error {
			// First write wins for the denormalized fields; status is
			// authoritative and always overwritten.
			if err := m.MergeNode(ctx, graph.LabelClaim, id, nodeFields, graph.FillAbsent); err != nil {
				return err
			}
			if err := m.MergeNode(ctx, graph.LabelClaim, id, map[string]any{"status": statusUp}, graph.Overwrite); err != nil {
				return err
			}
			return m.MergeEdge(ctx, graph.LabelPolicy, number, graph.EdgeHas, graph.LabelClaim, id)
		}); err != nil {
		return Claim{}, err
	}

	return fromRecord(id, rec), nil
}
