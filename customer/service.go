package customer

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

// Store is the slice of the primary store the service needs.
type Store interface {
	FindByKey(ctx context.Context, collection, keyField, key string) (string, docstore.Record, error)
	Insert(ctx context.Context, collection string, rec docstore.Record) (string, error)
	UpdateFields(ctx context.Context, collection, keyField, key string, fields docstore.Record) (int64, error)
}

// Syncer propagates the mutation into the derived graph.
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
	CustomerID any
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Active     any
}

// Create inserts the customer and mirrors a Customer node into the graph.
// The customer is durable once the primary insert commits; a failed node
// merge is logged, never surfaced.
func (s *Service) Create(ctx context.Context, params CreateParams) (Customer, error) {
	key := canon.Key(params.CustomerID)
	if key == "" || params.FirstName == "" || params.LastName == "" {
		return Customer{}, fault.New(fault.Validation, "missing_required_fields")
	}

	// UX check; the unique index is the real guarantee.
	if _, _, err := s.docs.FindByKey(ctx, docstore.Customers, "customer_id", key); err == nil {
		return Customer{}, fault.New(fault.Conflict, "customer_exists")
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return Customer{}, fault.Wrap(fault.Internal, "primary_store_failure", err)
	}

	rec := docstore.Record{
		"customer_id": key,
		"first_name":  params.FirstName,
		"last_name":   params.LastName,
		"active":      canon.Truthy(params.Active, true),
	}
	if params.Email != "" {
		rec["email"] = params.Email
	}
	if params.Phone != "" {
		rec["phone"] = params.Phone
	}

	id, err := s.docs.Insert(ctx, docstore.Customers, rec)
	if err != nil {
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return Customer{}, fault.New(fault.Conflict, "customer_exists")
		}
		return Customer{}, fault.Wrap(fault.Internal, "primary_store_failure", fmt.Errorf("customer: insert: %w", err))
	}

	fields := map[string]any{
		"first_name": params.FirstName,
		"last_name":  params.LastName,
		"active":     canon.Truthy(params.Active, true),
	}
	_, _ = s.sync.Propagate(ctx, dualwrite.CreateCustomer,
		dualwrite.Target{Collection: docstore.Customers, RecordID: id},
		func(m graph.Mutator) error {
			return m.MergeNode(ctx, graph.LabelCustomer, key, fields, graph.Overwrite)
		})

	return fromRecord(id, rec), nil
}

// updatable names the customer fields a partial update may touch. The
// identity key is immutable.
var updatable = map[string]struct{}{
	"first_name": {}, "last_name": {}, "email": {}, "phone": {}, "active": {},
}

// Update applies a sparse field set to an existing customer and mirrors the
// same fields onto its node.
func (s *Service) Update(ctx context.Context, customerID any, fields map[string]any) (Customer, error) {
	key := canon.Key(customerID)
	if key == "" {
		return Customer{}, fault.New(fault.Validation, "missing_required_fields")
	}
	if len(fields) == 0 {
		return Customer{}, fault.New(fault.Validation, "empty_update")
	}

	patch := docstore.Record{}
	for name, value := range fields {
		if name == "customer_id" || name == "_id" {
			return Customer{}, fault.New(fault.Validation, "immutable_key")
		}
		if _, ok := updatable[name]; !ok {
			return Customer{}, fault.New(fault.Validation, "unknown_field")
		}
		// Null means "leave as is", never "erase".
		if value == nil {
			continue
		}
		if name == "active" {
			value = canon.Truthy(value, true)
		}
		patch[name] = value
	}
	if len(patch) == 0 {
		return Customer{}, fault.New(fault.Validation, "empty_update")
	}

	matched, err := s.docs.UpdateFields(ctx, docstore.Customers, "customer_id", key, patch)
	if err != nil {
		return Customer{}, fault.Wrap(fault.Internal, "primary_store_failure", err)
	}
	if matched == 0 {
		return Customer{}, fault.New(fault.NotFound, "customer_not_found")
	}

	id, rec, err := s.docs.FindByKey(ctx, docstore.Customers, "customer_id", key)
	if err != nil {
		return Customer{}, fault.Wrap(fault.Internal, "primary_store_failure", err)
	}

	nodeFields := make(map[string]any, len(patch))
	for name, value := range patch {
		nodeFields[name] = value
	}
	_, _ = s.sync.Propagate(ctx, dualwrite.UpdateCustomer,
		dualwrite.Target{Collection: docstore.Customers, RecordID: id},
		func(m graph.Mutator) error {
			return m.MergeNode(ctx, graph.LabelCustomer, key, nodeFields, graph.Overwrite)
		})

	return fromRecord(id, rec), nil
}

// Deactivate soft-deletes: active goes false in the primary store and the
// node gains baja=true. Idempotent.
func (s *Service) Deactivate(ctx context.Context, customerID any) error {
	key := canon.Key(customerID)
	if key == "" {
		return fault.New(fault.Validation, "missing_required_fields")
	}

	matched, err := s.docs.UpdateFields(ctx, docstore.Customers, "customer_id", key, docstore.Record{"active": false})
	if err != nil {
		return fault.Wrap(fault.Internal, "primary_store_failure", err)
	}
	if matched == 0 {
		return fault.New(fault.NotFound, "customer_not_found")
	}

	_, _ = s.sync.Propagate(ctx, dualwrite.DeactivateCustomer,
		dualwrite.Target{Collection: docstore.Customers},
		func(m graph.Mutator) error {
			return m.MergeNode(ctx, graph.LabelCustomer, key, map[string]any{"active": false, "baja": true}, graph.Overwrite)
		})

	return nil
}
