// Package vehicle covers the vehicles collection: plate-keyed records with a
// flexible insured flag, and the insured-vehicle listing projection.
package vehicle

import (
	"context"
	"errors"

	"polisync/canon"
	"polisync/docstore"
	"polisync/fault"
)

type Vehicle struct {
	RecordID   string
	Plate      string
	CustomerID string
	Make       string
	Model      string
	Insured    bool
}

type Store interface {
	Insert(ctx context.Context, collection string, rec docstore.Record) (string, error)
	StreamAll(ctx context.Context, collection string, batchSize int, fn func(id string, rec docstore.Record) error) error
}

type Repository struct {
	docs Store
}

func NewRepository(docs Store) *Repository {
	return &Repository{docs: docs}
}

type CreateParams struct {
	Plate      string
	CustomerID any
	Make       string
	Model      string
	Insured    any
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (Vehicle, error) {
	if params.Plate == "" || canon.Key(params.CustomerID) == "" {
		return Vehicle{}, fault.New(fault.Validation, "missing_required_fields")
	}

	rec := docstore.Record{
		"plate":       params.Plate,
		"customer_id": canon.Key(params.CustomerID),
		"insured":     canon.Truthy(params.Insured, false),
	}
	if params.Make != "" {
		rec["make"] = params.Make
	}
	if params.Model != "" {
		rec["model"] = params.Model
	}

	id, err := r.docs.Insert(ctx, docstore.Vehicles, rec)
	if err != nil {
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return Vehicle{}, fault.New(fault.Conflict, "vehicle_exists")
		}
		return Vehicle{}, fault.Wrap(fault.Internal, "primary_store_failure", err)
	}

	return fromRecord(id, rec), nil
}

// ListInsured returns every vehicle whose insured flag parses truthy. The
// flag is tri-state in legacy documents ("si", "1", true).
func (r *Repository) ListInsured(ctx context.Context) ([]Vehicle, error) {
	var out []Vehicle
	err := r.docs.StreamAll(ctx, docstore.Vehicles, 500, func(id string, rec docstore.Record) error {
		if canon.Truthy(rec["insured"], false) {
			out = append(out, fromRecord(id, rec))
		}
		return nil
	})
	if err != nil {
		return nil, fault.Wrap(fault.Internal, "primary_store_failure", err)
	}
	return out, nil
}

func fromRecord(id string, rec docstore.Record) Vehicle {
	return Vehicle{
		RecordID:   id,
		Plate:      canon.Key(rec["plate"]),
		CustomerID: canon.Key(rec["customer_id"]),
		Make:       canon.Key(rec["make"]),
		Model:      canon.Key(rec["model"]),
		Insured:    canon.Truthy(rec["insured"], false),
	}
}
