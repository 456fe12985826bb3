package vehicle

import (
	"context"
	"testing"

	"polisync/docstore"
	"polisync/fault"
)

type entry struct {
	id  string
	rec docstore.Record
}

type fakeStore struct {
	rows []entry
}

func (f *fakeStore) Insert(ctx context.Context, collection string, rec docstore.Record) (string, error) {
	plate, _ := rec["plate"].(string)
	for _, e := range f.rows {
		if e.rec["plate"] == plate {
			return "", docstore.ErrDuplicateKey
		}
	}
	id := "rec-" + plate
	f.rows = append(f.rows, entry{id: id, rec: rec})
	return id, nil
}

func (f *fakeStore) StreamAll(ctx context.Context, collection string, batchSize int, fn func(id string, rec docstore.Record) error) error {
	for _, e := range f.rows {
		if err := fn(e.id, e.rec); err != nil {
			return err
		}
	}
	return nil
}

func TestCreateRequiresPlateAndCustomer(t *testing.T) {
	repo := NewRepository(&fakeStore{})

	_, err := repo.Create(context.Background(), CreateParams{CustomerID: "1"})
	if !fault.IsKind(err, fault.Validation) {
		t.Fatalf("missing plate err = %v", err)
	}
	_, err = repo.Create(context.Background(), CreateParams{Plate: "AA-123"})
	if !fault.IsKind(err, fault.Validation) {
		t.Fatalf("missing customer err = %v", err)
	}
}

func TestCreateDuplicatePlateIsConflict(t *testing.T) {
	repo := NewRepository(&fakeStore{})

	if _, err := repo.Create(context.Background(), CreateParams{Plate: "AA-123", CustomerID: "1"}); err != nil {
		t.Fatal(err)
	}
	_, err := repo.Create(context.Background(), CreateParams{Plate: "AA-123", CustomerID: "2"})
	if !fault.IsKind(err, fault.Conflict) || fault.CodeOf(err) != "vehicle_exists" {
		t.Fatalf("err = %v", err)
	}
}

// The insured flag is tri-state in legacy documents: booleans, "si"/"no",
// and "1"/"0" all coexist, and a missing flag means uninsured.
func TestListInsuredFiltersTriStateFlag(t *testing.T) {
	store := &fakeStore{rows: []entry{
		{id: "rec-a", rec: docstore.Record{"plate": "AA-1", "customer_id": "1", "insured": true}},
		{id: "rec-b", rec: docstore.Record{"plate": "BB-2", "customer_id": "1", "insured": "si"}},
		{id: "rec-c", rec: docstore.Record{"plate": "CC-3", "customer_id": "2", "insured": "1"}},
		{id: "rec-d", rec: docstore.Record{"plate": "DD-4", "customer_id": "2", "insured": "no"}},
		{id: "rec-e", rec: docstore.Record{"plate": "EE-5", "customer_id": "2", "insured": false}},
		{id: "rec-f", rec: docstore.Record{"plate": "FF-6", "customer_id": "3"}},
	}}
	repo := NewRepository(store)

	got, err := repo.ListInsured(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("insured = %+v, want 3 vehicles", got)
	}
	for _, v := range got {
		if !v.Insured {
			t.Errorf("uninsured vehicle in listing: %+v", v)
		}
	}
	if got[0].Plate != "AA-1" || got[1].Plate != "BB-2" || got[2].Plate != "CC-3" {
		t.Errorf("plates = %s %s %s", got[0].Plate, got[1].Plate, got[2].Plate)
	}
}
