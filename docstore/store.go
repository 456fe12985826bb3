// Package docstore is the authoritative store adapter. Records keep the
// source system's document shape: each collection is a table of
// (id, doc jsonb) rows with uniqueness enforced by expression indexes, so a
// duplicate identity key surfaces as a unique violation regardless of any
// read-before-write check in the services.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Collection names of the primary store.
const (
	Customers = "customers"
	Agents    = "agents"
	Policies  = "policies"
	Claims    = "claims"
	Vehicles  = "vehicles"
)

var (
	// ErrNotFound signals no record matched the key.
	ErrNotFound = errors.New("docstore: not found")
	// ErrDuplicateKey signals a uniqueness constraint rejected an insert.
	ErrDuplicateKey = errors.New("docstore: duplicate key")
	// ErrUnknownCollection signals a collection name outside the schema.
	ErrUnknownCollection = errors.New("docstore: unknown collection")
)

var collections = map[string]struct{}{
	Customers: {}, Agents: {}, Policies: {}, Claims: {}, Vehicles: {},
}

// Record is one document. Field names follow the API payloads
// (customer_id, policy_number, ...); values keep their JSON types.
type Record map[string]any

// Store provides document access over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func table(collection string) (string, error) {
	if _, ok := collections[collection]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return collection, nil
}

// Insert stores a new document and returns its generated record id.
// Uniqueness violations map to ErrDuplicateKey.
func (s *Store) Insert(ctx context.Context, collection string, rec Record) (string, error) {
	t, err := table(collection)
	if err != nil {
		return "", err
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("docstore: marshal %s document: %w", collection, err)
	}

	id := uuid.NewString()
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)`, t), id, doc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", ErrDuplicateKey
		}
		return "", fmt.Errorf("docstore: insert into %s: %w", collection, err)
	}

	return id, nil
}

// FindByKey returns the first document whose keyField equals key (values are
// compared in canonical string form). Returns ErrNotFound when absent.
func (s *Store) FindByKey(ctx context.Context, collection, keyField, key string) (string, Record, error) {
	t, err := table(collection)
	if err != nil {
		return "", nil, err
	}

	var (
		id  string
		doc []byte
	)
	query := fmt.Sprintf(`SELECT id, doc FROM %s WHERE doc->>$1 = $2 LIMIT 1`, t)
	if err := s.pool.QueryRow(ctx, query, keyField, key).Scan(&id, &doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, ErrNotFound
		}
		return "", nil, fmt.Errorf("docstore: find %s by %s: %w", collection, keyField, err)
	}

	rec, err := decode(doc)
	if err != nil {
		return "", nil, fmt.Errorf("docstore: decode %s document: %w", collection, err)
	}
	return id, rec, nil
}

// FindByID returns the document with the given record id.
func (s *Store) FindByID(ctx context.Context, collection, id string) (Record, error) {
	t, err := table(collection)
	if err != nil {
		return nil, err
	}

	var doc []byte
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, t), id).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("docstore: find %s by id: %w", collection, err)
	}
	return decode(doc)
}

// UpdateFields merges fields into every document whose keyField equals key
// and reports the matched count. Existing fields not named are untouched.
func (s *Store) UpdateFields(ctx context.Context, collection, keyField, key string, fields Record) (int64, error) {
	t, err := table(collection)
	if err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, fmt.Errorf("docstore: empty field set for %s", collection)
	}

	patch, err := json.Marshal(fields)
	if err != nil {
		return 0, fmt.Errorf("docstore: marshal %s patch: %w", collection, err)
	}

	query := fmt.Sprintf(`UPDATE %s SET doc = doc || $1::jsonb WHERE doc->>$2 = $3`, t)
	tag, err := s.pool.Exec(ctx, query, patch, keyField, key)
	if err != nil {
		return 0, fmt.Errorf("docstore: update %s: %w", collection, err)
	}
	return tag.RowsAffected(), nil
}

// UpdateFieldsByID merges fields into the document with the given record id.
func (s *Store) UpdateFieldsByID(ctx context.Context, collection, id string, fields Record) (int64, error) {
	t, err := table(collection)
	if err != nil {
		return 0, err
	}

	patch, err := json.Marshal(fields)
	if err != nil {
		return 0, fmt.Errorf("docstore: marshal %s patch: %w", collection, err)
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET doc = doc || $1::jsonb WHERE id = $2`, t), patch, id)
	if err != nil {
		return 0, fmt.Errorf("docstore: update %s by id: %w", collection, err)
	}
	return tag.RowsAffected(), nil
}

// MarkSyncFailure flags a document whose derived write failed. The flag stays
// until a reconciliation pass rebuilds the projection.
func (s *Store) MarkSyncFailure(ctx context.Context, collection, id, detail string) error {
	_, err := s.UpdateFieldsByID(ctx, collection, id, Record{
		"sync_error":        true,
		"sync_error_detail": detail,
	})
	return err
}

// ClearSyncFailure removes the failure marker once a reconciliation pass has
// rebuilt the record's projection.
func (s *Store) ClearSyncFailure(ctx context.Context, collection, id string) error {
	t, err := table(collection)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET doc = doc - 'sync_error' - 'sync_error_detail' WHERE id = $1`, t)
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("docstore: clear sync failure on %s: %w", collection, err)
	}
	return nil
}

// StreamAll walks every document in the collection in id order, batchSize
// rows per query, invoking fn for each. The walk restarts from the beginning
// on every call; it is not resumable mid-stream. A non-nil error from fn
// stops the walk.
func (s *Store) StreamAll(ctx context.Context, collection string, batchSize int, fn func(id string, rec Record) error) error {
	t, err := table(collection)
	if err != nil {
		return err
	}
	if batchSize <= 0 {
		batchSize = 500
	}

	query := fmt.Sprintf(`SELECT id, doc FROM %s WHERE id > $1 ORDER BY id LIMIT $2`, t)
	after := ""
	for {
		batch, err := s.fetchBatch(ctx, query, after, batchSize)
		if err != nil {
			return fmt.Errorf("docstore: stream %s: %w", collection, err)
		}
		if len(batch) == 0 {
			return nil
		}
		for _, row := range batch {
			if err := fn(row.id, row.rec); err != nil {
				return err
			}
			after = row.id
		}
		if len(batch) < batchSize {
			return nil
		}
	}
}

type streamRow struct {
	id  string
	rec Record
}

func (s *Store) fetchBatch(ctx context.Context, query, after string, limit int) ([]streamRow, error) {
	rows, err := s.pool.Query(ctx, query, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]streamRow, 0, limit)
	for rows.Next() {
		var (
			id  string
			doc []byte
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		rec, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, streamRow{id: id, rec: rec})
	}
	return out, rows.Err()
}

// CountAll reports the number of documents in the collection.
func (s *Store) CountAll(ctx context.Context, collection string) (int64, error) {
	t, err := table(collection)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t)).Scan(&n); err != nil {
		return 0, fmt.Errorf("docstore: count %s: %w", collection, err)
	}
	return n, nil
}

// NextClaimSeq reserves the next claim number from the store-side sequence.
func (s *Store) NextClaimSeq(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval('claim_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("docstore: claim sequence: %w", err)
	}
	return n, nil
}

func decode(doc []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}
