package docstore

import (
	"context"
	"fmt"
)

// schemaDDL mirrors the index layout of the source dataset: unique keys on
// customer_id, (customer_id, policy_number), and plate; secondary indexes on
// foreign keys, status, and date fields.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS customers (id text PRIMARY KEY, doc jsonb NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS agents (id text PRIMARY KEY, doc jsonb NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS policies (id text PRIMARY KEY, doc jsonb NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS claims (id text PRIMARY KEY, doc jsonb NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS vehicles (id text PRIMARY KEY, doc jsonb NOT NULL)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS customers_customer_id_key ON customers ((doc->>'customer_id'))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS agents_agent_id_key ON agents ((doc->>'agent_id'))`,

	`CREATE UNIQUE INDEX IF NOT EXISTS policies_number_key ON policies ((doc->>'policy_number'))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS policies_customer_number_key ON policies ((doc->>'customer_id'), (doc->>'policy_number'))`,
	`CREATE INDEX IF NOT EXISTS policies_customer_idx ON policies ((doc->>'customer_id'))`,
	`CREATE INDEX IF NOT EXISTS policies_agent_idx ON policies ((doc->>'agent_id'))`,
	`CREATE INDEX IF NOT EXISTS policies_status_idx ON policies ((doc->>'status'))`,
	`CREATE INDEX IF NOT EXISTS policies_start_idx ON policies ((doc->>'start_date'))`,
	`CREATE INDEX IF NOT EXISTS policies_end_idx ON policies ((doc->>'end_date'))`,

	`CREATE INDEX IF NOT EXISTS claims_policy_idx ON claims ((doc->>'policy_id'))`,
	`CREATE INDEX IF NOT EXISTS claims_number_idx ON claims ((doc->>'policy_number'))`,
	`CREATE INDEX IF NOT EXISTS claims_type_idx ON claims ((doc->>'type'))`,
	`CREATE INDEX IF NOT EXISTS claims_date_idx ON claims ((doc->>'date'))`,
	`CREATE INDEX IF NOT EXISTS claims_status_idx ON claims ((doc->>'status'))`,

	`CREATE UNIQUE INDEX IF NOT EXISTS vehicles_plate_key ON vehicles ((doc->>'plate'))`,
	`CREATE INDEX IF NOT EXISTS vehicles_customer_idx ON vehicles ((doc->>'customer_id'))`,
	`CREATE INDEX IF NOT EXISTS vehicles_insured_idx ON vehicles ((doc->>'insured'))`,

	`CREATE SEQUENCE IF NOT EXISTS claim_seq START 90001`,
}

// EnsureSchema creates the collections, indexes, and the claim sequence.
// Safe to run on every boot.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("docstore: ensure schema: %w", err)
		}
	}
	return nil
}
