package db

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool constructs a pgx connection pool using the provided connection
// string. DATABASE_MAX_CONNS caps the pool when set; the API handlers and
// the reconciliation job share one pool, so the cap bounds their combined
// load on Postgres.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	if connString == "" {
		return nil, fmt.Errorf("db: empty connection string")
	}

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("db: parse config: %w", err)
	}

	if raw := os.Getenv("DATABASE_MAX_CONNS"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("db: invalid DATABASE_MAX_CONNS %q", raw)
		}
		cfg.MaxConns = int32(n)
	}

	return pgxpool.NewWithConfig(ctx, cfg)
}
