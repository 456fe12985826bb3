package db

import (
	"context"
	"testing"
)

// Pool construction is lazy; no server is needed to exercise config handling.

func TestNewPoolRejectsEmptyConnString(t *testing.T) {
	if _, err := NewPool(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty connection string")
	}
}

func TestNewPoolRejectsMalformedConnString(t *testing.T) {
	if _, err := NewPool(context.Background(), "post gres://::nope"); err == nil {
		t.Fatal("expected error for malformed connection string")
	}
}

func TestNewPoolAppliesMaxConnsFromEnv(t *testing.T) {
	t.Setenv("DATABASE_MAX_CONNS", "7")

	pool, err := NewPool(context.Background(), "postgres://u:p@localhost:5432/app")
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer pool.Close()

	if got := pool.Config().MaxConns; got != 7 {
		t.Errorf("MaxConns = %d, want 7", got)
	}
}

func TestNewPoolRejectsInvalidMaxConns(t *testing.T) {
	for _, raw := range []string{"0", "-3", "many"} {
		t.Setenv("DATABASE_MAX_CONNS", raw)
		if _, err := NewPool(context.Background(), "postgres://u:p@localhost:5432/app"); err == nil {
			t.Errorf("DATABASE_MAX_CONNS=%q accepted", raw)
		}
	}
}
