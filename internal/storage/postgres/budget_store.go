// Package postgres persists hint budget state in PostgreSQL for server
// deployments where several looplab instances share one store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/looplab/internal/coach"
	"github.com/felixgeelhaar/looplab/internal/domain"
)

// BudgetStore implements coach.BudgetStore using PostgreSQL
type BudgetStore struct {
	pool *pgxpool.Pool
}

// NewBudgetStore creates a new PostgreSQL budget store
func NewBudgetStore(pool *pgxpool.Pool) *BudgetStore {
	return &BudgetStore{pool: pool}
}

// Connect opens a pool and verifies connectivity
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the budget table when it does not exist yet
func (s *BudgetStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS hint_budgets (
		scope       TEXT NOT NULL,
		loop_id     TEXT NOT NULL,
		tokens      INTEGER NOT NULL,
		tier        INTEGER NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (scope, loop_id)
	)`)
	if err != nil {
		return fmt.Errorf("create hint_budgets: %w", err)
	}
	return nil
}

// Get retrieves the budget state for a (scope, loop) pair
func (s *BudgetStore) Get(ctx context.Context, scope, loopID string) (domain.BudgetState, bool, error) {
	query := `SELECT tokens, tier FROM hint_budgets WHERE scope = $1 AND loop_id = $2`

	var state domain.BudgetState
	err := s.pool.QueryRow(ctx, query, scope, loopID).Scan(&state.TokensRemaining, &state.HighestTierUnlocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BudgetState{}, false, nil
		}
		return domain.BudgetState{}, false, fmt.Errorf("get budget state: %w", err)
	}
	return state, true, nil
}

// Put inserts or replaces the budget state
func (s *BudgetStore) Put(ctx context.Context, scope, loopID string, state domain.BudgetState) error {
	query := `
		INSERT INTO hint_budgets (scope, loop_id, tokens, tier, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scope, loop_id) DO UPDATE SET
			tokens = EXCLUDED.tokens, tier = EXCLUDED.tier, updated_at = EXCLUDED.updated_at
	`
	_, err := s.pool.Exec(ctx, query, scope, loopID, state.TokensRemaining, state.HighestTierUnlocked, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert budget state: %w", err)
	}
	return nil
}

// Ensure the PostgreSQL store satisfies the coach interface.
var _ coach.BudgetStore = (*BudgetStore)(nil)
