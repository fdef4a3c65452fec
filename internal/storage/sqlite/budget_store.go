package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/looplab/internal/coach"
	"github.com/felixgeelhaar/looplab/internal/domain"
)

// BudgetStore implements coach.BudgetStore backed by SQLite
type BudgetStore struct {
	db *DB
}

// NewBudgetStore creates a new SQLite-backed budget store
func NewBudgetStore(db *DB) *BudgetStore {
	return &BudgetStore{db: db}
}

// Get retrieves the budget state for a (scope, loop) pair
func (s *BudgetStore) Get(ctx context.Context, scope, loopID string) (domain.BudgetState, bool, error) {
	var state domain.BudgetState
	row := s.db.QueryRowContext(ctx,
		`SELECT tokens, tier FROM hint_budgets WHERE scope = ? AND loop_id = ?`,
		scope, loopID)
	if err := row.Scan(&state.TokensRemaining, &state.HighestTierUnlocked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BudgetState{}, false, nil
		}
		return domain.BudgetState{}, false, fmt.Errorf("get budget state: %w", err)
	}
	return state, true, nil
}

// Put inserts or replaces the budget state
func (s *BudgetStore) Put(ctx context.Context, scope, loopID string, state domain.BudgetState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hint_budgets (scope, loop_id, tokens, tier, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(scope, loop_id) DO UPDATE SET
			tokens=excluded.tokens, tier=excluded.tier, updated_at=excluded.updated_at`,
		scope, loopID, state.TokensRemaining, state.HighestTierUnlocked, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert budget state: %w", err)
	}
	return nil
}

// Ensure the SQLite store satisfies the coach interface.
var _ coach.BudgetStore = (*BudgetStore)(nil)
