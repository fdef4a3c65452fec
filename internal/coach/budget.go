package coach

import (
	"context"

	"github.com/felixgeelhaar/looplab/internal/domain"
)

// BudgetStore persists hint budget state keyed by (learner session scope,
// loop id). Implementations: sqlite, postgres, in-memory.
type BudgetStore interface {
	// Get returns the stored state and whether one exists
	Get(ctx context.Context, scope, loopID string) (domain.BudgetState, bool, error)

	// Put inserts or replaces the state
	Put(ctx context.Context, scope, loopID string, state domain.BudgetState) error
}

// RevealProof is evidence that the rules engine actually produced a
// payload. ApplyReveal demands one, which makes "only mutate after a
// successful grade" a property of the types rather than call-site
// discipline: only Engine.Grade can mint a valid proof.
type RevealProof struct {
	tier  int
	valid bool
}

// Tier returns the tier the proven payload was produced at
func (p RevealProof) Tier() int {
	return p.tier
}

// Controller is the hint budget state machine. It owns every mutation of
// BudgetState; callers check CanReveal, run the engine, then trade the
// proof for a token.
type Controller struct {
	store BudgetStore
}

// NewController creates a budget controller over a store
func NewController(store BudgetStore) *Controller {
	return &Controller{store: store}
}

// Current loads the state for a (scope, loop) pair, creating the initial
// full-budget state on first access. Stored state is clamped back inside
// the budget's invariants in case the loop's budget shrank since it was
// written.
func (c *Controller) Current(ctx context.Context, scope, loopID string, totalBudget int) (domain.BudgetState, error) {
	state, ok, err := c.store.Get(ctx, scope, loopID)
	if err != nil {
		return domain.BudgetState{}, err
	}
	if !ok {
		state = domain.NewBudgetState(totalBudget)
		if err := c.store.Put(ctx, scope, loopID, state); err != nil {
			return domain.BudgetState{}, err
		}
		return state, nil
	}

	if state.TokensRemaining > totalBudget {
		state.TokensRemaining = totalBudget
	}
	if max := domain.MaxTierFor(totalBudget); state.HighestTierUnlocked > max {
		state.HighestTierUnlocked = max
	}
	return state, nil
}

// CanReveal reports whether a reveal is currently permitted: coaching
// enabled, at least one failing test from the latest run, tokens left,
// and headroom below the budget's tier ceiling. A false result is a
// valid state, not an error.
func (c *Controller) CanReveal(state domain.BudgetState, totalBudget int, hasFailingTests bool) bool {
	if totalBudget <= 0 {
		return false
	}
	if !hasFailingTests {
		return false
	}
	if state.TokensRemaining <= 0 {
		return false
	}
	return state.HighestTierUnlocked < domain.MaxTierFor(totalBudget)
}

// ApplyReveal spends one token and raises the unlocked tier to the proven
// one. It is only legal after the engine produced a payload; an invalid
// proof mutates nothing. Re-running tests never refunds tokens.
func (c *Controller) ApplyReveal(ctx context.Context, scope, loopID string, state domain.BudgetState, proof RevealProof) (domain.BudgetState, error) {
	if !proof.valid {
		return state, domain.ErrRevealNotAllowed
	}

	next := state
	if next.TokensRemaining > 0 {
		next.TokensRemaining--
	}
	next.HighestTierUnlocked = proof.tier

	if err := c.store.Put(ctx, scope, loopID, next); err != nil {
		return state, err
	}
	return next, nil
}

// Reset restores the full budget. Development-only; the API surfaces it
// outside production mode exclusively.
func (c *Controller) Reset(ctx context.Context, scope, loopID string, totalBudget int) (domain.BudgetState, error) {
	state := domain.NewBudgetState(totalBudget)
	if err := c.store.Put(ctx, scope, loopID, state); err != nil {
		return domain.BudgetState{}, err
	}
	return state, nil
}
