package domain

// Hint tiers. Tier 0 means no hint has been revealed yet; tiers 1-3
// escalate toward actionable specificity, one step per spent token.
const (
	TierNone = 0
	TierMin  = 1
	TierMax  = 3
)

// ClampTier forces a requested tier into {1,2,3}; out-of-range requests
// fall back to the broadest tier.
func ClampTier(tier int) int {
	if tier < TierMin || tier > TierMax {
		return TierMin
	}
	return tier
}

// MaxTierFor returns the highest tier a loop's budget can ever unlock
func MaxTierFor(totalBudget int) int {
	if totalBudget < TierMax {
		return totalBudget
	}
	return TierMax
}

// BudgetState tracks hint rationing for one (learner session, loop) pair.
// Mutated only by a successful reveal or an explicit reset.
type BudgetState struct {
	TokensRemaining     int `json:"tokensRemaining"`
	HighestTierUnlocked int `json:"highestTierUnlocked"`
}

// NewBudgetState is the state on first access: full tokens, nothing unlocked
func NewBudgetState(totalBudget int) BudgetState {
	if totalBudget < 0 {
		totalBudget = 0
	}
	return BudgetState{TokensRemaining: totalBudget, HighestTierUnlocked: TierNone}
}

// NextTier returns the tier a reveal request targets: one step up,
// capped at what the budget allows.
func (s BudgetState) NextTier(totalBudget int) int {
	next := s.HighestTierUnlocked + 1
	if max := MaxTierFor(totalBudget); next > max {
		next = max
	}
	return next
}

// CoachingPayload is one revealed hint. Produced fresh per reveal and
// never persisted.
type CoachingPayload struct {
	Tier         int      `json:"tier"`
	Nudge        string   `json:"nudge"`
	Questions    []string `json:"questions"`
	Doc          DocRef   `json:"doc"`
	MicroExample string   `json:"microExample,omitempty"` // tier 3 only
	Safety       Safety   `json:"safety"`
}

// Safety documents the payload's guarantee: coaching never contains a
// runnable full solution. The guarantee is upheld by rule authoring,
// not by a runtime validator.
type Safety struct {
	NoFullSolution bool   `json:"noFullSolution"`
	Notes          string `json:"notes"`
}
