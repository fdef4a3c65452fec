package domain

// Loop represents one coding exercise: a spec, starter code, hidden tests,
// and a hint budget. Loops are loaded from content files and never mutated
// by the grading pipeline.
type Loop struct {
	ID              string   // slug: "ts-v1/filter-adults"
	Title           string
	SpecLines       []string // ordered bullet lines shown to the learner
	ExpectedExports []string // export names the tests rely on
	HintBudget      int      // total hint tokens; 0 disables coaching
	DocRefs         []DocRef // ordered documentation pointers
	StarterCode     string   // editor seed (not used for grading)
	TestCode        string   // hidden test source, server-owned
}

// DocRef points a learner at external documentation
type DocRef struct {
	Label string `json:"label" yaml:"label"`
	URL   string `json:"url" yaml:"url"`
}

// CoachingEnabled reports whether this loop has a hint budget at all
func (l *Loop) CoachingEnabled() bool {
	return l.HintBudget > 0
}

// Doc returns the doc reference at index i, clamped into range.
// Returns a zero DocRef if the loop has none.
func (l *Loop) Doc(i int) DocRef {
	if len(l.DocRefs) == 0 {
		return DocRef{}
	}
	if i < 0 {
		i = 0
	}
	if i >= len(l.DocRefs) {
		i = len(l.DocRefs) - 1
	}
	return l.DocRefs[i]
}
