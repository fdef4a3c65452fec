// Package coach decides what guidance a learner receives. The rules
// engine picks tiered content from an ordered pattern-rule list; the
// budget controller rations how much of it is ever revealed.
package coach

import (
	"regexp"
	"strings"

	"github.com/felixgeelhaar/looplab/internal/domain"
)

const safetyNotes = "Coaching content is authored to illustrate the fix class only; micro-examples are parameterized away from the exercise's own tests."

// tierContent is what one rule offers at one tier. Questions narrow and
// nudges sharpen as the tier rises; only tier 3 may carry a micro-example.
type tierContent struct {
	Nudge        string
	Questions    []string
	DocIndex     int    // index into the loop's doc refs
	MicroExample string // tier 3 only
}

// rule pairs a predicate over the failure blob and learner source with
// tier-indexed content. Rules are evaluated in order; the first match
// wins for every tier.
type rule struct {
	Name    string
	Matches func(blob, source string) bool
	Tiers   [3]tierContent
}

// Engine selects coaching content deterministically from an ordered rule
// set with a baseline fallback. It holds no mutable state.
type Engine struct {
	rules    []rule
	baseline rule
}

// NewEngine creates an engine with the built-in rule set
func NewEngine() *Engine {
	return &Engine{
		rules:    defaultRules(),
		baseline: baselineRule(),
	}
}

// Grade produces the coaching payload for a tier, plus the proof the
// budget controller demands before it will spend a token. Selection is
// pure: identical inputs pick identical content.
func (e *Engine) Grade(loop *domain.Loop, sourceCode string, failingTests []domain.TestRecord, tier int) (domain.CoachingPayload, RevealProof) {
	tier = domain.ClampTier(tier)
	blob := failureBlob(failingTests)

	selected := e.baseline
	for _, r := range e.rules {
		if r.Matches(blob, sourceCode) {
			selected = r
			break
		}
	}

	content := selected.Tiers[tier-1]

	payload := domain.CoachingPayload{
		Tier:      tier,
		Nudge:     content.Nudge,
		Questions: capQuestions(content.Questions, tier),
		Doc:       loop.Doc(content.DocIndex),
		Safety: domain.Safety{
			NoFullSolution: true,
			Notes:          safetyNotes,
		},
	}
	if tier == domain.TierMax {
		payload.MicroExample = content.MicroExample
	}

	return payload, RevealProof{tier: tier, valid: true}
}

// failureBlob folds failing test names and error messages into one
// lowercase searchable text
func failureBlob(failing []domain.TestRecord) string {
	var b strings.Builder
	for _, rec := range failing {
		b.WriteString(rec.Name)
		b.WriteString("\n")
		b.WriteString(rec.Error)
		b.WriteString("\n")
	}
	return strings.ToLower(b.String())
}

func capQuestions(questions []string, tier int) []string {
	max := 3
	if tier == domain.TierMin {
		max = 2
	}
	if len(questions) > max {
		questions = questions[:max]
	}
	out := make([]string, len(questions))
	copy(out, questions)
	return out
}

// -----------------------------------------------------------------------------
// Built-in rules, in priority order. First match wins; the baseline
// applies when nothing matches.
// -----------------------------------------------------------------------------

var (
	// arrow or function parameter, then the same-looking identifier (or the
	// whole identifier, not a field access) compared against a number
	arrowParamRegex = regexp.MustCompile(`\(?\s*([A-Za-z_$][\w$]*)\s*\)?\s*=>\s*([A-Za-z_$][\w$]*)\s*(?:[<>]=?|[!=]==?)\s*[\d'"]`)
	funcParamRegex  = regexp.MustCompile(`function\s*\w*\s*\(\s*([A-Za-z_$][\w$]*)\s*\)\s*\{\s*return\s+([A-Za-z_$][\w$]*)\s*(?:[<>]=?|[!=]==?)\s*[\d'"]`)

	arrowBlockRegex = regexp.MustCompile(`=>\s*\{`)
	funcBlockRegex  = regexp.MustCompile(`\bfunction\b[^{]*\{`)
)

// comparesWholeParam detects a predicate comparing its whole parameter to
// a literal instead of reaching into a field (`p => p > 18` where p is a
// record, rather than `p => p.age > 18`).
func comparesWholeParam(source string) bool {
	for _, re := range []*regexp.Regexp{arrowParamRegex, funcParamRegex} {
		for _, m := range re.FindAllStringSubmatch(source, -1) {
			if m[1] == m[2] {
				return true
			}
		}
	}
	return false
}

// neverReturns reports a function body that can't produce a value: a
// braced body with no return keyword anywhere in the source. Expression
// arrow bodies return implicitly and don't count.
func neverReturns(source string) bool {
	if strings.Contains(source, "return") {
		return false
	}
	return arrowBlockRegex.MatchString(source) || funcBlockRegex.MatchString(source)
}

var boundaryPhrases = []string{
	"boundary",
	"off by one",
	"off-by-one",
	"exactly",
	"inclusive",
	"exclusive",
	"edge case",
}

func mentionsBoundary(blob string) bool {
	for _, phrase := range boundaryPhrases {
		if strings.Contains(blob, phrase) {
			return true
		}
	}
	return false
}

func defaultRules() []rule {
	return []rule{
		{
			Name: "whole-value-comparison",
			Matches: func(blob, source string) bool {
				return comparesWholeParam(source)
			},
			Tiers: [3]tierContent{
				{
					Nudge: "Look closely at what your predicate is comparing. Is it the thing you mean to compare?",
					Questions: []string{
						"What type of value does your callback receive on each iteration?",
						"Can that whole value be meaningfully compared to a number?",
					},
					DocIndex: 0,
				},
				{
					Nudge: "Your comparison uses the entire element, but the condition is about one property of it.",
					Questions: []string{
						"Which property of each element does the failing test actually check?",
						"How do you read a single property off an object in this language?",
						"What does comparing an object to a number evaluate to?",
					},
					DocIndex: 0,
				},
				{
					Nudge: "Reach into the element for the field you care about before comparing. The comparison itself is fine; its left-hand side is not.",
					Questions: []string{
						"Which field holds the number the test expects you to compare?",
						"If you log the callback's argument, what shape do you see?",
					},
					DocIndex: 0,
					MicroExample: "// compare a field of the record, not the record itself\n" +
						"const longEnough = (entry) => entry.word.length >= 5;",
				},
			},
		},
		{
			Name: "off-by-one-boundary",
			Matches: func(blob, source string) bool {
				return mentionsBoundary(blob)
			},
			Tiers: [3]tierContent{
				{
					Nudge: "The failing case sits right at the edge of your condition.",
					Questions: []string{
						"Should the boundary value itself be included or excluded?",
						"What does your comparison do with a value that is exactly equal?",
					},
					DocIndex: 1,
				},
				{
					Nudge: "Walk your comparison through the exact boundary value from the failing test name. Strict and inclusive comparisons differ only there.",
					Questions: []string{
						"For the boundary value, what does your condition evaluate to today?",
						"What should it evaluate to according to the failing test?",
						"Which single character changes between strict and inclusive comparison?",
					},
					DocIndex: 1,
				},
				{
					Nudge: "Pick the operator that treats the boundary the way the test demands; everything else in your code can stay.",
					Questions: []string{
						"Is the spec phrased as 'at least', 'more than', 'up to', or 'under'?",
						"Which of >=, >, <=, < matches that phrasing?",
					},
					DocIndex: 1,
					MicroExample: "// '>= 10' keeps the boundary value, '> 10' drops it\n" +
						"const atLeastTen = (n) => n >= 10;",
				},
			},
		},
		{
			Name: "missing-return",
			Matches: func(blob, source string) bool {
				return neverReturns(source)
			},
			Tiers: [3]tierContent{
				{
					Nudge: "Your function runs, but does its result ever leave the function body?",
					Questions: []string{
						"What value does a caller receive from your function right now?",
						"Where in the body is that value produced?",
					},
					DocIndex: 0,
				},
				{
					Nudge: "Computing a value and returning it are separate steps. Your body does the first without the second, so callers see undefined.",
					Questions: []string{
						"Which expression in your body holds the final answer?",
						"What keyword hands a value back to the caller?",
						"What do the failing assertions say they received?",
					},
					DocIndex: 0,
				},
				{
					Nudge: "Add an explicit return of your computed value as the last step of the function body.",
					Questions: []string{
						"Does every code path through your function end in a return?",
					},
					DocIndex: 0,
					MicroExample: "function double(n) {\n" +
						"  const result = n * 2;\n" +
						"  return result; // the value must leave the function\n" +
						"}",
				},
			},
		},
	}
}

func baselineRule() rule {
	return rule{
		Name: "baseline",
		Matches: func(blob, source string) bool {
			return true
		},
		Tiers: [3]tierContent{
			{
				Nudge: "Re-read the failing test names; each one states an expectation in plain words.",
				Questions: []string{
					"Which single failing test looks easiest to fix first?",
					"What did that test expect, and what did your code produce instead?",
				},
				DocIndex: 0,
			},
			{
				Nudge: "Compare the expected and actual values in the first failure message character by character; the difference points at the code that produced it.",
				Questions: []string{
					"Which line of your code produced the actual value in the failure?",
					"What input did the test feed in to get there?",
					"Can you reproduce the wrong value by tracing that input by hand?",
				},
				DocIndex: 0,
			},
			{
				Nudge: "Isolate the smallest input that still fails and trace it through your code one expression at a time.",
				Questions: []string{
					"At which expression does your hand-trace first disagree with the expected value?",
					"What assumption did you make there?",
				},
				DocIndex: 0,
				MicroExample: "// shrink the failing case before fixing it\n" +
					"const smallest = [inputs].find((input) => !meetsExpectation(run(input)));",
			},
		},
	}
}
