// Package taginfer infers a topic tag from raw query text when the caller
// does not supply one. It is a pure, deterministic keyword-table scorer in
// the same style as the teacher's PatternClassifier (internal/search/patterns.go):
// no network calls, no randomness, no map-iteration-order dependence.
package taginfer

import (
	"strings"
)

// DefaultTag is returned when no configured tag's keywords match the query.
const DefaultTag = "general"

// Rule binds a tag to the keywords that select it. Keywords are matched
// case-insensitively as substrings of the query.
type Rule struct {
	Tag      string
	Keywords []string
}

// Inferencer scores query text against an ordered list of Rules. Order is
// the tie-break: when two tags score equally, the one declared earlier wins,
// resolving the "avoid language-dependent map ordering" Open Question by
// making the tie-break an explicit, caller-visible list rather than an
// incidental hash-map iteration order.
type Inferencer struct {
	rules []Rule
}

// New constructs an Inferencer from rules in priority order.
func New(rules []Rule) *Inferencer {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Inferencer{rules: cp}
}

// Default returns an Inferencer seeded with a small general-purpose keyword
// table. Callers with domain-specific tags should build their own via New.
func Default() *Inferencer {
	return New([]Rule{
		{Tag: "code", Keywords: []string{"function", "class", "error", "exception", "bug", "compile", "syntax", "variable", "method"}},
		{Tag: "docs", Keywords: []string{"documentation", "readme", "guide", "tutorial", "explain", "how to", "what is"}},
		{Tag: "config", Keywords: []string{"config", "configuration", "setting", "environment", "yaml", "env var"}},
		{Tag: "ops", Keywords: []string{"deploy", "deployment", "incident", "outage", "monitor", "alert", "rollback"}},
	})
}

// Infer scores each rule by how many of its keywords occur in query and
// returns the tag of the highest-scoring rule; on ties the earliest-declared
// rule wins. Returns DefaultTag if no rule scores above 0.
func (inf *Inferencer) Infer(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return DefaultTag
	}

	bestTag := DefaultTag
	bestScore := 0
	for _, rule := range inf.rules {
		score := countMatches(q, rule.Keywords)
		if score > bestScore {
			bestScore = score
			bestTag = rule.Tag
		}
		// score == bestScore: keep the earlier-declared rule, i.e. do nothing.
	}
	return bestTag
}

func countMatches(query string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(query, strings.ToLower(kw)) {
			count++
		}
	}
	return count
}
