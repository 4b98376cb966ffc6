package planner

import (
	"strings"

	"conductor/internal/ports"
)

// Scoring is additive over documented signals, clamped to [1,10]. The
// numeric weights are rule-table defaults; only the signal shapes are
// contractual.

var multiStepMarkers = []string{"and then", "after that", "first", "then", "finally", "step by step", "followed by"}

var codeExtensions = []string{".go", ".py", ".js", ".ts", ".java", ".rs", ".rb", ".c", ".cpp", ".sql", ".yaml", ".json"}

var hedgeWords = []string{"maybe", "somehow", "something", "anything", "whatever", "probably", "possibly", "roughly", "stuff", "etc"}

var hedgePhrases = []string{"kind of", "sort of", "not sure", "or something", "you know"}

var pronounWords = []string{"it", "this", "that", "these", "those", "them"}

// scoreComplexity rates how much work a query implies on 1-10:
// length (+0..4), extra sub-questions (+0..2), multi-step phrasing (+0..2),
// code markers (+0..2), and a +1 for the build-heavy intents.
func scoreComplexity(query string, intent ports.Intent) int {
	score := 1
	words := len(strings.Fields(query))
	switch {
	case words >= 40:
		score += 4
	case words >= 24:
		score += 3
	case words >= 16:
		score += 2
	case words >= 8:
		score++
	}

	if extra := strings.Count(query, "?") - 1; extra > 0 {
		score += minInt(extra, 2)
	}

	lower := strings.ToLower(query)
	steps := 0
	for _, marker := range multiStepMarkers {
		if strings.Contains(lower, marker) {
			steps++
		}
	}
	score += minInt(steps, 2)

	if markers := codeMarkerCount(query); markers > 0 {
		score += minInt(markers, 2)
	}

	switch intent {
	case ports.IntentDebug, ports.IntentRefactor, ports.IntentImplementation:
		score++
	}
	return clampScore(score)
}

// scoreAmbiguity rates how underspecified a query is on 1-10: dangling
// pronouns (+0..3), hedging (+0..3), and a short query with no concrete
// referent (+2). Concrete anchors (code markers, quoted names) subtract,
// and an ongoing conversation subtracts one because earlier turns can
// resolve referents.
func scoreAmbiguity(query string, history ports.ConversationState) int {
	score := 1
	lower := strings.ToLower(query)
	words := tokenSet(lower)

	pronouns := 0
	for _, p := range pronounWords {
		if words[p] {
			pronouns++
		}
	}
	score += minInt(pronouns, 3)

	hedges := 0
	for _, h := range hedgeWords {
		if words[h] {
			hedges++
		}
	}
	for _, h := range hedgePhrases {
		if strings.Contains(lower, h) {
			hedges++
		}
	}
	score += minInt(hedges, 3)

	anchors := codeMarkerCount(query)
	quoted := strings.Count(query, `"`) >= 2 || strings.Count(query, "'") >= 2
	if anchors == 0 && !quoted && len(strings.Fields(query)) < 8 && pronouns > 0 {
		score += 2
	}
	if anchors > 0 {
		score -= 2
	}
	if quoted {
		score--
	}
	if history.Requests > 0 {
		score--
	}
	return clampScore(score)
}

// codeMarkerCount counts distinct signals that the query points at real
// code: backticks, call/brace syntax, snake_case or camelCase identifiers,
// paths, and known file extensions.
func codeMarkerCount(query string) int {
	count := 0
	if strings.Contains(query, "`") {
		count++
	}
	if strings.Contains(query, "()") || strings.Contains(query, "{}") {
		count++
	}
	lower := strings.ToLower(query)
	for _, ext := range codeExtensions {
		if strings.Contains(lower, ext) {
			count++
			break
		}
	}
	for _, f := range strings.Fields(query) {
		if strings.Contains(f, "_") && len(f) > 2 {
			count++
			break
		}
	}
	for _, f := range strings.Fields(query) {
		if isCamelCase(f) {
			count++
			break
		}
	}
	if strings.Contains(query, "/") && len(strings.Fields(query)) > 1 {
		count++
	}
	return count
}

func isCamelCase(word string) bool {
	word = strings.Trim(word, ".,:;!?\"'()[]{}")
	if len(word) < 3 {
		return false
	}
	hasLower, hasUpper := false, false
	for i, r := range word {
		if r >= 'a' && r <= 'z' {
			hasLower = true
		}
		if r >= 'A' && r <= 'Z' && i > 0 {
			hasUpper = true
		}
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return hasLower && hasUpper
}

// strategyFor maps the two scores to reasoning effort. Either score at 7 or
// above forces slow reasoning; fast recall needs a simple unambiguous query
// (complexity ≤ 3, ambiguity ≤ 4); everything between is balanced.
func strategyFor(complexity, ambiguity int) ports.Strategy {
	switch {
	case complexity >= 7 || ambiguity >= 7:
		return ports.StrategySlowReasoning
	case complexity <= 3 && ambiguity <= 4:
		return ports.StrategyFastRecall
	default:
		return ports.StrategyBalanced
	}
}

func clampScore(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
