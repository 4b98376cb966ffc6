package planner

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"conductor/internal/ports"
	"conductor/internal/registry"
)

// intentRule binds one intent to its trigger keywords, the tool categories
// it may approve, and the tools approvable without a retrieval suggestion.
type intentRule struct {
	intent     ports.Intent
	keywords   []string // single words match whole tokens; phrases match substrings
	categories []registry.ToolCategory
	whitelist  []string
}

// intentRules is the ordered classification table: the first rule with a
// matching keyword wins and everything else is GENERAL. Precedence:
// CALCULATION and DEBUG carry the strongest signals, REFACTOR precedes
// TESTING so "refactor the test helpers" reads as refactoring, and TESTING
// precedes IMPLEMENTATION so "add a test" reads as test authoring.
var intentRules = []intentRule{
	{
		intent:     ports.IntentCalculation,
		keywords:   []string{"calculate", "compute", "sum", "average", "derivative", "integral", "solve", "equation", "percentage", "convert"},
		categories: []registry.ToolCategory{registry.CategoryCalculation, registry.CategoryDateTime},
		whitelist:  []string{"calculator"},
	},
	{
		intent:     ports.IntentDebug,
		keywords:   []string{"error", "bug", "crash", "panic", "exception", "traceback", "fails", "failing", "broken", "debug", "stack trace", "not working", "nil pointer"},
		categories: []registry.ToolCategory{registry.CategoryDiagnostics, registry.CategoryCodeNav, registry.CategoryTesting},
	},
	{
		intent:     ports.IntentRefactor,
		keywords:   []string{"refactor", "rename", "restructure", "extract", "simplify", "reorganize", "decompose", "deduplicate", "clean up", "tidy up"},
		categories: []registry.ToolCategory{registry.CategoryRefactoring, registry.CategoryCodeNav},
	},
	{
		intent:     ports.IntentTesting,
		keywords:   []string{"test", "tests", "testing", "coverage", "mock", "assert", "flaky", "unit test", "integration test"},
		categories: []registry.ToolCategory{registry.CategoryTesting, registry.CategoryCodeNav, registry.CategoryDiagnostics},
	},
	{
		intent:     ports.IntentImplementation,
		keywords:   []string{"implement", "create", "build", "scaffold", "introduce", "add support", "wire up", "new feature", "write a"},
		categories: []registry.ToolCategory{registry.CategoryCodeNav, registry.CategoryDocs, registry.CategorySearch},
	},
	{
		intent:     ports.IntentExplanation,
		keywords:   []string{"explain", "describe", "understand", "clarify", "how does", "why does", "what does", "walk through", "difference between"},
		categories: []registry.ToolCategory{registry.CategoryCodeNav, registry.CategoryDocs, registry.CategorySearch},
	},
}

// generalCategories lets the GENERAL fallback approve whatever the
// retriever suggested, regardless of category.
var generalCategories = []registry.ToolCategory{
	registry.CategoryCalculation,
	registry.CategoryDateTime,
	registry.CategoryCodeNav,
	registry.CategoryDiagnostics,
	registry.CategoryRefactoring,
	registry.CategoryTesting,
	registry.CategoryDocs,
	registry.CategorySearch,
}

// classifyIntent walks the rule table in order. ok=false means no rule
// matched and the GENERAL default applies.
func classifyIntent(query string) (ports.Intent, bool) {
	lower := strings.ToLower(query)
	words := tokenSet(lower)
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if matchKeyword(lower, words, kw) {
				return rule.intent, true
			}
		}
	}
	return ports.IntentGeneral, false
}

func ruleFor(intent ports.Intent) (intentRule, bool) {
	for _, rule := range intentRules {
		if rule.intent == intent {
			return rule, true
		}
	}
	return intentRule{}, false
}

// categoriesFor returns the tool categories an intent may approve.
func categoriesFor(intent ports.Intent) []registry.ToolCategory {
	if rule, ok := ruleFor(intent); ok {
		return rule.categories
	}
	return generalCategories
}

// matchKeyword checks a phrase by substring and a single word against whole
// tokens, so "fix" never fires on "prefix".
func matchKeyword(lower string, words map[string]bool, kw string) bool {
	if strings.Contains(kw, " ") {
		return strings.Contains(lower, kw)
	}
	return words[kw]
}

// tokenSet splits a lowercased query into bare word tokens.
func tokenSet(lower string) map[string]bool {
	words := make(map[string]bool)
	for _, f := range strings.Fields(lower) {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if f != "" {
			words[f] = true
		}
	}
	return words
}

// Fast-path grammar. Only pure arithmetic and single date/time requests
// qualify; everything else takes the full pipeline.
type fastPathKind int

const (
	fastPathNone fastPathKind = iota
	fastPathArithmetic
	fastPathDateTime
)

const maxFastPathRunes = 48

var (
	arithmeticBody = regexp.MustCompile(`^[0-9(][0-9\s+\-*/%^().,]*$`)
	arithmeticOp   = regexp.MustCompile(`[+\-*/%^]`)
)

var arithmeticPrefixes = []string{"what is", "what's", "how much is", "calculate", "compute", "evaluate", "eval"}

var dateTimePhrases = []string{
	"what time is it",
	"current time",
	"time now",
	"what day is it",
	"what date is it",
	"today's date",
	"current date",
	"what is today",
}

func detectFastPath(query string) fastPathKind {
	s := strings.ToLower(strings.TrimSpace(query))
	s = strings.TrimSpace(strings.TrimSuffix(s, "?"))
	if s == "" || utf8.RuneCountInString(s) > maxFastPathRunes {
		return fastPathNone
	}

	for _, phrase := range dateTimePhrases {
		if strings.Contains(s, phrase) {
			return fastPathDateTime
		}
	}

	expr := s
	for _, prefix := range arithmeticPrefixes {
		if strings.HasPrefix(expr, prefix) {
			expr = strings.TrimSpace(strings.TrimPrefix(expr, prefix))
			break
		}
	}
	expr = strings.TrimSpace(strings.TrimSuffix(expr, "="))
	if expr != "" && arithmeticBody.MatchString(expr) && arithmeticOp.MatchString(expr) {
		return fastPathArithmetic
	}
	return fastPathNone
}
