// Package planner decides what a request needs: intent, reasoning effort,
// approved tools and selected prompt modules. The decision is a
// deterministic function of the query, the retrieval candidates and the
// conversation history, captured in one immutable ExecutionPlan.
package planner

import (
	"math"
	"sort"
	"strings"

	"conductor/internal/config"
	conderr "conductor/internal/errors"
	"conductor/internal/logging"
	"conductor/internal/ports"
	"conductor/internal/registry"
)

// Config holds the planning caps. Zero values fall back to the package
// defaults.
type Config struct {
	SimpleToolCap     int // approved-tool cap for simple queries
	ComplexToolCap    int // approved-tool cap for complex queries
	SpecialistModules int // specialist modules added on top of the core set
}

// FromApp projects the application configuration onto planning caps.
func FromApp(cfg *config.Config) Config {
	return Config{
		SimpleToolCap:     cfg.SimpleToolCap,
		ComplexToolCap:    cfg.ComplexToolCap,
		SpecialistModules: cfg.SpecialistModules,
	}
}

// simpleComplexityCeiling separates the two tool-cap regimes. It matches
// the refiner's skip bound so "simple" means the same thing everywhere.
const simpleComplexityCeiling = 3

// Conductor is the planning engine.
type Conductor struct {
	cfg    Config
	reg    *registry.Registry
	clock  ports.Clock
	logger logging.Logger
}

// NewConductor builds a planner over the given capability registry.
func NewConductor(cfg Config, reg *registry.Registry, clock ports.Clock, logger logging.Logger) *Conductor {
	if cfg.SimpleToolCap <= 0 {
		cfg.SimpleToolCap = config.DefaultSimpleToolCap
	}
	if cfg.ComplexToolCap <= 0 {
		cfg.ComplexToolCap = config.DefaultComplexToolCap
	}
	if cfg.SpecialistModules <= 0 {
		cfg.SpecialistModules = config.DefaultSpecialistModules
	}
	if reg == nil {
		reg = registry.Default()
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Conductor{
		cfg:    cfg,
		reg:    reg,
		clock:  clock,
		logger: logging.OrNop(logger),
	}
}

// Plan builds the execution plan for one request. It never fails: degraded
// or empty retrieval falls back to the static keyword table with lowered
// confidence, and unclassifiable queries plan as GENERAL.
func (c *Conductor) Plan(state ports.RetrievalState, history ports.ConversationState) ports.ExecutionPlan {
	query := state.RawQuery

	if kind := detectFastPath(query); kind != fastPathNone {
		return c.fastPlan(kind)
	}

	intent, matched := classifyIntent(query)
	inherited := false
	if !matched && history.LastIntent != "" && history.LastIntent != ports.IntentGeneral && hasPronoun(query) {
		// A bare follow-up like "and now fix it?" keeps the conversation's
		// last classified intent.
		intent = history.LastIntent
		inherited = true
	}

	complexity := scoreComplexity(query, intent)
	ambiguity := scoreAmbiguity(query, history)
	strategy := strategyFor(complexity, ambiguity)
	approved, toolFallback := c.approveTools(query, intent, complexity, state)
	modules := c.selectModules(state)
	focus, ignore := focusFor(intent, query)

	plan := ports.ExecutionPlan{
		Intent:          intent,
		Complexity:      complexity,
		Ambiguity:       ambiguity,
		FocusArea:       focus,
		IgnoreAreas:     ignore,
		Strategy:        strategy,
		ApprovedTools:   approved,
		SelectedModules: modules,
		Confidence:      c.confidence(matched, inherited, toolFallback, state),
		Degraded:        toolFallback || state.Degraded(),
		CreatedAt:       c.clock.Now(),
	}

	if toolFallback {
		c.logger.Warn("%v", conderr.NewPlanningFallback(nil))
	}
	c.logger.Info("Plan: intent=%s strategy=%s complexity=%d ambiguity=%d tools=%d modules=%d confidence=%.2f degraded=%v",
		plan.Intent, plan.Strategy, plan.Complexity, plan.Ambiguity,
		len(plan.ApprovedTools), len(plan.SelectedModules), plan.Confidence, plan.Degraded)
	return plan
}

// fastPlan short-circuits trivial grammar: minimal effort, the single
// matching tool category, core modules only.
func (c *Conductor) fastPlan(kind fastPathKind) ports.ExecutionPlan {
	var (
		intent ports.Intent
		focus  ports.FocusArea
		tools  []string
	)
	switch kind {
	case fastPathArithmetic:
		intent = ports.IntentCalculation
		focus = ports.FocusMath
		tools = c.reg.ToolsInCategory(registry.CategoryCalculation)
	case fastPathDateTime:
		intent = ports.IntentGeneral
		focus = ports.FocusGeneral
		tools = c.reg.ToolsInCategory(registry.CategoryDateTime)
	}

	plan := ports.ExecutionPlan{
		Intent:          intent,
		Complexity:      1,
		Ambiguity:       1,
		FocusArea:       focus,
		IgnoreAreas:     ignoreAreasFor(focus),
		Strategy:        ports.StrategyFastRecall,
		ApprovedTools:   tools,
		SelectedModules: c.reg.CoreModuleIDs(),
		Confidence:      0.98,
		FastPath:        true,
		CreatedAt:       c.clock.Now(),
	}
	c.logger.Info("Fast path plan: intent=%s tools=%v", plan.Intent, plan.ApprovedTools)
	return plan
}

// approveTools intersects the retrieval suggestions with the intent's tool
// categories and caps the result by complexity, best similarity first.
// Empty or degraded retrieval switches to the keyword fallback (degraded
// mode, second return true).
func (c *Conductor) approveTools(query string, intent ports.Intent, complexity int, state ports.RetrievalState) ([]string, bool) {
	toolCap := c.cfg.SimpleToolCap
	if complexity > simpleComplexityCeiling {
		toolCap = c.cfg.ComplexToolCap
	}
	allowed := make(map[registry.ToolCategory]bool)
	for _, cat := range categoriesFor(intent) {
		allowed[cat] = true
	}

	if !state.ToolsDegraded && len(state.SuggestedTools) > 0 {
		ranked := append([]ports.Match(nil), state.SuggestedTools...)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

		var approved []string
		for _, m := range ranked {
			tool, ok := c.reg.Tool(m.ID)
			if !ok || !allowed[tool.Category] {
				continue
			}
			approved = append(approved, m.ID)
			if len(approved) == toolCap {
				break
			}
		}
		return approved, false
	}
	return c.keywordFallback(query, intent, allowed, toolCap), true
}

// keywordFallback approves tools from the static catalog alone: the
// intent's whitelist first, then catalog tools whose keywords appear in
// the query, most hits first.
func (c *Conductor) keywordFallback(query string, intent ports.Intent, allowed map[registry.ToolCategory]bool, toolCap int) []string {
	var approved []string
	taken := make(map[string]bool)
	if rule, ok := ruleFor(intent); ok {
		for _, id := range rule.whitelist {
			if len(approved) == toolCap {
				break
			}
			if _, known := c.reg.Tool(id); known && !taken[id] {
				approved = append(approved, id)
				taken[id] = true
			}
		}
	}

	lower := strings.ToLower(query)
	words := tokenSet(lower)
	type scoredTool struct {
		id   string
		hits int
	}
	var candidates []scoredTool
	for _, tool := range c.reg.Tools() {
		if !allowed[tool.Category] || taken[tool.ID] {
			continue
		}
		hits := 0
		for _, kw := range tool.Keywords {
			if matchKeyword(lower, words, kw) {
				hits++
			}
		}
		if hits > 0 {
			candidates = append(candidates, scoredTool{tool.ID, hits})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].hits != candidates[j].hits {
			return candidates[i].hits > candidates[j].hits
		}
		return candidates[i].id < candidates[j].id
	})
	for _, cand := range candidates {
		if len(approved) == toolCap {
			break
		}
		approved = append(approved, cand.id)
	}
	return approved
}

// selectModules keeps the always-on core set and adds the strongest
// specialist suggestions. Selection is by similarity; the final order is
// static priority with core modules first.
func (c *Conductor) selectModules(state ports.RetrievalState) []string {
	selected := c.reg.CoreModuleIDs()

	ranked := append([]ports.Match(nil), state.SuggestedModules...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	var specialists []string
	for _, m := range ranked {
		mod, ok := c.reg.Module(m.ID)
		if !ok || mod.Core {
			continue
		}
		specialists = append(specialists, m.ID)
		if len(specialists) == c.cfg.SpecialistModules {
			break
		}
	}
	sort.Slice(specialists, func(i, j int) bool {
		pi, pj := c.reg.ModulePriority(specialists[i]), c.reg.ModulePriority(specialists[j])
		if pi != pj {
			return pi < pj
		}
		return specialists[i] < specialists[j]
	})
	return append(selected, specialists...)
}

// confidence starts high for a clean rule match and drops for every
// recovery the plan needed.
func (c *Conductor) confidence(matched, inherited, toolFallback bool, state ports.RetrievalState) float64 {
	conf := 0.9
	if !matched {
		conf = 0.65
	}
	if inherited {
		conf = 0.6
	}
	if toolFallback {
		conf -= 0.15
	}
	if state.ModulesDegraded {
		conf -= 0.1
	}
	if conf < 0.3 {
		conf = 0.3
	}
	return math.Round(conf*100) / 100
}

func hasPronoun(query string) bool {
	words := tokenSet(strings.ToLower(query))
	for _, p := range pronounWords {
		if words[p] {
			return true
		}
	}
	return false
}

// focusFor tags the problem space the model should center on and the areas
// it may ignore.
func focusFor(intent ports.Intent, query string) (ports.FocusArea, []ports.FocusArea) {
	lower := strings.ToLower(query)
	switch intent {
	case ports.IntentCalculation:
		return ports.FocusMath, ignoreAreasFor(ports.FocusMath)
	case ports.IntentDebug, ports.IntentRefactor, ports.IntentTesting:
		return ports.FocusCode, ignoreAreasFor(ports.FocusCode)
	case ports.IntentImplementation:
		if containsAny(lower, "architecture", "design", "structure") {
			return ports.FocusArchitecture, ignoreAreasFor(ports.FocusArchitecture)
		}
		return ports.FocusCode, ignoreAreasFor(ports.FocusCode)
	case ports.IntentExplanation:
		if containsAny(lower, "architecture", "design", "structure", "overview") {
			return ports.FocusArchitecture, ignoreAreasFor(ports.FocusArchitecture)
		}
		if containsAny(lower, "documentation", "docs", "readme", "comment") {
			return ports.FocusDocumentation, ignoreAreasFor(ports.FocusDocumentation)
		}
		return ports.FocusCode, ignoreAreasFor(ports.FocusCode)
	default:
		return ports.FocusGeneral, nil
	}
}

// ignoreAreasFor lists the spaces orthogonal to a focus. A general focus
// ignores nothing.
func ignoreAreasFor(focus ports.FocusArea) []ports.FocusArea {
	switch focus {
	case ports.FocusMath:
		return []ports.FocusArea{ports.FocusCode, ports.FocusArchitecture, ports.FocusDocumentation}
	case ports.FocusCode, ports.FocusArchitecture, ports.FocusDocumentation:
		return []ports.FocusArea{ports.FocusMath}
	default:
		return nil
	}
}

func containsAny(lower string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
