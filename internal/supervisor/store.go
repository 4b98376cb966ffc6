// Package supervisor keeps the process-wide memory of the pipeline:
// per-conversation history behind a TTL-bounded LRU and per-module quality
// statistics. Writes are advisory observability; they are logged and dropped
// on failure and must never surface into the request path.
package supervisor

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"conductor/internal/config"
	conderr "conductor/internal/errors"
	"conductor/internal/logging"
	"conductor/internal/ports"
)

// Config bounds the supervisor's memory. Zero values fall back to the
// package defaults.
type Config struct {
	RetentionWindow int           // evaluations and verdicts kept per conversation
	CacheSize       int           // conversations kept before LRU eviction
	TTL             time.Duration // idle conversation lifetime
}

// FromApp projects the application configuration onto supervisor bounds.
func FromApp(cfg *config.Config) Config {
	return Config{
		RetentionWindow: cfg.RetentionWindow,
		CacheSize:       cfg.ConversationCacheSize,
		TTL:             cfg.ConversationTTL(),
	}
}

// conversation is one LRU entry. Each entry carries its own lock so writes
// to different conversations never contend.
type conversation struct {
	mu    sync.Mutex
	state ports.ConversationState
}

// moduleStat is the process-wide running statistic for one module.
type moduleStat struct {
	invocations int64
	mean        float64
}

// Store implements ports.Supervisor in memory. Idle conversations age out
// of the LRU; eviction loses their history, which is the intended bound.
type Store struct {
	cfg    Config
	clock  ports.Clock
	logger logging.Logger

	mu    sync.Mutex // serializes get-or-create on the cache only
	cache *expirable.LRU[string, *conversation]

	statsMu sync.RWMutex
	stats   map[string]*moduleStat
}

var _ ports.Supervisor = (*Store)(nil)

// NewStore builds the in-memory supervisor.
func NewStore(cfg Config, clock ports.Clock, logger logging.Logger) *Store {
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = config.DefaultRetentionWindow
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = config.DefaultConversationCacheSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Duration(config.DefaultConversationTTLSeconds) * time.Second
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Store{
		cfg:    cfg,
		clock:  clock,
		logger: logging.OrNop(logger),
		cache:  expirable.NewLRU[string, *conversation](cfg.CacheSize, nil, cfg.TTL),
		stats:  make(map[string]*moduleStat),
	}
}

// RecordPlan notes the plan decided for one request.
func (s *Store) RecordPlan(conversationID string, plan ports.ExecutionPlan) {
	defer s.recoverWrite("record plan")
	if conversationID == "" {
		s.dropWrite("record plan", errors.New("empty conversation id"))
		return
	}

	c := s.entry(conversationID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LastStrategy = plan.Strategy
	c.state.LastIntent = plan.Intent
	c.state.Requests++
	c.state.UpdatedAt = s.clock.Now()
}

// RecordEvaluation appends one quality evaluation for a module used in the
// conversation. Skipped evaluations enter the verdict history but are kept
// out of the per-module score slices and the process-wide means, so trivial
// traffic cannot dilute module quality.
func (s *Store) RecordEvaluation(conversationID, moduleID string, eval ports.QualityEvaluation) {
	defer s.recoverWrite("record evaluation")
	if conversationID == "" || moduleID == "" {
		s.dropWrite("record evaluation", fmt.Errorf("empty key: conversation=%q module=%q", conversationID, moduleID))
		return
	}

	c := s.entry(conversationID)
	c.mu.Lock()
	if !eval.Skipped {
		scores := append(c.state.ModuleScores[moduleID], eval.FinalRating)
		c.state.ModuleScores[moduleID] = trimToWindow(scores, s.cfg.RetentionWindow)
	}
	c.state.RecentVerdicts = trimToWindow(append(c.state.RecentVerdicts, eval.Verdict), s.cfg.RetentionWindow)
	c.state.UpdatedAt = s.clock.Now()
	c.mu.Unlock()

	if !eval.Skipped {
		s.updateModuleStat(moduleID, eval.FinalRating)
	}
}

// Conversation returns a copy of the conversation's state. The second result
// is false when the conversation was never seen or has aged out.
func (s *Store) Conversation(conversationID string) (ports.ConversationState, bool) {
	c, ok := s.cache.Get(conversationID)
	if !ok {
		return ports.ConversationState{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyState(c.state), true
}

// ModuleStats returns the process-wide per-module running statistics,
// ordered by module id.
func (s *Store) ModuleStats() []ports.ModulePerformance {
	s.statsMu.RLock()
	out := make([]ports.ModulePerformance, 0, len(s.stats))
	for id, stat := range s.stats {
		out = append(out, ports.ModulePerformance{
			ModuleID:    id,
			Invocations: stat.invocations,
			MeanQuality: stat.mean,
		})
	}
	s.statsMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out
}

// entry returns the live record for the conversation, creating it when
// absent. Only the lookup is globally serialized; mutation happens under the
// entry's own lock.
func (s *Store) entry(conversationID string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cache.Get(conversationID); ok {
		return c
	}
	c := &conversation{state: ports.ConversationState{
		ConversationID: conversationID,
		ModuleScores:   make(map[string][]float64),
	}}
	s.cache.Add(conversationID, c)
	return c
}

func (s *Store) updateModuleStat(moduleID string, rating float64) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	stat, ok := s.stats[moduleID]
	if !ok {
		stat = &moduleStat{}
		s.stats[moduleID] = stat
	}
	stat.invocations++
	stat.mean += (rating - stat.mean) / float64(stat.invocations)
}

func (s *Store) recoverWrite(op string) {
	if r := recover(); r != nil {
		s.dropWrite(op, fmt.Errorf("panic: %v", r))
	}
}

func (s *Store) dropWrite(op string, cause error) {
	s.logger.Warn("Supervisor %s: %v", op, conderr.NewSupervisorWrite(cause))
}

func trimToWindow[T any](items []T, window int) []T {
	if len(items) <= window {
		return items
	}
	trimmed := make([]T, window)
	copy(trimmed, items[len(items)-window:])
	return trimmed
}

func copyState(state ports.ConversationState) ports.ConversationState {
	out := state
	out.ModuleScores = make(map[string][]float64, len(state.ModuleScores))
	for id, scores := range state.ModuleScores {
		out.ModuleScores[id] = append([]float64(nil), scores...)
	}
	out.RecentVerdicts = append([]ports.Verdict(nil), state.RecentVerdicts...)
	return out
}
