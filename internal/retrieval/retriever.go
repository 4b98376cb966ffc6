// Package retrieval ranks candidate tools and prompt modules for a request.
// Both collections are searched concurrently; a slow or failing search
// degrades to an empty candidate list instead of failing the request.
package retrieval

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"conductor/internal/config"
	conderr "conductor/internal/errors"
	"conductor/internal/logging"
	"conductor/internal/ports"
)

// Config holds retrieval tuning. Zero values fall back to the package
// defaults so a partially filled config stays usable.
type Config struct {
	ShortQueryChars int           // queries shorter than this use the narrow topK
	TopKSimple      int           // candidates per collection for short queries
	TopKDetailed    int           // candidates per collection for longer queries
	MinSimilarity   float32       // similarity floor passed to the index
	SearchTimeout   time.Duration // per-collection search budget
}

// FromApp projects the application configuration onto retrieval tuning.
func FromApp(cfg *config.Config) Config {
	return Config{
		ShortQueryChars: cfg.ShortQueryChars,
		TopKSimple:      cfg.TopKSimple,
		TopKDetailed:    cfg.TopKDetailed,
		MinSimilarity:   cfg.MinSimilarity,
		SearchTimeout:   cfg.SearchTimeout(),
	}
}

// Retriever performs the dual similarity search that seeds planning.
type Retriever struct {
	cfg    Config
	index  ports.SemanticIndex
	logger logging.Logger
}

// NewRetriever builds a retriever over the given semantic index.
func NewRetriever(cfg Config, index ports.SemanticIndex, logger logging.Logger) *Retriever {
	if cfg.ShortQueryChars <= 0 {
		cfg.ShortQueryChars = config.DefaultShortQueryChars
	}
	if cfg.TopKSimple <= 0 {
		cfg.TopKSimple = config.DefaultTopKSimple
	}
	if cfg.TopKDetailed <= 0 {
		cfg.TopKDetailed = config.DefaultTopKDetailed
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = config.DefaultMinSimilarity
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = time.Duration(config.DefaultSearchTimeoutMillis) * time.Millisecond
	}
	return &Retriever{
		cfg:    cfg,
		index:  index,
		logger: logging.OrNop(logger),
	}
}

// Retrieve searches both collections in parallel and returns the ranked
// candidates. It never fails: a search that errors or exceeds its budget
// yields an empty list with the matching degraded flag set.
func (r *Retriever) Retrieve(ctx context.Context, query string) ports.RetrievalState {
	state := ports.RetrievalState{RawQuery: query}
	if strings.TrimSpace(query) == "" {
		r.logger.Debug("Retrieval skipped: empty query")
		return state
	}

	topK := r.topKFor(query)
	r.logger.Debug("Retrieving candidates: topK=%d, timeout=%s", topK, r.cfg.SearchTimeout)

	var (
		tools, modules     []ports.Match
		toolsOK, modulesOK bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tools, toolsOK = r.searchOne(gctx, ports.CollectionTools, query, topK)
		return nil
	})
	g.Go(func() error {
		modules, modulesOK = r.searchOne(gctx, ports.CollectionModules, query, topK)
		return nil
	})
	_ = g.Wait()

	state.SuggestedTools = tools
	state.ToolsDegraded = !toolsOK
	state.SuggestedModules = modules
	state.ModulesDegraded = !modulesOK
	return state
}

// searchOne runs a single bounded search. ok=false means the collection
// degraded and its list must be treated as empty.
func (r *Retriever) searchOne(ctx context.Context, col ports.Collection, query string, topK int) ([]ports.Match, bool) {
	sctx, cancel := context.WithTimeout(ctx, r.cfg.SearchTimeout)
	defer cancel()

	matches, err := r.index.Search(sctx, col, query, topK, r.cfg.MinSimilarity)
	if err != nil {
		degraded := conderr.NewRetrievalDegraded(string(col), err)
		r.logger.Warn("%v", degraded)
		return nil, false
	}
	return matches, true
}

// topKFor widens the candidate set for longer or code-bearing queries. A
// short query that names real code still deserves the detailed search.
func (r *Retriever) topKFor(query string) int {
	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < r.cfg.ShortQueryChars && !bearsCode(trimmed) {
		return r.cfg.TopKSimple
	}
	return r.cfg.TopKDetailed
}

var codeExtensions = []string{".go", ".py", ".js", ".ts", ".java", ".rs", ".yaml", ".json"}

// bearsCode spots identifiers, call syntax and file references in a query.
func bearsCode(query string) bool {
	if strings.Contains(query, "`") || strings.Contains(query, "()") || strings.Contains(query, "{}") {
		return true
	}
	lower := strings.ToLower(query)
	for _, ext := range codeExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	for _, f := range strings.Fields(query) {
		if strings.Contains(f, "_") && len(f) > 2 {
			return true
		}
	}
	return false
}
