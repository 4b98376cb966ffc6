// Package index persists tool and module descriptions in an embedded vector
// database and serves the similarity-search boundary of the pipeline. The two
// corpora live in separate collections so a failure in one never taints the
// other.
package index

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"conductor/internal/logging"
	"conductor/internal/ports"
	"conductor/internal/registry"
)

// Config holds index storage configuration.
type Config struct {
	PersistPath string // empty keeps everything in memory
}

// Index is a chromem-go backed ports.SemanticIndex with one collection per
// corpus. Safe for concurrent use.
type Index struct {
	db       *chromem.DB
	embedder Embedder
	logger   logging.Logger

	mu   sync.RWMutex
	cols map[ports.Collection]*chromem.Collection
}

var _ ports.SemanticIndex = (*Index)(nil)

// New opens (or creates) the index. With a persist path the database survives
// restarts as a gob file; without one it lives in memory, which the mock
// provider and tests rely on.
func New(cfg Config, embedder Embedder, logger logging.Logger) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("index: embedder is required")
	}

	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		persistFile := filepath.Join(cfg.PersistPath, "chromem.gob")
		db, err = chromem.NewPersistentDB(persistFile, false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	ix := &Index{
		db:       db,
		embedder: embedder,
		logger:   logging.OrNop(logger),
		cols:     make(map[ports.Collection]*chromem.Collection, 2),
	}
	for _, col := range []ports.Collection{ports.CollectionTools, ports.CollectionModules} {
		if err := ix.openCollection(col); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

func (ix *Index) openCollection(col ports.Collection) error {
	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return ix.embedder.Embed(ctx, text)
	}
	collection, err := ix.db.GetOrCreateCollection(string(col), nil, embeddingFunc)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", col, err)
	}
	ix.mu.Lock()
	ix.cols[col] = collection
	ix.mu.Unlock()
	return nil
}

func (ix *Index) collection(col ports.Collection) (*chromem.Collection, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	c, ok := ix.cols[col]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", col)
	}
	return c, nil
}

// Search runs a similarity query against one collection and returns matches
// at or above minScore, best first.
func (ix *Index) Search(ctx context.Context, col ports.Collection, query string, topK int, minScore float32) ([]ports.Match, error) {
	c, err := ix.collection(col)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}
	// chromem rejects queries asking for more results than stored documents.
	if count := c.Count(); topK > count {
		topK = count
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := c.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", col, err)
	}

	matches := make([]ports.Match, 0, len(results))
	for _, r := range results {
		if r.Similarity < minScore {
			continue
		}
		matches = append(matches, ports.Match{ID: r.ID, Score: r.Similarity})
	}
	return matches, nil
}

// UpsertTools indexes tool descriptions, replacing documents with matching
// IDs. Embeddings are computed in one batch before insertion.
func (ix *Index) UpsertTools(ctx context.Context, tools []registry.ToolInfo) error {
	if len(tools) == 0 {
		return nil
	}
	contents := make([]string, len(tools))
	for i, t := range tools {
		contents[i] = toolDocument(t)
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return fmt.Errorf("embed tool descriptions: %w", err)
	}

	c, err := ix.collection(ports.CollectionTools)
	if err != nil {
		return err
	}
	for i, t := range tools {
		doc := chromem.Document{
			ID:        t.ID,
			Content:   contents[i],
			Embedding: vectors[i],
			Metadata:  map[string]string{"category": string(t.Category)},
		}
		if err := c.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add tool %s: %w", t.ID, err)
		}
	}
	return nil
}

// UpsertModules indexes prompt-module descriptions, replacing documents with
// matching IDs.
func (ix *Index) UpsertModules(ctx context.Context, modules []registry.ModuleInfo) error {
	if len(modules) == 0 {
		return nil
	}
	contents := make([]string, len(modules))
	for i, m := range modules {
		contents[i] = moduleDocument(m)
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return fmt.Errorf("embed module descriptions: %w", err)
	}

	c, err := ix.collection(ports.CollectionModules)
	if err != nil {
		return err
	}
	for i, m := range modules {
		doc := chromem.Document{
			ID:        m.ID,
			Content:   contents[i],
			Embedding: vectors[i],
			Metadata: map[string]string{
				"title": m.Title,
				"core":  strconv.FormatBool(m.Core),
			},
		}
		if err := c.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add module %s: %w", m.ID, err)
		}
	}
	return nil
}

// Seed indexes the full catalog. Idempotent; safe to run at every startup.
func (ix *Index) Seed(ctx context.Context, reg *registry.Registry) error {
	if err := ix.UpsertTools(ctx, reg.Tools()); err != nil {
		return err
	}
	if err := ix.UpsertModules(ctx, reg.Modules()); err != nil {
		return err
	}
	ix.logger.Info("Seeded semantic index: %d tools, %d modules",
		ix.Count(ports.CollectionTools), ix.Count(ports.CollectionModules))
	return nil
}

// Remove deletes documents by ID from one collection.
func (ix *Index) Remove(ctx context.Context, col ports.Collection, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	c, err := ix.collection(col)
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete from %s: %w", col, err)
	}
	return nil
}

// Count returns the number of indexed documents in one collection.
func (ix *Index) Count(col ports.Collection) int {
	c, err := ix.collection(col)
	if err != nil {
		return 0
	}
	return c.Count()
}

// Reset drops and recreates both collections. Used by the reindex command
// before a fresh Seed.
func (ix *Index) Reset(ctx context.Context) error {
	for _, col := range []ports.Collection{ports.CollectionTools, ports.CollectionModules} {
		if err := ix.db.DeleteCollection(string(col)); err != nil {
			return fmt.Errorf("drop collection %s: %w", col, err)
		}
		if err := ix.openCollection(col); err != nil {
			return err
		}
	}
	ix.logger.Info("Semantic index reset")
	return nil
}

func toolDocument(t registry.ToolInfo) string {
	var b strings.Builder
	b.WriteString(t.ID)
	b.WriteString(" (")
	b.WriteString(string(t.Category))
	b.WriteString("): ")
	b.WriteString(t.Description)
	if len(t.Keywords) > 0 {
		b.WriteString(" Keywords: ")
		b.WriteString(strings.Join(t.Keywords, ", "))
	}
	return b.String()
}

func moduleDocument(m registry.ModuleInfo) string {
	var b strings.Builder
	b.WriteString(m.Title)
	b.WriteString(": ")
	b.WriteString(m.Description)
	if len(m.Tags) > 0 {
		b.WriteString(" Tags: ")
		b.WriteString(strings.Join(m.Tags, ", "))
	}
	return b.String()
}
