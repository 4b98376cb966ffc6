package index

import (
	"context"
	"math"
	"testing"

	"conductor/internal/ports"
	"conductor/internal/registry"
)

func newTestIndex(t *testing.T, persistPath string) *Index {
	t.Helper()
	ix, err := New(Config{PersistPath: persistPath}, NewHashEmbedder(0), nil)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	return ix
}

func TestIndex_SearchRanksByOverlap(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, "")

	tools := []registry.ToolInfo{
		{ID: "calculator", Category: registry.CategoryCalculation, Description: "evaluate arithmetic expressions and compute numeric results", Keywords: []string{"sum", "multiply"}},
		{ID: "doc_lookup", Category: registry.CategoryDocs, Description: "fetch reference documentation for a symbol"},
	}
	if err := ix.UpsertTools(ctx, tools); err != nil {
		t.Fatalf("upsert tools: %v", err)
	}

	matches, err := ix.Search(ctx, ports.CollectionTools, "compute the sum of two numbers", 2, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].ID != "calculator" {
		t.Fatalf("expected calculator first, got %s", matches[0].ID)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Fatalf("matches not sorted by score: %v", matches)
		}
	}
}

func TestIndex_SearchClampsTopK(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, "")

	tools := []registry.ToolInfo{
		{ID: "a", Category: registry.CategorySearch, Description: "first"},
		{ID: "b", Category: registry.CategorySearch, Description: "second"},
	}
	if err := ix.UpsertTools(ctx, tools); err != nil {
		t.Fatalf("upsert tools: %v", err)
	}

	matches, err := ix.Search(ctx, ports.CollectionTools, "first", 10, 0)
	if err != nil {
		t.Fatalf("search with oversized topK: %v", err)
	}
	if len(matches) > 2 {
		t.Fatalf("expected at most 2 matches, got %d", len(matches))
	}

	// Empty collection and non-positive topK both return nothing.
	if got, err := ix.Search(ctx, ports.CollectionModules, "anything", 5, 0); err != nil || len(got) != 0 {
		t.Fatalf("empty collection: matches=%v err=%v", got, err)
	}
	if got, err := ix.Search(ctx, ports.CollectionTools, "anything", 0, 0); err != nil || len(got) != 0 {
		t.Fatalf("topK=0: matches=%v err=%v", got, err)
	}
}

func TestIndex_MinScoreFilters(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, "")

	tools := []registry.ToolInfo{
		{ID: "exact", Category: registry.CategorySearch, Description: "alpha bravo charlie"},
		{ID: "unrelated", Category: registry.CategorySearch, Description: "delta echo foxtrot"},
	}
	if err := ix.UpsertTools(ctx, tools); err != nil {
		t.Fatalf("upsert tools: %v", err)
	}

	matches, err := ix.Search(ctx, ports.CollectionTools, toolDocument(tools[0]), 2, 0.9)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "exact" {
		t.Fatalf("expected only the exact match above 0.9, got %v", matches)
	}
}

func TestIndex_RemoveAndCount(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, "")

	tools := []registry.ToolInfo{
		{ID: "keep", Category: registry.CategorySearch, Description: "stays indexed"},
		{ID: "drop", Category: registry.CategorySearch, Description: "gets removed"},
	}
	if err := ix.UpsertTools(ctx, tools); err != nil {
		t.Fatalf("upsert tools: %v", err)
	}
	if got := ix.Count(ports.CollectionTools); got != 2 {
		t.Fatalf("expected count 2, got %d", got)
	}

	if err := ix.Remove(ctx, ports.CollectionTools, "drop"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := ix.Count(ports.CollectionTools); got != 1 {
		t.Fatalf("expected count 1 after remove, got %d", got)
	}
}

func TestIndex_SeedIdempotent(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, "")
	reg := registry.Default()

	for i := 0; i < 2; i++ {
		if err := ix.Seed(ctx, reg); err != nil {
			t.Fatalf("seed pass %d: %v", i+1, err)
		}
	}
	if got, want := ix.Count(ports.CollectionTools), len(reg.Tools()); got != want {
		t.Fatalf("tool count after reseeding: got %d, want %d", got, want)
	}
	if got, want := ix.Count(ports.CollectionModules), len(reg.Modules()); got != want {
		t.Fatalf("module count after reseeding: got %d, want %d", got, want)
	}
}

func TestIndex_Reset(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, "")
	if err := ix.Seed(ctx, registry.Default()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := ix.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := ix.Count(ports.CollectionTools); got != 0 {
		t.Fatalf("expected empty tools collection after reset, got %d", got)
	}
	if got := ix.Count(ports.CollectionModules); got != 0 {
		t.Fatalf("expected empty modules collection after reset, got %d", got)
	}
}

func TestIndex_PersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ix := newTestIndex(t, dir)
	if err := ix.UpsertTools(ctx, []registry.ToolInfo{
		{ID: "durable", Category: registry.CategorySearch, Description: "survives a restart"},
	}); err != nil {
		t.Fatalf("upsert tools: %v", err)
	}

	reopened := newTestIndex(t, dir)
	if got := reopened.Count(ports.CollectionTools); got != 1 {
		t.Fatalf("expected 1 persisted document after reopen, got %d", got)
	}
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(64)

	a, err := e.Embed(ctx, "refactor the storage layer")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, err := e.Embed(ctx, "refactor the storage layer")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(a) != 64 || len(b) != 64 {
		t.Fatalf("expected 64 dimensions, got %d and %d", len(a), len(b))
	}
	var norm float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at dim %d", i)
		}
		norm += float64(a[i]) * float64(a[i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit-norm embedding, got %f", norm)
	}
}
