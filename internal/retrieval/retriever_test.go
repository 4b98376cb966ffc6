package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"conductor/internal/ports"
)

// stubIndex lets each collection answer, fail, or hang independently.
type stubIndex struct {
	mu      sync.Mutex
	matches map[ports.Collection][]ports.Match
	errs    map[ports.Collection]error
	delays  map[ports.Collection]time.Duration
	topKs   map[ports.Collection]int
	calls   int
}

func newStubIndex() *stubIndex {
	return &stubIndex{
		matches: make(map[ports.Collection][]ports.Match),
		errs:    make(map[ports.Collection]error),
		delays:  make(map[ports.Collection]time.Duration),
		topKs:   make(map[ports.Collection]int),
	}
}

func (s *stubIndex) Search(ctx context.Context, col ports.Collection, _ string, topK int, _ float32) ([]ports.Match, error) {
	s.mu.Lock()
	s.calls++
	s.topKs[col] = topK
	delay := s.delays[col]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[col]; err != nil {
		return nil, err
	}
	return s.matches[col], nil
}

func (s *stubIndex) topKFor(col ports.Collection) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topKs[col]
}

func (s *stubIndex) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRetriever_SearchesBothCollections(t *testing.T) {
	idx := newStubIndex()
	idx.matches[ports.CollectionTools] = []ports.Match{{ID: "calculator", Score: 0.9}}
	idx.matches[ports.CollectionModules] = []ports.Match{{ID: "spec.math", Score: 0.8}, {ID: "spec.code-analysis", Score: 0.5}}

	r := NewRetriever(Config{}, idx, nil)
	state := r.Retrieve(context.Background(), "what is the derivative of x^2?")

	if state.Degraded() {
		t.Fatalf("unexpected degradation: %+v", state)
	}
	if len(state.SuggestedTools) != 1 || state.SuggestedTools[0].ID != "calculator" {
		t.Fatalf("unexpected tool candidates: %v", state.SuggestedTools)
	}
	if len(state.SuggestedModules) != 2 {
		t.Fatalf("unexpected module candidates: %v", state.SuggestedModules)
	}
	if state.RawQuery == "" {
		t.Fatal("raw query not carried on state")
	}
}

func TestRetriever_AdaptiveTopK(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"short query narrows", "what is 2+4?", 2},
		{"long query widens", "please walk through how the request pipeline assembles context and why", 5},
		{"whitespace ignored for length", "   what is 2+4?   ", 2},
		{"short code-bearing query widens", "why does parse_args() panic?", 5},
		{"file reference widens", "lint store.go", 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			idx := newStubIndex()
			r := NewRetriever(Config{}, idx, nil)
			r.Retrieve(context.Background(), tc.query)

			if got := idx.topKFor(ports.CollectionTools); got != tc.want {
				t.Fatalf("tools topK: got %d, want %d", got, tc.want)
			}
			if got := idx.topKFor(ports.CollectionModules); got != tc.want {
				t.Fatalf("modules topK: got %d, want %d", got, tc.want)
			}
		})
	}
	if len("what is 2+4?") >= 40 {
		t.Fatal("test fixture no longer below the short-query bound")
	}
	if len(strings.TrimSpace("please walk through how the request pipeline assembles context and why")) < 40 {
		t.Fatal("test fixture no longer above the short-query bound")
	}
}

func TestRetriever_TimeoutDegradesOnlyThatCollection(t *testing.T) {
	idx := newStubIndex()
	idx.delays[ports.CollectionTools] = 200 * time.Millisecond
	idx.matches[ports.CollectionModules] = []ports.Match{{ID: "core.reasoning", Score: 0.7}}

	r := NewRetriever(Config{SearchTimeout: 20 * time.Millisecond}, idx, nil)
	state := r.Retrieve(context.Background(), "anything")

	if !state.ToolsDegraded {
		t.Fatal("expected tools search to degrade on timeout")
	}
	if len(state.SuggestedTools) != 0 {
		t.Fatalf("degraded search must yield no candidates, got %v", state.SuggestedTools)
	}
	if state.ModulesDegraded {
		t.Fatal("modules search should not degrade")
	}
	if len(state.SuggestedModules) != 1 {
		t.Fatalf("modules candidates lost: %v", state.SuggestedModules)
	}
}

func TestRetriever_ErrorDegradesOnlyThatCollection(t *testing.T) {
	idx := newStubIndex()
	idx.errs[ports.CollectionModules] = errors.New("index unavailable")
	idx.matches[ports.CollectionTools] = []ports.Match{{ID: "code_search", Score: 0.6}}

	r := NewRetriever(Config{}, idx, nil)
	state := r.Retrieve(context.Background(), "find the handler registration")

	if !state.ModulesDegraded || state.ToolsDegraded {
		t.Fatalf("expected only modules to degrade, got tools=%v modules=%v", state.ToolsDegraded, state.ModulesDegraded)
	}
	if len(state.SuggestedTools) != 1 {
		t.Fatalf("tool candidates lost: %v", state.SuggestedTools)
	}
}

func TestRetriever_EmptyQuerySkipsSearch(t *testing.T) {
	idx := newStubIndex()
	r := NewRetriever(Config{}, idx, nil)

	state := r.Retrieve(context.Background(), "   ")

	if idx.callCount() != 0 {
		t.Fatalf("expected no index calls for blank query, got %d", idx.callCount())
	}
	if state.Degraded() {
		t.Fatal("blank query must not be reported as degraded")
	}
	if len(state.SuggestedTools) != 0 || len(state.SuggestedModules) != 0 {
		t.Fatalf("blank query must yield no candidates: %+v", state)
	}
}

func TestRetriever_CancelledContextDegradesBoth(t *testing.T) {
	idx := newStubIndex()
	idx.matches[ports.CollectionTools] = []ports.Match{{ID: "calculator", Score: 0.9}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRetriever(Config{}, idx, nil)
	state := r.Retrieve(ctx, "what is 2+4?")

	if !state.ToolsDegraded || !state.ModulesDegraded {
		t.Fatalf("cancelled request should degrade both searches: %+v", state)
	}
}
