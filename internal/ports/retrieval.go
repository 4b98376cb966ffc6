package ports

import "context"

// Collection names one of the two independently indexed description corpora.
type Collection string

const (
	CollectionTools   Collection = "tools"
	CollectionModules Collection = "modules"
)

// Match is one similarity-search hit.
type Match struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// SemanticIndex is the similarity-search boundary. Implementations may back it
// with any vector database or embedding service.
type SemanticIndex interface {
	Search(ctx context.Context, col Collection, query string, topK int, minScore float32) ([]Match, error)
}

// RetrievalState holds the ranked candidates for one request. It is produced
// once by the retriever and consumed read-only downstream.
type RetrievalState struct {
	RawQuery         string  `json:"raw_query"`
	SuggestedTools   []Match `json:"suggested_tools"`
	SuggestedModules []Match `json:"suggested_modules"`

	// Degradation flags: the corresponding search failed or timed out and its
	// list is empty. Recovered locally, never an error.
	ToolsDegraded   bool `json:"tools_degraded,omitempty"`
	ModulesDegraded bool `json:"modules_degraded,omitempty"`
}

// Degraded reports whether either search fell back to an empty list.
func (s RetrievalState) Degraded() bool {
	return s.ToolsDegraded || s.ModulesDegraded
}
