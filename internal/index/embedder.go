package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"conductor/internal/config"
	conderr "conductor/internal/errors"
	"conductor/internal/logging"
)

// Embedder turns text into vectors for the semantic index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// EmbedderConfig configures the OpenAI-compatible embedding client.
type EmbedderConfig struct {
	Model     string
	APIKey    string
	BaseURL   string
	CacheSize int
}

// NewEmbedder selects an embedder from the runtime configuration. The mock
// provider gets a local deterministic embedder so the pipeline runs without
// network access.
func NewEmbedder(cfg *config.Config, logger logging.Logger) Embedder {
	if cfg.LLMProvider == "mock" {
		return NewHashEmbedder(0)
	}
	baseURL := cfg.EmbeddingBaseURL
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	return NewOpenAIEmbedder(EmbedderConfig{
		Model:     cfg.EmbeddingModel,
		APIKey:    cfg.APIKey,
		BaseURL:   baseURL,
		CacheSize: cfg.EmbeddingCacheSize,
	}, logger)
}

const embedBatchLimit = 100

type openaiEmbedder struct {
	cfg    EmbedderConfig
	client *http.Client
	cache  *lru.Cache[string, []float32]
	retry  conderr.RetryConfig
	logger logging.Logger
}

// NewOpenAIEmbedder builds an embedding client against any OpenAI-compatible
// /embeddings endpoint. Results are cached per text in an LRU.
func NewOpenAIEmbedder(cfg EmbedderConfig, logger logging.Logger) Embedder {
	if cfg.Model == "" {
		cfg.Model = config.DefaultEmbeddingModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultLLMBaseURL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = config.DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](cfg.CacheSize)
	return &openaiEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		cache:  cache,
		retry:  conderr.DefaultRetryConfig(),
		logger: logging.OrNop(logger),
	}
}

func (e *openaiEmbedder) Dimensions() int {
	switch e.cfg.Model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *openaiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if vec, ok := e.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	e.logger.Debug("Embedding %d/%d texts (rest cached)", len(missing), len(texts))

	for start := 0; start < len(missing); start += embedBatchLimit {
		end := start + embedBatchLimit
		if end > len(missing) {
			end = len(missing)
		}
		chunk := missing[start:end]
		inputs := make([]string, len(chunk))
		for i, idx := range chunk {
			inputs[i] = texts[idx]
		}

		vectors, err := conderr.RetryWithResultAndLog(ctx, e.retry, func(ctx context.Context) ([][]float32, error) {
			return e.callAPI(ctx, inputs)
		}, e.logger)
		if err != nil {
			return nil, err
		}
		for i, idx := range chunk {
			out[idx] = vectors[i]
			e.cache.Add(texts[idx], vectors[i])
		}
	}
	return out, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (e *openaiEmbedder) callAPI(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.cfg.Model, Input: inputs})
	if err != nil {
		return nil, conderr.NewPermanentError(err, "encode embedding request")
	}

	url := strings.TrimSuffix(e.cfg.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, conderr.NewPermanentError(err, "build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, conderr.NewTransientError(err, "embedding request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		cause := fmt.Errorf("embeddings API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, conderr.NewTransientError(cause, "embedding request throttled or failed upstream")
		}
		return nil, conderr.NewPermanentError(cause, "embedding request rejected")
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, conderr.NewTransientError(err, "decode embedding response")
	}
	if len(decoded.Data) != len(inputs) {
		return nil, conderr.NewTransientError(
			fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(decoded.Data)),
			"embedding response incomplete")
	}

	// The API may reorder results; Index restores input order.
	sort.Slice(decoded.Data, func(i, j int) bool { return decoded.Data[i].Index < decoded.Data[j].Index })
	vectors := make([][]float32, len(decoded.Data))
	for i, d := range decoded.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

const defaultHashDimensions = 256

type hashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a local embedder that folds token hashes into a
// fixed-size vector. Deterministic and offline; similarity tracks word
// overlap, which is enough for the mock provider and for tests.
func NewHashEmbedder(dims int) Embedder {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &hashEmbedder{dims: dims}
}

func (h *hashEmbedder) Dimensions() int { return h.dims }

func (h *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,:;!?\"'()[]{}")
		if tok == "" {
			continue
		}
		hasher := fnv.New32a()
		hasher.Write([]byte(tok))
		vec[int(hasher.Sum32())%h.dims]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (h *hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
