// Package embedding turns text into vectors for knowledge base ranking.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"wellness/wellness/config"
	httputils "wellness/wellness/utils/http"
	"wellness/wellness/utils/logging"

	"go.uber.org/zap"
)

type Engine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// NewEngine returns nil, nil when embeddings are disabled; callers then fall
// back to keyword ranking.
func NewEngine(cfg config.Config) (Engine, error) {
	switch strings.ToLower(cfg.EmbeddingProvider) {
	case "", "none":
		logging.AppLogger.Info("embeddings disabled, using keyword retrieval")
		return nil, nil
	case "ollama":
		e := NewOllamaEngine(cfg.EmbeddingEndpoint, cfg.EmbeddingModel)
		logging.AppLogger.Info("embedding engine ready", zap.String("engine", e.Name()))
		return e, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'none')", cfg.EmbeddingProvider)
	}
}

type OllamaEngine struct {
	endpoint string
	model    string
}

func NewOllamaEngine(endpoint, model string) *OllamaEngine {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaEngine{endpoint: strings.TrimRight(endpoint, "/"), model: model}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *OllamaEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaEmbedResponse
	if err := httputils.PostJSON(ctx, e.endpoint+"/api/embeddings", ollamaEmbedRequest{Model: e.model, Prompt: text}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}
	return resp.Embedding, nil
}

// EmbedBatch calls Embed sequentially; the endpoint has no batch form.
func (e *OllamaEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (e *OllamaEngine) Name() string {
	return "ollama:" + e.model
}

// CosineSimilarity is in [-1, 1]. Vectors of different length are an error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}
	var dot, am, bm float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		am += float64(a[i]) * float64(a[i])
		bm += float64(b[i]) * float64(b[i])
	}
	if am == 0 || bm == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(am) * math.Sqrt(bm)), nil
}

type SimilarityResult struct {
	Index      int
	Similarity float64
}

// FindTopK ranks corpus against query and returns at most k results, best first.
func FindTopK(query []float32, corpus [][]float32, k int) []SimilarityResult {
	if k <= 0 {
		k = 10
	}
	results := make([]SimilarityResult, 0, len(corpus))
	skipped := 0
	for i, vec := range corpus {
		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			skipped++
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: sim})
	}
	if skipped > 0 {
		logging.AppLogger.Warn("skipped vectors with mismatched dimensions", zap.Int("count", skipped))
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}
