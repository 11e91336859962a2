package capability

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainEmbedder adapts langchaingo's embeddings.Embedder to the
// capability.Embedder contract, mirroring the teacher's pkg/embedder
// provider wrappers but collapsed into one type parameterized by provider,
// since embedding model execution is injected rather than owned here
// (spec §1 Non-goals: "Embedding model execution... injected as capabilities").
type LangchainEmbedder struct {
	inner     embeddings.Embedder
	provider  string
	dimension int
}

// NewOpenAIEmbedder builds an Embedder backed by an OpenAI-compatible
// embeddings endpoint.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimension int) (*LangchainEmbedder, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, &EmbeddingError{Provider: "openai", Cause: err}
	}
	emb, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, &EmbeddingError{Provider: "openai", Cause: err}
	}
	return &LangchainEmbedder{inner: emb, provider: "openai", dimension: dimension}, nil
}

// NewOllamaEmbedder builds an Embedder backed by a local Ollama server.
func NewOllamaEmbedder(serverURL, model string, dimension int) (*LangchainEmbedder, error) {
	client, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, &EmbeddingError{Provider: "ollama", Cause: err}
	}
	emb, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, &EmbeddingError{Provider: "ollama", Cause: err}
	}
	return &LangchainEmbedder{inner: emb, provider: "ollama", dimension: dimension}, nil
}

// EmbedDocuments embeds a batch of texts, preserving input order per spec §5
// ("Embedding batches preserve input order").
func (e *LangchainEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &EmbeddingError{Provider: e.provider, Cause: err}
	}
	return vecs, nil
}

// EmbedQuery embeds a single query string.
func (e *LangchainEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := e.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &EmbeddingError{Provider: e.provider, Cause: err}
	}
	return v, nil
}

// Dimension returns the configured embedding dimension.
func (e *LangchainEmbedder) Dimension() int {
	return e.dimension
}
