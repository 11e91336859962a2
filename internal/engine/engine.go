// Package engine is the composition root for the Retrieval & Context
// Assembly Engine: it wires storage, the vector store, the embedding and
// extraction capabilities, the Code Graph Builder, the GraphRAG builder,
// the Hybrid Retriever, the Context Assembler, and the relation detectors
// into the set of operations the spec §6 tool surface exposes (scanCode,
// graphragBuild, graphragSearch, memory CRUD, the pending/suggested
// workflow, ...). Grounded on the teacher's cmd/remembrances-mcp/main.go
// composition-root wiring shape (config -> storage -> embedder -> indexer
// -> mcp server), generalized from one fixed pipeline into an Engine value
// that cmd/rcaectl's CLI and thin MCP dispatcher both call into, since the
// spec treats the tool/RPC surface as "a thin dispatcher" over this engine
// (spec §1 Non-goals) rather than the place business logic lives.
package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rcae/rcae/internal/assembler"
	"github.com/rcae/rcae/internal/codegraph"
	"github.com/rcae/rcae/internal/config"
	"github.com/rcae/rcae/internal/graphrag"
	"github.com/rcae/rcae/internal/relations"
	"github.com/rcae/rcae/internal/retriever"
	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/internal/vectorstore"
	"github.com/rcae/rcae/pkg/capability"
)

// Engine owns every subsystem and exposes the operations the tool surface
// dispatches to.
type Engine struct {
	Cfg *config.Config

	Store    *storage.Store
	Vectors  vectorstore.Store
	Embedder capability.Embedder

	CodeBuilder *codegraph.Builder
	CodeWatcher *codegraph.Watcher
	CodeQueries *codegraph.Queries

	GraphBuilder *graphrag.Builder
	Retriever    *retriever.Retriever
	Assembler    *assembler.Assembler

	MemoryDetector     *relations.MemoryDetector
	CrossLayerDetector *relations.CrossLayerDetector

	storageMode storage.StorageMode
}

// vectorUpserterAdapter lets internal/codegraph drive any vectorstore.Store
// through its own narrow VectorUpserter seam without codegraph importing
// internal/vectorstore directly (spec §9 Design Notes: ambient singletons
// and cross-package coupling are passed through explicit owned handles).
type vectorUpserterAdapter struct{ store vectorstore.Store }

func (a vectorUpserterAdapter) Upsert(ctx context.Context, rec codegraph.VectorRecord) error {
	return a.store.Upsert(ctx, vectorstore.Record{
		ID: rec.ID, Kind: rec.Kind, Title: rec.Title, Vector: rec.Vector,
	})
}

// New wires every subsystem from cfg. The caller owns shutdown via Close.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	vectors, err := openVectors(cfg, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	embedder := openEmbedder(cfg)
	extractor := openExtractor(cfg)

	codeBuilder := codegraph.NewBuilder(store, vectorUpserterAdapter{vectors}, embedder, cfg.ProjectRoot, cfg.GetBatchConcurrency())
	codeWatcher := codegraph.NewWatcher(codeBuilder, cfg.ProjectRoot)

	graphBuilder := graphrag.NewBuilder(store, vectors, embedder, extractor, cfg.GetBatchConcurrency())
	ret := retriever.NewRetriever(store, vectors, embedder)
	asm := assembler.NewAssembler(store, vectors, embedder, ret)

	e := &Engine{
		Cfg:                cfg,
		Store:              store,
		Vectors:            vectors,
		Embedder:           embedder,
		CodeBuilder:        codeBuilder,
		CodeWatcher:        codeWatcher,
		CodeQueries:        codegraph.NewQueries(store),
		GraphBuilder:       graphBuilder,
		Retriever:          ret,
		Assembler:          asm,
		MemoryDetector:     relations.NewMemoryDetector(store, vectors, embedder),
		CrossLayerDetector: relations.NewCrossLayerDetector(store),
		storageMode:        storage.StorageMode(cfg.StorageMode),
	}
	return e, nil
}

// Close disposes every owned handle in reverse construction order (spec §9:
// "a dedicated shutdown path disposes them in reverse construction order").
func (e *Engine) Close() error {
	e.CodeWatcher.Stop()
	if err := e.Vectors.Close(); err != nil {
		e.Store.Close()
		return err
	}
	return e.Store.Close()
}

func openStore(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	if cfg.StorageBackend == "memory" {
		return storage.OpenMemory(ctx)
	}
	return storage.Open(ctx, cfg.DbPath)
}

func openVectors(cfg *config.Config, store *storage.Store) (vectorstore.Store, error) {
	if cfg.VectorProvider == "remote" {
		return vectorstore.NewRemoteStore(cfg.VectorURL, cfg.VectorCollectionName, cfg.EmbeddingDim), nil
	}
	return vectorstore.NewEmbeddedStore(store.DB(), cfg.EmbeddingDim), nil
}

func openEmbedder(cfg *config.Config) capability.Embedder {
	if cfg.EmbeddingProvider == "remote" {
		apiKey := os.Getenv("OPENAI_API_KEY")
		emb, err := capability.NewOpenAIEmbedder(apiKey, cfg.EmbeddingEndpoint, firstNonEmpty(cfg.EmbeddingModel, "text-embedding-3-small"), cfg.EmbeddingDim)
		if err == nil {
			return emb
		}
	}
	emb, err := capability.NewOllamaEmbedder(firstNonEmpty(cfg.EmbeddingEndpoint, "http://localhost:11434"), firstNonEmpty(cfg.EmbeddingModel, "nomic-embed-text"), cfg.EmbeddingDim)
	if err != nil {
		return nil
	}
	return emb
}

// openExtractor builds the entity/relationship extraction capability (spec
// §4.5 step 2). When an LLM is configured it is handed to
// graphrag.Builder.extract, which already falls back to the heuristic
// extractor on ErrNoCapability or any failure; when LLM extraction is
// disabled or unconfigured, NewLLMExtractor(nil) reports ErrNoCapability on
// every call so that fallback path is exercised deterministically instead
// of skipping the extractor seam entirely.
func openExtractor(cfg *config.Config) capability.Extractor {
	if cfg.DisableLLMExtract {
		return capability.NewLLMExtractor(nil)
	}
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return capability.NewLLMExtractor(nil)
	}
	model, err := openai.New(openai.WithToken(apiKey))
	if err != nil {
		return capability.NewLLMExtractor(nil)
	}
	return capability.NewLLMExtractor(model)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// now is the single source of wall-clock time the engine hands to storage
// calls.
func now() int64 { return time.Now().Unix() }
