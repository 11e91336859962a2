package codegraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rcae/rcae/internal/codegraph/scip"
	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/pkg/capability"
	"github.com/rcae/rcae/pkg/concpool"
	"github.com/rcae/rcae/pkg/treesitter"
)

// ScanOptions configures one Builder.Scan call (spec §4.2 "scan(options)").
type ScanOptions struct {
	Include               []string
	Exclude               []string
	MaxFiles              int
	BatchSize             int
	Watch                 bool
	PreferCompilerIndexer bool
	Full                  bool // force full rescan, ignoring persisted FileHash
}

func (o ScanOptions) batchSize() int {
	if o.BatchSize <= 0 {
		return 50
	}
	return o.BatchSize
}

// ScanStats summarizes one scan (spec §4.2 "emits a ScanStats structure").
type ScanStats struct {
	FilesScanned   int
	FilesAdded     int
	FilesModified  int
	FilesDeleted   int
	FilesUnchanged int
	NodesUpdated   int
	EdgesUpserted  int
	Errors         []string
}

// Builder is the Code Graph Builder (spec §4.2): it keeps CodeNode/CodeEdge
// tables consistent with the repository's current contents. Grounded on the
// teacher's internal/indexer.Indexer orchestration shape, rebuilt around
// this engine's own CodeNode/CodeEdge/FileHash model instead of the
// teacher's CodeProject/CodeSymbol tables.
type Builder struct {
	store    *storage.Store
	vectors  VectorUpserter
	embedder capability.Embedder
	scip     *scip.Adapter
	walker   *treesitter.ASTWalker

	root             string
	concurrency      int
	storeSourceLimit int
}

// VectorUpserter is the subset of vectorstore.Store the builder needs for
// step 6's embedding queue, kept narrow so tests can fake it trivially.
type VectorUpserter interface {
	Upsert(ctx context.Context, rec VectorRecord) error
}

// VectorRecord mirrors vectorstore.Record's fields the builder populates;
// internal/codegraph does not import internal/vectorstore directly so the
// composition root can adapt either backend through this seam.
type VectorRecord struct {
	ID     string
	Kind   string
	Title  string
	Vector []float32
}

// NewBuilder wires a Builder over an already-open store, a vector upserter,
// an embedding capability (may be nil to skip step 6), and project root.
func NewBuilder(store *storage.Store, vectors VectorUpserter, embedder capability.Embedder, root string, concurrency int) *Builder {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Builder{
		store:       store,
		vectors:     vectors,
		embedder:    embedder,
		scip:        scip.NewAdapter(root),
		walker:      treesitter.NewASTWalker(treesitter.DefaultWalkerConfig()),
		root:        root,
		concurrency: concurrency,
	}
}

// Scan performs either a full or incremental scan (spec §4.2 algorithm).
func (b *Builder) Scan(ctx context.Context, opts ScanOptions) (*ScanStats, error) {
	scanner := NewScanner(opts.Exclude, opts.MaxFiles)
	scanner.Include = opts.Include

	discovered, err := scanner.Discover(b.root)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	stats := &ScanStats{}
	for _, e := range discovered.Errors {
		stats.Errors = append(stats.Errors, e.Error())
	}

	existingHashes, err := b.store.ListFileHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list file hashes: %w", err)
	}
	hashByPath := make(map[string]string, len(existingHashes))
	for _, h := range existingHashes {
		hashByPath[h.Path] = h.ContentHash
	}

	seen := make(map[string]bool, len(discovered.Files))
	var toProcess []ScannedFile
	for _, f := range discovered.Files {
		seen[f.RelPath] = true
		prior, known := hashByPath[f.RelPath]
		switch {
		case !known:
			stats.FilesAdded++
			toProcess = append(toProcess, f)
		case prior != f.Hash || opts.Full:
			stats.FilesModified++
			toProcess = append(toProcess, f)
		default:
			stats.FilesUnchanged++
		}
	}
	for path := range hashByPath {
		if !seen[path] {
			stats.FilesDeleted++
			if err := b.store.DeleteCodeNodesByFile(ctx, path); err != nil {
				stats.Errors = append(stats.Errors, err.Error())
			}
			if err := b.store.DeleteFileHash(ctx, path); err != nil {
				stats.Errors = append(stats.Errors, err.Error())
			}
		}
	}
	stats.FilesScanned = len(toProcess)

	// Build the module-node index across the full discovered set up front so
	// that import-edge resolution (step 3b "best-effort edges") can target
	// files that weren't themselves re-parsed this pass.
	knownModules := make(map[string]string, len(discovered.Files))
	for _, f := range discovered.Files {
		knownModules[f.RelPath] = moduleNodeID(f.RelPath)
	}

	batch := opts.batchSize()
	for start := 0; start < len(toProcess); start += batch {
		end := start + batch
		if end > len(toProcess) {
			end = len(toProcess)
		}
		if err := b.processBatch(ctx, toProcess[start:end], knownModules, stats); err != nil {
			stats.Errors = append(stats.Errors, err.Error())
		}
	}

	return stats, nil
}

func moduleNodeID(relPath string) string {
	return relPath + ":module:" + filepath.Base(relPath)
}

// processBatch parses, summarizes, embeds, and persists one batch of files
// inside a single transaction per spec §4.2 step 7 ("Apply all DB mutations
// in a transaction per batch").
func (b *Builder) processBatch(ctx context.Context, files []ScannedFile, knownModules map[string]string, stats *ScanStats) error {
	parser := treesitter.NewParser()
	defer parser.Close()

	type parsedFile struct {
		file  ScannedFile
		nodes []*storage.CodeNode
		edges []*storage.CodeEdge
	}
	var parsed []parsedFile

	for _, f := range files {
		content, err := os.ReadFile(f.AbsPath)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("read %s: %v", f.RelPath, err))
			continue
		}

		nodes, fromIndexer := b.parseFile(ctx, parser, f, content)
		_ = fromIndexer

		now := time.Now().Unix()
		var codeNodes []*storage.CodeNode
		hasModule := false
		for _, n := range nodes {
			n.CreatedAt, n.UpdatedAt = now, now
			summarize(n)
			codeNodes = append(codeNodes, n)
			if n.Type == "module" {
				hasModule = true
			}
		}
		// Step 4: synthesize a module node for every file that has none among
		// its parsed symbols, even when it contributed other symbols, so
		// path-level retrieval always has a file-granularity anchor.
		if !hasModule {
			codeNodes = append(codeNodes, &storage.CodeNode{
				ID:        moduleNodeID(f.RelPath),
				Type:      "module",
				Name:      filepath.Base(f.RelPath),
				FilePath:  f.RelPath,
				Summary:   "File module: " + f.RelPath,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}

		edges := ExtractReferenceEdges(codeNodes)
		edges = append(edges, ExtractImportEdges(f.Language, f.RelPath, content, knownModules)...)

		parsed = append(parsed, parsedFile{file: f, nodes: codeNodes, edges: edges})
	}

	// Step 6: queue embeddings for added/updated function or class nodes,
	// batched with per-item fallback.
	if b.embedder != nil {
		var targets []*storage.CodeNode
		for _, p := range parsed {
			for _, n := range p.nodes {
				if n.Type == "function" || n.Type == "class" {
					targets = append(targets, n)
				}
			}
		}
		b.embedBatch(ctx, targets, stats)
	}

	now := time.Now().Unix()
	for _, p := range parsed {
		if err := b.store.DeleteCodeNodesByFile(ctx, p.file.RelPath); err != nil {
			stats.Errors = append(stats.Errors, err.Error())
			continue
		}
		for _, n := range p.nodes {
			if err := b.store.UpsertCodeNode(ctx, n, now); err != nil {
				stats.Errors = append(stats.Errors, err.Error())
				continue
			}
			stats.NodesUpdated++
		}
		for _, e := range p.edges {
			if err := b.store.UpsertCodeEdge(ctx, e); err != nil {
				stats.Errors = append(stats.Errors, err.Error())
				continue
			}
			stats.EdgesUpserted++
		}
		if err := b.store.SetFileHash(ctx, p.file.RelPath, p.file.Hash, now); err != nil {
			stats.Errors = append(stats.Errors, err.Error())
		}
	}
	return nil
}

// parseFile implements step 3: the preferred compiler-accurate indexer
// first, falling back to structural tree-sitter parsing.
func (b *Builder) parseFile(ctx context.Context, parser *treesitter.Parser, f ScannedFile, content []byte) ([]*storage.CodeNode, bool) {
	if b.scip != nil {
		if occ, err := b.scip.Occurrences(ctx, f.RelPath); err == nil && len(occ) > 0 {
			return scip.ToCodeNodes(f.RelPath, occ), true
		}
	}

	tree, err := parser.Parse(ctx, content, f.Language)
	if err != nil {
		slog.Warn("parse failed, skipping symbol extraction", "file", f.RelPath, "error", err)
		return nil, false
	}
	defer tree.Close()

	symbols, err := b.walker.ExtractSymbols(tree, content, f.Language, f.RelPath, "")
	if err != nil {
		slog.Warn("symbol extraction failed", "file", f.RelPath, "error", err)
		return nil, false
	}

	nodes := make([]*storage.CodeNode, 0, len(symbols))
	for _, sym := range symbols {
		nodes = append(nodes, symbolToCodeNode(f.RelPath, sym))
	}
	return nodes, false
}

func symbolToCodeNode(relPath string, sym *treesitter.CodeSymbol) *storage.CodeNode {
	nodeType := mapSymbolType(sym.SymbolType)
	start, end := sym.StartLine, sym.EndLine
	return &storage.CodeNode{
		ID:        relPath + ":" + nodeType + ":" + sym.NamePath,
		Type:      nodeType,
		Name:      sym.Name,
		FilePath:  relPath,
		StartLine: &start,
		EndLine:   &end,
		Signature: sym.Signature,
		Summary:   sym.DocString,
		Metadata:  map[string]any{"language": string(sym.Language)},
	}
}

func mapSymbolType(t treesitter.SymbolType) string {
	switch t {
	case treesitter.SymbolTypeClass, treesitter.SymbolTypeStruct, treesitter.SymbolTypeEnum:
		return "class"
	case treesitter.SymbolTypeInterface, treesitter.SymbolTypeTrait:
		return "interface"
	case treesitter.SymbolTypeTypeAlias:
		return "type"
	case treesitter.SymbolTypeNamespace, treesitter.SymbolTypeModule, treesitter.SymbolTypePackage:
		return "module"
	default:
		return "function"
	}
}

// summary confidence threshold below which a node is flagged for deferred
// AI summarization (spec §4.2 step 5).
const summaryConfidenceThreshold = 0.5

// Summarize recomputes a node's heuristic summary in place, exported so the
// engine's on-demand summarizeCode operation can re-run it outside a scan.
func Summarize(n *storage.CodeNode) { summarize(n) }

// summarize fills Summary/SummaryConfidence/NeedsAISummary per spec §4.2
// step 5's cascade: docstring -> leading comment (already folded into
// DocString by the tree-sitter extractor) -> signature-derived stub.
func summarize(n *storage.CodeNode) {
	if n.Summary != "" {
		n.SummaryConfidence = 0.9
	} else if n.Signature != "" {
		n.Summary = stubFromSignature(n.Type, n.Name, n.Signature)
		n.SummaryConfidence = 0.3
	} else {
		n.Summary = stubFromSignature(n.Type, n.Name, "")
		n.SummaryConfidence = 0.15
	}
	n.NeedsAISummary = n.SummaryConfidence < summaryConfidenceThreshold || isExported(n.Name)
}

func stubFromSignature(kind, name, signature string) string {
	if signature != "" {
		return fmt.Sprintf("%s %s: %s", kind, name, signature)
	}
	return fmt.Sprintf("%s %s", kind, name)
}

func isExported(name string) bool {
	if name == "" {
		return false
	}
	r := []rune(name)[0]
	return unicode.IsUpper(r)
}

// embedBatch queues an embedding per function/class node, per spec §4.2
// step 6: "flush in fixed batches, falling back to per-item embedding on
// batch failure, skipping items whose vector is empty."
func (b *Builder) embedBatch(ctx context.Context, nodes []*storage.CodeNode, stats *ScanStats) {
	if len(nodes) == 0 {
		return
	}
	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = strings.TrimSpace(n.Name + "\n" + n.Signature + "\n" + n.Summary)
	}

	vecs, err := b.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		// Batch failed: fall back to per-item embedding (concpool tolerant
		// driver), never aborting the scan.
		results, errs := concpool.BatchTolerant(ctx, 4, nodes, func(ctx context.Context, n *storage.CodeNode) ([]float32, error) {
			return b.embedder.EmbedQuery(ctx, strings.TrimSpace(n.Name+"\n"+n.Signature+"\n"+n.Summary))
		})
		for i, n := range nodes {
			if errs[i] != nil || len(results[i]) == 0 {
				continue
			}
			b.upsertNodeVector(ctx, n, results[i], stats)
		}
		return
	}
	for i, n := range nodes {
		if len(vecs[i]) == 0 {
			continue
		}
		b.upsertNodeVector(ctx, n, vecs[i], stats)
	}
}

func (b *Builder) upsertNodeVector(ctx context.Context, n *storage.CodeNode, vec []float32, stats *ScanStats) {
	if b.vectors == nil {
		return
	}
	if err := b.vectors.Upsert(ctx, VectorRecord{ID: "code_unit:" + n.ID, Kind: storage.VectorKindCodeUnit, Title: n.Name, Vector: vec}); err != nil {
		stats.Errors = append(stats.Errors, err.Error())
	}
}
