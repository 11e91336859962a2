package graphrag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/internal/vectorstore"
	"github.com/rcae/rcae/pkg/capability"
	"github.com/rcae/rcae/pkg/concpool"
)

// BuildOptions configures one Builder.Build call (spec §4.5's
// "graphragBuild(options)").
type BuildOptions struct {
	MemoryIDs       []string // empty means "all memories"
	ReindexAll      bool
	MaxLevel        int // community hierarchy depth, default 2
	MinEdgeStrength int // clustering threshold, default 3
	BatchSize       int // entity embedding batch size, default 25
}

func (o BuildOptions) maxLevel() int {
	if o.MaxLevel <= 0 {
		return 2
	}
	return o.MaxLevel
}

func (o BuildOptions) minEdgeStrength() int {
	if o.MinEdgeStrength <= 0 {
		return 3
	}
	return o.MinEdgeStrength
}

func (o BuildOptions) batchSize() int {
	if o.BatchSize <= 0 {
		return 25
	}
	return o.BatchSize
}

// BuildStats summarizes one Build call.
type BuildStats struct {
	MemoriesProcessed     int
	EntitiesCreated       int
	EntitiesMerged        int
	RelationshipsUpserted int
	CommunitiesBuilt      int
	ReportsGenerated      int
	NoOp                  bool
	Errors                []string
}

// Builder runs the GraphRAG build pipeline (spec §4.5). Grounded on the
// teacher's surrealdb_entities.go CreateEntity/CreateRelationship shape,
// rebuilt over internal/storage's sqlite tables and driven by the
// pkg/capability extraction seam instead of a provider-specific call.
type Builder struct {
	store     *storage.Store
	vectors   vectorstore.Store
	embedder  capability.Embedder
	extractor capability.Extractor
	concurrency int
}

// NewBuilder wires a Builder. extractor may be an LLMExtractor with a
// HeuristicExtractor fallback composed by the caller, or just the
// heuristic extractor directly when no LLM capability is configured.
func NewBuilder(store *storage.Store, vectors vectorstore.Store, embedder capability.Embedder, extractor capability.Extractor, concurrency int) *Builder {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Builder{store: store, vectors: vectors, embedder: embedder, extractor: extractor, concurrency: concurrency}
}

// Build runs the full pipeline: extraction, merge, relationship recording,
// entity embedding, community clustering, and report generation.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*BuildStats, error) {
	stats := &BuildStats{}

	memories, err := b.selectMemories(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("select memories: %w", err)
	}

	touchedEntities := map[string]bool{}
	graphChanged := false

	for _, m := range memories {
		if !opts.ReindexAll {
			mentioned, err := b.memoryAlreadyExtracted(ctx, m.ID)
			if err != nil {
				stats.Errors = append(stats.Errors, err.Error())
				continue
			}
			if mentioned {
				continue
			}
		} else {
			if err := b.store.ResetMemoryEntityLinks(ctx, m.ID); err != nil {
				stats.Errors = append(stats.Errors, err.Error())
			}
		}

		result, err := b.extract(ctx, m.Content)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("memory %s: %v", m.ID, err))
			continue
		}
		if len(result.Entities) == 0 {
			continue
		}
		graphChanged = true
		stats.MemoriesProcessed++

		aliasMap, err := b.mergeEntities(ctx, m.ID, result.Entities, stats)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("memory %s merge: %v", m.ID, err))
			continue
		}
		for _, id := range aliasMap {
			touchedEntities[id] = true
		}

		if err := b.recordRelationships(ctx, m.ID, result.Relationships, aliasMap, stats); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("memory %s relationships: %v", m.ID, err))
		}
	}

	if !graphChanged && !opts.ReindexAll {
		stats.NoOp = true
		return stats, nil
	}

	if b.embedder != nil && len(touchedEntities) > 0 {
		b.embedTouchedEntities(ctx, touchedEntities, opts, stats)
	}

	if err := b.gcEntityVectors(ctx); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("gc entity vectors: %v", err))
	}

	communities, err := b.buildCommunities(ctx, opts)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("cluster communities: %v", err))
		return stats, nil
	}
	stats.CommunitiesBuilt = len(communities)

	if err := b.generateReports(ctx, communities, opts, stats); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("generate reports: %v", err))
	}

	return stats, nil
}

func (b *Builder) selectMemories(ctx context.Context, opts BuildOptions) ([]*storage.Memory, error) {
	if len(opts.MemoryIDs) > 0 {
		var out []*storage.Memory
		for _, id := range opts.MemoryIDs {
			m, err := b.store.GetMemory(ctx, id)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	}
	return b.store.ListMemories(ctx, storage.ListMemoriesFilter{})
}

func (b *Builder) memoryAlreadyExtracted(ctx context.Context, memoryID string) (bool, error) {
	entities, err := b.store.ListEntities(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range entities {
		mems, err := b.store.EntityMemories(ctx, e.ID)
		if err != nil {
			continue
		}
		for _, id := range mems {
			if id == memoryID {
				return true, nil
			}
		}
	}
	return false, nil
}

// extract runs the configured extractor, falling back to a heuristic
// extractor on any error or ErrNoCapability (spec §4.5 step 2).
func (b *Builder) extract(ctx context.Context, content string) (capability.ExtractionResult, error) {
	if b.extractor != nil {
		result, err := b.extractor.Extract(ctx, content)
		if err == nil {
			return result, nil
		}
		slog.Warn("graphrag: extraction capability failed, falling back to heuristic", "error", err)
	}
	return capability.NewHeuristicExtractor().Extract(ctx, content)
}

// mergeEntities resolves each extracted entity against the alias index,
// merging into an existing entity or creating a new one, and returns a
// map from the extracted mention text to the resolved entity id for
// relationship resolution.
func (b *Builder) mergeEntities(ctx context.Context, memoryID string, entities []capability.ExtractedEntity, stats *BuildStats) (map[string]string, error) {
	now := time.Now().Unix()
	aliasMap := make(map[string]string, len(entities))

	existing, err := b.store.ListEntities(ctx)
	if err != nil {
		return nil, err
	}

	for _, ex := range entities {
		norm := normalizeAlias(ex.CanonicalName)
		var match *storage.Entity
		for _, e := range existing {
			if aliasMatch(normalizeAlias(e.CanonicalName), norm) {
				match = e
				break
			}
		}

		if match != nil {
			if err := b.store.MergeEntityMention(ctx, match.ID, memoryID, ex.MentionText, now); err != nil {
				return nil, err
			}
			blended := blendDescriptions(match.Description, ex.Description)
			confidence := match.ExtractionConfidence
			if ex.Confidence > confidence {
				confidence = ex.Confidence
			}
			if err := b.store.UpdateEntityMerge(ctx, match.ID, blended, confidence, now); err != nil {
				return nil, err
			}
			match.Description = blended
			match.ExtractionConfidence = confidence
			aliasMap[ex.CanonicalName] = match.ID
			stats.EntitiesMerged++
			continue
		}

		e := &storage.Entity{
			CanonicalName:        ex.CanonicalName,
			EntityType:           ex.EntityType,
			Description:          ex.Description,
			MentionCount:         1,
			ExtractionConfidence: ex.Confidence,
		}
		if err := b.store.CreateEntity(ctx, e, now); err != nil {
			return nil, err
		}
		if err := b.store.MergeEntityMention(ctx, e.ID, memoryID, ex.MentionText, now); err != nil {
			return nil, err
		}
		aliasMap[ex.CanonicalName] = e.ID
		existing = append(existing, e)
		stats.EntitiesCreated++
	}
	return aliasMap, nil
}

// recordRelationships resolves each extracted relationship's endpoints
// against the per-batch alias map (falling back to a full alias lookup)
// and upserts it, rejecting self-loops per spec §4.5 step 4.
func (b *Builder) recordRelationships(ctx context.Context, memoryID string, rels []capability.ExtractedRelationship, aliasMap map[string]string, stats *BuildStats) error {
	now := time.Now().Unix()
	for _, r := range rels {
		srcID, err := b.resolveEntityMention(ctx, r.Source, aliasMap)
		if err != nil {
			continue
		}
		tgtID, err := b.resolveEntityMention(ctx, r.Target, aliasMap)
		if err != nil {
			continue
		}
		if srcID == "" || tgtID == "" || srcID == tgtID {
			continue
		}
		rel := &storage.Relationship{
			SourceEntityID:   srcID,
			TargetEntityID:   tgtID,
			RelationshipType: r.Type,
			Description:      r.Description,
			Strength:         r.Strength,
		}
		if err := b.store.UpsertRelationship(ctx, rel, memoryID, r.Description, now); err != nil {
			return err
		}
		stats.RelationshipsUpserted++
	}
	return nil
}

func (b *Builder) resolveEntityMention(ctx context.Context, mention string, aliasMap map[string]string) (string, error) {
	if id, ok := aliasMap[mention]; ok {
		return id, nil
	}
	e, err := b.store.FindEntityByAlias(ctx, mention)
	if err != nil {
		norm := normalizeAlias(mention)
		entities, listErr := b.store.ListEntities(ctx)
		if listErr != nil {
			return "", err
		}
		for _, candidate := range entities {
			if aliasMatch(normalizeAlias(candidate.CanonicalName), norm) {
				return candidate.ID, nil
			}
		}
		return "", err
	}
	return e.ID, nil
}

// embedTouchedEntities synthesizes a representation for every entity
// touched this build pass and embeds it in fixed-size batches with
// per-item fallback (spec §4.5 step 5), storing at vector id
// "graphrag_entity:<id>".
func (b *Builder) embedTouchedEntities(ctx context.Context, touched map[string]bool, opts BuildOptions, stats *BuildStats) {
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}

	batch := opts.batchSize()
	for start := 0; start < len(ids); start += batch {
		end := start + batch
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		_, _ = concpool.BatchTolerant(ctx, b.concurrency, chunk, func(ctx context.Context, entityID string) (struct{}, error) {
			e, err := b.store.GetEntity(ctx, entityID)
			if err != nil {
				return struct{}{}, err
			}
			text := synthesizeEntityText(e)
			vec, err := b.embedder.EmbedQuery(ctx, text)
			if err != nil {
				return struct{}{}, err
			}
			vectorID := "graphrag_entity:" + e.ID
			if err := b.vectors.Upsert(ctx, vectorstore.Record{
				ID: vectorID, Kind: "graphrag_entity", Title: e.CanonicalName, Vector: vec,
			}); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, b.store.SetEntityEmbedding(ctx, e.ID, vectorID, time.Now().Unix())
		})
	}
}

func synthesizeEntityText(e *storage.Entity) string {
	return fmt.Sprintf("%s\nType: %s\nDescription: %s\nMentions: %d", e.CanonicalName, e.EntityType, e.Description, e.MentionCount)
}

// gcEntityVectors removes entity vectors whose entity row no longer
// exists (spec §4.5 step 5's "garbage-collect vectors for entities that
// no longer exist").
func (b *Builder) gcEntityVectors(ctx context.Context) error {
	entities, err := b.store.ListEntities(ctx)
	if err != nil {
		return err
	}
	live := make(map[string]bool, len(entities))
	for _, e := range entities {
		live["graphrag_entity:"+e.ID] = true
	}

	zero := make([]float32, b.embedderDimension())
	hits, err := b.vectors.Search(ctx, zero, 100000, vectorstore.Filter{Kind: "graphrag_entity"})
	if err != nil {
		return err
	}
	for _, h := range hits {
		if !live[h.Record.ID] {
			if err := b.vectors.Delete(ctx, h.Record.ID); err != nil && err != vectorstore.ErrNotFound {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) embedderDimension() int {
	if b.embedder == nil {
		return 0
	}
	return b.embedder.Dimension()
}
