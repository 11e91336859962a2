package assembler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/internal/vectorstore"
	"github.com/rcae/rcae/pkg/concpool"
)

type fetchFn func(ctx context.Context) ([]Candidate, error)

// fetchCandidates runs the memory/code/graph/report fetches concurrently
// (spec §4.7 step 2: "In parallel, fetch: top-k memory hits..., top-k code
// hits..., entity-local expansion..., optional community report hits").
func (a *Assembler) fetchCandidates(ctx context.Context, opts AssembleOptions, queryVec []float32) (map[string][]Candidate, error) {
	fetchers := []fetchFn{
		func(ctx context.Context) ([]Candidate, error) { return a.fetchMemoryCandidates(ctx, opts, queryVec) },
		func(ctx context.Context) ([]Candidate, error) { return a.fetchCodeCandidates(ctx, opts, queryVec) },
		func(ctx context.Context) ([]Candidate, error) { return a.fetchGraphCandidates(ctx, opts, queryVec) },
	}
	if opts.IncludeReports {
		fetchers = append(fetchers, func(ctx context.Context) ([]Candidate, error) {
			return a.fetchReportCandidates(ctx, opts, queryVec)
		})
	}

	results, err := concpool.Batch(ctx, len(fetchers), fetchers, func(ctx context.Context, f fetchFn) ([]Candidate, error) {
		return f(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("assembler: fetch candidates: %w", err)
	}

	out := map[string][]Candidate{sourceMemory: {}, sourceCode: {}, sourceGraph: {}, sourceReport: {}}
	for _, cands := range results {
		for _, c := range cands {
			out[c.Source] = append(out[c.Source], c)
		}
	}
	return out, nil
}

func (a *Assembler) fetchMemoryCandidates(ctx context.Context, opts AssembleOptions, queryVec []float32) ([]Candidate, error) {
	hits, err := a.vectors.Search(ctx, queryVec, opts.MemoryTopK, vectorstore.Filter{Kind: storage.VectorKindMemory})
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for i, h := range hits {
		mem, err := a.store.GetMemory(ctx, h.Record.MemoryID)
		if err != nil {
			continue
		}
		text := mem.Title + "\n" + mem.Content
		out = append(out, Candidate{
			Source:    sourceMemory,
			ID:        mem.ID,
			Rank:      i + 1,
			Relevance: h.Score,
			Tokens:    a.tokenizer.CountTokens(text),
			Text:      text,
			Payload:   MemoryPayload{ID: mem.ID, Title: mem.Title, Content: mem.Content, Tags: mem.Tags},
		})
	}
	return out, nil
}

func (a *Assembler) fetchCodeCandidates(ctx context.Context, opts AssembleOptions, queryVec []float32) ([]Candidate, error) {
	hits, err := a.vectors.Search(ctx, queryVec, opts.CodeTopK, vectorstore.Filter{Kind: storage.VectorKindCodeUnit})
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for i, h := range hits {
		nodeID := strings.TrimPrefix(h.Record.ID, storage.VectorKindCodeUnit+":")
		node, err := a.store.GetCodeNode(ctx, nodeID)
		if err != nil {
			continue
		}
		text := fmt.Sprintf("%s %s (%s)\n%s\n%s", node.Type, node.Name, node.FilePath, node.Signature, node.Summary)
		out = append(out, Candidate{
			Source:    sourceCode,
			ID:        node.ID,
			Rank:      i + 1,
			Relevance: h.Score,
			Tokens:    a.tokenizer.CountTokens(text),
			Text:      text,
			Payload:   CodePayload{ID: node.ID, Name: node.Name, FilePath: node.FilePath, Summary: node.Summary, Type: node.Type},
		})
	}
	return out, nil
}

func (a *Assembler) fetchGraphCandidates(ctx context.Context, opts AssembleOptions, queryVec []float32) ([]Candidate, error) {
	result, err := a.retriever.LocalSearch(ctx, opts.Query, queryVec, opts.LocalSearchOpts)
	if err != nil {
		return nil, err
	}

	edgeCount := map[string]int{}
	for _, rel := range result.Relationships {
		edgeCount[rel.SourceEntityID]++
		edgeCount[rel.TargetEntityID]++
	}

	var out []Candidate
	for i, se := range result.Entities {
		e := se.Entity
		text := e.CanonicalName + " (" + e.EntityType + "): " + e.Description
		boost := 1.0 + 0.01*float64(edgeCount[e.ID]) + 0.01*float64(e.MentionCount)
		out = append(out, Candidate{
			Source:    sourceGraph,
			ID:        e.ID,
			Rank:      i + 1,
			Relevance: se.Score * boost,
			Tokens:    a.tokenizer.CountTokens(text),
			Text:      text,
			Payload:   GraphPayload{EntityID: e.ID, EntityName: e.CanonicalName, EntityType: e.EntityType, Description: e.Description},
		})
	}
	return out, nil
}

func (a *Assembler) fetchReportCandidates(ctx context.Context, opts AssembleOptions, queryVec []float32) ([]Candidate, error) {
	globalOpts := opts.GlobalSearchOpts
	if globalOpts.CommunityLevel == 0 {
		globalOpts.CommunityLevel = opts.CommunityLevel
	}
	result, err := a.retriever.GlobalSearch(ctx, queryVec, globalOpts)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for i, hit := range result.Hits {
		text := hit.Report.Title + "\n" + hit.Report.Summary
		out = append(out, Candidate{
			Source:    sourceReport,
			ID:        hit.Report.CommunityID,
			Rank:      i + 1,
			Relevance: hit.Score,
			Tokens:    a.tokenizer.CountTokens(text),
			Text:      text,
			Payload:   GraphPayload{ReportID: hit.Report.CommunityID, ReportTitle: hit.Report.Title, ReportSummary: hit.Report.Summary},
		})
	}
	return out, nil
}
