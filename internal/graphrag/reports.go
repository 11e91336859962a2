package graphrag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/internal/vectorstore"
)

// generateReports composes a title and summary for every community
// (lowest level first), embeds the summary, and garbage-collects report
// vectors for communities no longer present (spec §4.5 step 7).
func (b *Builder) generateReports(ctx context.Context, communities []*storage.Community, opts BuildOptions, stats *BuildStats) error {
	sorted := make([]*storage.Community, len(communities))
	copy(sorted, communities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })

	entityByID := map[string]*storage.Entity{}
	entities, err := b.store.ListEntities(ctx)
	if err != nil {
		return err
	}
	for _, e := range entities {
		entityByID[e.ID] = e
	}

	for _, c := range sorted {
		title, summary := composeCommunityReport(c, entityByID)
		report := &storage.CommunityReport{CommunityID: c.ID, Title: title, Summary: summary}

		if b.embedder != nil {
			vec, err := b.embedder.EmbedQuery(ctx, summary)
			if err == nil {
				vectorID := "graphrag_report_" + c.ID
				if err := b.vectors.Upsert(ctx, vectorstore.Record{
					ID: vectorID, Kind: "graphrag_report", Title: title, Vector: vec,
				}); err == nil {
					report.EmbeddingID = vectorID
				}
			}
		}

		if err := b.store.UpsertCommunityReport(ctx, report, time.Now().Unix()); err != nil {
			return err
		}
		stats.ReportsGenerated++
	}

	return b.gcReportVectors(ctx, sorted)
}

// composeCommunityReport builds a deterministic title/summary from a
// community's constituent entities, since no LLM synthesis call is
// guaranteed to be configured; when an LLM extractor is present, callers
// may prefer its richer synthesis, but this keeps report generation
// available unconditionally per spec §4.5 step 7.
func composeCommunityReport(c *storage.Community, entityByID map[string]*storage.Entity) (string, string) {
	var names []string
	var descriptions []string
	for _, id := range c.EntityIDs {
		e, ok := entityByID[id]
		if !ok {
			continue
		}
		names = append(names, e.CanonicalName)
		if e.Description != "" {
			descriptions = append(descriptions, fmt.Sprintf("%s: %s", e.CanonicalName, e.Description))
		}
	}

	title := strings.Join(names, ", ")
	if len(title) > 80 {
		title = title[:80] + "…"
	}
	if title == "" {
		title = fmt.Sprintf("community-%s", c.ID)
	}

	summary := fmt.Sprintf("Community of %d entities at level %d: %s.\n%s",
		len(c.EntityIDs), c.Level, strings.Join(names, ", "), strings.Join(descriptions, "\n"))
	return title, summary
}

func (b *Builder) gcReportVectors(ctx context.Context, communities []*storage.Community) error {
	live := make(map[string]bool, len(communities))
	for _, c := range communities {
		live["graphrag_report_"+c.ID] = true
	}

	zero := make([]float32, b.embedderDimension())
	hits, err := b.vectors.Search(ctx, zero, 100000, vectorstore.Filter{Kind: "graphrag_report"})
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
