package retriever

import (
	"context"

	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/internal/vectorstore"
	"github.com/rcae/rcae/pkg/chunk"
)

// GlobalSearchOptions configures GlobalSearch (spec §4.6 "Global
// (community-centric)").
type GlobalSearchOptions struct {
	CommunityLevel int
	TopK           int
}

func (o GlobalSearchOptions) topK() int {
	if o.TopK <= 0 {
		return 5
	}
	return o.TopK
}

// GlobalSearchHit is one ranked community report match.
type GlobalSearchHit struct {
	Report    *storage.CommunityReport
	Community *storage.Community
	Score     float64
}

// GlobalSearchResult composes the matched reports with a token-usage
// estimate for the synthesized answer shell (spec §4.6 step 2).
type GlobalSearchResult struct {
	Hits            []GlobalSearchHit
	EstimatedTokens int
}

// GlobalSearch vector-searches community reports and returns the top-k at
// the configured level, along with a token-usage estimate for a downstream
// synthesized answer.
func (r *Retriever) GlobalSearch(ctx context.Context, queryVec []float32, opts GlobalSearchOptions) (*GlobalSearchResult, error) {
	hits, err := r.vectors.Search(ctx, queryVec, opts.topK()*4, vectorstore.Filter{Kind: "graphrag_report"})
	if err != nil {
		return nil, err
	}

	tokenizer := chunk.NewTokenizer()
	result := &GlobalSearchResult{}
	for _, h := range hits {
		if deadlineExceeded(ctx) {
			return nil, ctx.Err()
		}
		communityID := communityIDFromVectorID(h.Record.ID)
		community, err := r.store.GetCommunity(ctx, communityID)
		if err != nil {
			continue
		}
		if opts.CommunityLevel >= 0 && community.Level != opts.CommunityLevel {
			continue
		}
		report, err := r.store.GetCommunityReport(ctx, communityID)
		if err != nil {
			continue
		}

		result.Hits = append(result.Hits, GlobalSearchHit{Report: report, Community: community, Score: h.Score})
		result.EstimatedTokens += tokenizer.CountTokens(report.Title + "\n" + report.Summary)

		if len(result.Hits) >= opts.topK() {
			break
		}
	}
	return result, nil
}

func communityIDFromVectorID(vectorID string) string {
	const prefix = "graphrag_report_"
	if len(vectorID) > len(prefix) && vectorID[:len(prefix)] == prefix {
		return vectorID[len(prefix):]
	}
	return vectorID
}
