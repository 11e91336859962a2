package assembler

import "github.com/rcae/rcae/internal/retriever"

// Template selects how Assemble renders packed candidates into context text
// (spec §4.7 step 5: "one of {default, compact, detailed} templates").
type Template string

const (
	TemplateDefault  Template = "default"
	TemplateCompact  Template = "compact"
	TemplateDetailed Template = "detailed"
)

// SectionFractionsOpt allocates the token budget across the four candidate
// sources (spec §4.7 step 4). Zero-valued fields fall back to the spec's
// stated defaults: memories 45%, code 35%, graph 15%, reports 5%.
type SectionFractionsOpt struct {
	Memories float64
	Code     float64
	Graph    float64
	Reports  float64
}

// AssembleOptions configures one Assemble call.
type AssembleOptions struct {
	Query            string
	Budget           int // total token budget, required
	Template         Template
	Fractions        SectionFractionsOpt
	MemoryTopK       int
	CodeTopK         int
	CommunityLevel   int
	IncludeReports   bool
	SourceWeights    map[string]float64 // per-source score-blend weights, keyed by Candidate.Source
	LocalSearchOpts  retriever.LocalSearchOptions
	GlobalSearchOpts retriever.GlobalSearchOptions
}

func (o AssembleOptions) withDefaults() AssembleOptions {
	if o.Template == "" {
		o.Template = TemplateDefault
	}
	if o.Budget <= 0 {
		o.Budget = 4000
	}
	if o.MemoryTopK <= 0 {
		o.MemoryTopK = 10
	}
	if o.CodeTopK <= 0 {
		o.CodeTopK = 10
	}
	if o.SourceWeights == nil {
		o.SourceWeights = map[string]float64{
			sourceMemory: 1.0,
			sourceCode:   1.0,
			sourceGraph:  1.0,
			sourceReport: 1.0,
		}
	}
	o.IncludeReports = o.IncludeReports || o.GlobalSearchOpts.TopK > 0
	return o
}

// SectionFractions resolves the configured fractions, defaulting unset ones
// to the spec's stated split.
func (o AssembleOptions) SectionFractions() map[string]float64 {
	f := o.Fractions
	get := func(v, def float64) float64 {
		if v <= 0 {
			return def
		}
		return v
	}
	return map[string]float64{
		sourceMemory: get(f.Memories, 0.45),
		sourceCode:   get(f.Code, 0.35),
		sourceGraph:  get(f.Graph, 0.15),
		sourceReport: get(f.Reports, 0.05),
	}
}

const (
	sourceMemory = "memory"
	sourceCode   = "code"
	sourceGraph  = "graph"
	sourceReport = "report"
)

// MemoryPayload is the typed payload for a memory{…} evidence item.
type MemoryPayload struct {
	ID      string
	Title   string
	Content string
	Tags    []string
}

// CodePayload is the typed payload for a code{…} evidence item.
type CodePayload struct {
	ID       string
	Name     string
	FilePath string
	Summary  string
	Type     string
}

// GraphPayload is the typed payload for a graph{…} evidence item — either an
// entity (from the local-search expansion) or a community report.
type GraphPayload struct {
	EntityID      string
	EntityName    string
	EntityType    string
	Description   string
	ReportID      string
	ReportTitle   string
	ReportSummary string
}

// Candidate is one item surfaced by a fetch stage, prior to score-blending
// and budget packing (spec §4.7 step 2: "{source, id, rank, relevance,
// tokens, payload}").
type Candidate struct {
	Source    string
	ID        string
	Rank      int
	Relevance float64
	Tokens    int
	Text      string // rendered text this candidate would contribute if included
	Payload   any
}

// Evidence is the deterministic, per-candidate record of an assembly pass
// (spec §4.7 step 5).
type Evidence struct {
	ID         string
	Source     string
	Rank       int
	Relevance  float64
	Tokens     int
	Included   bool
	Reason     string
	QueryTerms []string
	Payload    any
}

// AssembleResult is the final (context, evidence) pair (spec §4.7
// "Responsibility").
type AssembleResult struct {
	Context  string
	Evidence []Evidence
}
