package storage

// Memory is a user/agent-authored note (spec §3 Memory).
type Memory struct {
	ID               string
	Type             string // decision | solution | pattern | architecture | note
	Title            string
	Content          string
	Tags             []string
	RelatedFiles     []string
	Importance       float64 // [0,1]
	Status           string  // pending | approved
	QdrantID         string
	CreatedAt        int64
	AccessedAt       int64
	LastRefreshedAt  *int64
}

const (
	MemoryStatusPending  = "pending"
	MemoryStatusApproved = "approved"
)

// CodeNode is a symbol or file-module in the repo (spec §3 CodeNode).
type CodeNode struct {
	ID                 string
	Type               string // function | class | interface | type | module
	Name               string
	FilePath           string
	StartLine          *int
	EndLine            *int
	Signature          string
	Summary            string
	SummaryConfidence  float64
	NeedsAISummary     bool
	Metadata           map[string]any
	CreatedAt          int64
	UpdatedAt          int64
}

// CodeEdge is a directed relation between code nodes (spec §3 CodeEdge).
type CodeEdge struct {
	ID       string
	FromNode string
	ToNode   string
	EdgeType string // calls | imports | implements | extends | references
	Metadata map[string]any
}

// FileHash is a content fingerprint keyed by path (spec §3 FileHash).
type FileHash struct {
	Path        string
	ContentHash string
	UpdatedAt   int64
}

// Entity is a canonicalized named thing extracted from memory content
// (spec §3 Entity).
type Entity struct {
	ID                   string
	CanonicalName        string
	EntityType           string
	Description          string
	MentionCount         int
	ExtractionConfidence float64
	EmbeddingID          string
	CreatedAt            int64
	UpdatedAt            int64
}

// Relationship is a weighted directed edge between entities (spec §3
// Relationship).
type Relationship struct {
	ID               string
	SourceEntityID   string
	TargetEntityID   string
	RelationshipType string
	Description      string
	Strength         int // [1,10]
	CreatedAt        int64
	UpdatedAt        int64
}

// Community is a cluster of entities at some hierarchy level (spec §3
// Community).
type Community struct {
	ID        string
	Level     int
	ParentID  string
	EntityIDs []string
	CreatedAt int64
	UpdatedAt int64
}

// CommunityReport is a synthesized title+summary+embedding for a community
// (spec §3 CommunityReport).
type CommunityReport struct {
	CommunityID string
	Title       string
	Summary     string
	EmbeddingID string
	CreatedAt   int64
	UpdatedAt   int64
}

// Suggestion statuses shared by MemoryRelation and CrossLayerRelation,
// gated by the storage mode (manual | suggested | automatic) per the
// supplemented original_source/ feature in SPEC_FULL.md.
const (
	SuggestionStatusApplied  = "applied"
	SuggestionStatusPending  = "pending"
	SuggestionStatusRejected = "rejected"
)

// MemoryRelation is a typed directed edge memory -> memory (spec §3).
type MemoryRelation struct {
	ID               string
	SourceMemoryID   string
	TargetMemoryID   string
	RelationType     string
	Confidence       float64
	DetectionMethod  string
	Status           string
	CreatedAt        int64
}

// CrossLayerRelation is a typed directed edge memory -> code node (spec §3).
type CrossLayerRelation struct {
	ID              string
	MemoryID        string
	CodeNodeID      string
	RelationType    string
	Confidence      float64
	DetectionMethod string
	Status          string
	CreatedAt       int64
}

// VectorPayload is stored with every vector (spec §3 VectorPayload). The
// kind discriminator replaces the teacher's duck-typed metadata map, per
// Design Notes' "tagged variant with a fixed set of kind discriminators".
type VectorPayload struct {
	VectorID     string
	MemoryID     string // empty for graphrag_entity/graphrag_report vectors
	Kind         string // memory | code_unit | graphrag_entity | graphrag_report
	Title        string
	Tags         []string
	RelatedFiles []string
	Importance   float64
	Extra        map[string]any
}

const (
	VectorKindMemory         = "memory"
	VectorKindCodeUnit       = "code_unit"
	VectorKindGraphragEntity = "graphrag_entity"
	VectorKindGraphragReport = "graphrag_report"
)
