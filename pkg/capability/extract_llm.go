package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const extractionPrompt = `Extract entities and relationships from the text below.

Return a single JSON object, no prose, no markdown fences, shaped exactly as:
{
  "entities": [{"name": "...", "type": "...", "description": "...", "confidence": 0.0, "mention": "..."}],
  "relationships": [{"source": "...", "target": "...", "type": "...", "description": "...", "strength": 1, "confidence": 0.0}]
}

entityType and relationshipType are open vocabularies; use uppercase words
like PERSON, SYSTEM, LIBRARY, DECISION or CAUSES, IMPLEMENTS, USES.
strength is an integer 1-10 reflecting how central the relationship is.

Text:
%s`

type llmEntity struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Mention     string  `json:"mention"`
}

type llmRelationship struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Strength    int     `json:"strength"`
	Confidence  float64 `json:"confidence"`
}

type llmExtractionPayload struct {
	Entities      []llmEntity       `json:"entities"`
	Relationships []llmRelationship `json:"relationships"`
}

// LLMExtractor extracts entities and relationships via a langchaingo chat
// model, per spec §4.5 step 2 ("Extract entities and relationships from
// memory content via an LLM capability"). When llm is nil, Extract returns
// ErrNoCapability so callers fall back to the heuristic extractor instead of
// treating the absence as a hard failure.
type LLMExtractor struct {
	llm llms.Model
}

// NewLLMExtractor wraps a configured langchaingo model. Pass nil to build an
// Extractor that always reports ErrNoCapability (no LLM configured).
func NewLLMExtractor(model llms.Model) *LLMExtractor {
	return &LLMExtractor{llm: model}
}

func (e *LLMExtractor) Extract(ctx context.Context, content string) (ExtractionResult, error) {
	if e.llm == nil {
		return ExtractionResult{}, ErrNoCapability
	}

	resp, err := e.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(extractionPrompt, content)),
	})
	if err != nil {
		return ExtractionResult{}, &ExtractionError{Cause: err}
	}
	if len(resp.Choices) == 0 {
		return ExtractionResult{}, &ExtractionError{Cause: fmt.Errorf("empty LLM response")}
	}

	var payload llmExtractionPayload
	if err := json.Unmarshal([]byte(cleanJSON(resp.Choices[0].Content)), &payload); err != nil {
		return ExtractionResult{}, &ExtractionError{Cause: fmt.Errorf("parse extraction JSON: %w", err)}
	}

	out := ExtractionResult{
		Entities:      make([]ExtractedEntity, 0, len(payload.Entities)),
		Relationships: make([]ExtractedRelationship, 0, len(payload.Relationships)),
	}
	for _, e := range payload.Entities {
		if e.Name == "" {
			continue
		}
		out.Entities = append(out.Entities, ExtractedEntity{
			CanonicalName: e.Name,
			EntityType:    strings.ToUpper(e.Type),
			Description:   e.Description,
			Confidence:    clamp01(e.Confidence),
			MentionText:   e.Mention,
		})
	}
	for _, r := range payload.Relationships {
		if r.Source == "" || r.Target == "" {
			continue
		}
		out.Relationships = append(out.Relationships, ExtractedRelationship{
			Source:      r.Source,
			Target:      r.Target,
			Type:        strings.ToUpper(r.Type),
			Description: r.Description,
			Strength:    clampStrength(r.Strength),
			Confidence:  clamp01(r.Confidence),
		})
	}
	return out, nil
}

// cleanJSON strips markdown code fences some chat models wrap JSON output in.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampStrength(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
