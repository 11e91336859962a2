// Package chunk implements the token-exact chunker and tokenizer (spec §4.3)
// plus a markdown-aware chunker (ChunkMarkdown).
package chunk

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// encodingName is the BPE codec used throughout the engine. cl100k-class BPE
// is the reference codec named by spec §4.3; pkoukk/tiktoken-go ships it
// under this identifier.
const encodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(encodingName)
	})
	return enc, encErr
}

// Tokenizer wraps a byte-pair encoder with the pure functions spec §4.3
// requires. It holds no mutable state beyond the process-wide cached codec,
// so a zero-value Tokenizer is ready to use.
type Tokenizer struct{}

// NewTokenizer returns a Tokenizer backed by the cl100k-class codec.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// CountTokens returns the number of tokens X encodes to. CountTokens("") == 0.
func (Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	e, err := encoding()
	if err != nil {
		return fallbackCount(text)
	}
	return len(e.Encode(text, nil, nil))
}

// TruncateToTokens returns a prefix of text whose token count equals
// min(n, CountTokens(text)). Returns "" for n <= 0.
func (Tokenizer) TruncateToTokens(text string, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	e, err := encoding()
	if err != nil {
		return fallbackTruncate(text, n)
	}
	tokens := e.Encode(text, nil, nil)
	if n >= len(tokens) {
		return text
	}
	return e.Decode(tokens[:n])
}

// SplitIntoTokenChunks tiles the token sequence of text with step
// max(1, maxTokens-overlap). Each chunk decodes to contiguous text; the last
// chunk may be shorter. Non-positive maxTokens or empty text yields nil.
func (Tokenizer) SplitIntoTokenChunks(text string, maxTokens, overlap int) []string {
	if maxTokens <= 0 || text == "" {
		return nil
	}
	e, err := encoding()
	if err != nil {
		return fallbackSplit(text, maxTokens, overlap)
	}
	tokens := e.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil
	}
	step := maxTokens - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, e.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// FitsInTokenBudget reports whether text encodes to at most budget tokens.
func (t Tokenizer) FitsInTokenBudget(text string, budget int) bool {
	return t.CountTokens(text) <= budget
}

// TokenInfo summarizes a piece of text's token footprint.
type TokenInfo struct {
	Tokens     int
	Characters int
	Encoding   string
}

// GetTokenInfo reports the token and character counts for text.
func (t Tokenizer) GetTokenInfo(text string) TokenInfo {
	return TokenInfo{
		Tokens:     t.CountTokens(text),
		Characters: len([]rune(text)),
		Encoding:   encodingName,
	}
}

// fallbackCount, fallbackTruncate, and fallbackSplit approximate the BPE
// codec's behaviour (roughly 4 bytes/token for English prose) when the
// embedded codec tables fail to load. They exist only so the engine degrades
// rather than panics; normal operation never reaches them.
func fallbackCount(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

func fallbackTruncate(text string, n int) string {
	limit := n * 4
	if limit >= len(text) {
		return text
	}
	return text[:limit]
}

func fallbackSplit(text string, maxTokens, overlap int) []string {
	maxChars := maxTokens * 4
	overlapChars := overlap * 4
	step := maxChars - overlapChars
	if step < 1 {
		step = 1
	}
	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + maxChars
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}
