package chunk

import (
	"fmt"
	"strings"
)

// Chunk is a piece of markdown text carrying the provenance spec §4.3
// requires: the line range it covers, the header breadcrumb it falls under,
// and flags describing what it contains.
type Chunk struct {
	Content        string
	StartLine      int // 1-indexed, inclusive
	EndLine        int // 1-indexed, inclusive
	Headers        []string
	Level          int
	HasFrontmatter bool
	HasCodeBlock   bool
	Tokens         int
}

// MarkdownOptions configures the markdown chunker.
type MarkdownOptions struct {
	MaxTokens int
	Overlap   int
	// PrependBreadcrumb adds an HTML comment with the header breadcrumb to any
	// chunk that doesn't carry its own header line, per spec §4.3's optional
	// context-prepending behaviour.
	PrependBreadcrumb bool
}

type markdownSection struct {
	headers        []string
	level          int
	startLine      int // 1-indexed
	lines          []string
	hasFrontmatter bool
}

// ChunkMarkdown parses markdown into header-hierarchy sections, respecting
// frontmatter and fenced code blocks, then re-splits any section exceeding
// the token budget. Every input line appears in exactly one chunk and no
// chunk splits a fenced code block.
func ChunkMarkdown(text string, opts MarkdownOptions) []Chunk {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}
	tok := NewTokenizer()

	lines := strings.Split(text, "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}

	sections := splitSections(lines)

	var chunks []Chunk
	for _, sec := range sections {
		chunks = append(chunks, splitSection(sec, opts, tok)...)
	}
	return chunks
}

// splitSections walks the document top to bottom, tracking fenced-code-block
// state so a "#" inside a code fence is never mistaken for a heading, and
// grouping consecutive lines under the most recent heading breadcrumb.
func splitSections(lines []string) []*markdownSection {
	var sections []*markdownSection
	var breadcrumb []string
	inFence := false
	var fenceMarker string

	cur := &markdownSection{startLine: 1}
	flush := func(nextLine int) {
		if len(cur.lines) > 0 {
			sections = append(sections, cur)
		}
		cur = &markdownSection{startLine: nextLine, headers: append([]string(nil), breadcrumb...)}
	}

	lineNo := 0
	// Frontmatter: a leading "---" block before any content.
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		end := -1
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				end = i
				break
			}
		}
		if end > 0 {
			cur.hasFrontmatter = true
			for i := 0; i <= end; i++ {
				cur.lines = append(cur.lines, lines[i])
			}
			lineNo = end + 1
		}
	}

	for i := lineNo; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if isFenceDelimiter(trimmed) {
			if !inFence {
				inFence = true
				fenceMarker = fenceToken(trimmed)
			} else if fenceToken(trimmed) == fenceMarker {
				inFence = false
			}
			cur.lines = append(cur.lines, line)
			continue
		}

		if !inFence {
			if level, title := headingLevel(line); level > 0 {
				flush(i + 1)
				breadcrumb = truncateBreadcrumb(breadcrumb, level)
				breadcrumb = append(breadcrumb, title)
				cur.headers = append([]string(nil), breadcrumb...)
				cur.level = level
				cur.lines = append(cur.lines, line)
				continue
			}
		}

		cur.lines = append(cur.lines, line)
	}
	if len(cur.lines) > 0 {
		sections = append(sections, cur)
	}
	return sections
}

func truncateBreadcrumb(breadcrumb []string, level int) []string {
	if level-1 < len(breadcrumb) {
		return breadcrumb[:level-1]
	}
	out := make([]string, level-1)
	copy(out, breadcrumb)
	return out
}

func headingLevel(line string) (int, string) {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "#") {
		return 0, ""
	}
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, ""
	}
	if level < len(trimmed) && trimmed[level] != ' ' && trimmed[level] != '\t' {
		return 0, "" // e.g. "#tag", not a heading
	}
	return level, strings.TrimSpace(trimmed[level:])
}

func isFenceDelimiter(trimmed string) bool {
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

func fenceToken(trimmed string) string {
	if strings.HasPrefix(trimmed, "```") {
		return "```"
	}
	return "~~~"
}

// splitSection emits one chunk per section if it fits the budget, otherwise
// re-splits per spec §4.3: fenced blocks stay atomic, then line packing, then
// token packing for individual oversized lines.
func splitSection(sec *markdownSection, opts MarkdownOptions, tok *Tokenizer) []Chunk {
	full := strings.Join(sec.lines, "\n")
	hasCode := sectionHasCodeBlock(sec.lines)

	if tok.FitsInTokenBudget(full, opts.MaxTokens) {
		return []Chunk{newChunk(sec, full, hasCode, opts, tok)}
	}

	blocks := splitIntoBlocks(sec.lines)

	var chunks []Chunk
	var bufLines []string
	bufStart := sec.startLine
	lineCursor := sec.startLine

	flushBuf := func(endLine int) {
		if len(bufLines) == 0 {
			return
		}
		content := strings.Join(bufLines, "\n")
		chunks = append(chunks, Chunk{
			Content:        maybePrepend(sec, content, opts),
			StartLine:      bufStart,
			EndLine:        endLine,
			Headers:        sec.headers,
			Level:          sec.level,
			HasFrontmatter: sec.hasFrontmatter,
			HasCodeBlock:   false,
			Tokens:         tok.CountTokens(content),
		})
		bufLines = nil
	}

	for _, b := range blocks {
		blockText := strings.Join(b.lines, "\n")
		blockEnd := lineCursor + len(b.lines) - 1

		if b.isFence {
			flushBuf(lineCursor - 1)
			bufStart = lineCursor
			if tok.FitsInTokenBudget(blockText, opts.MaxTokens) {
				// Atomic fence that fits: its own chunk.
				chunks = append(chunks, Chunk{
					Content:        maybePrepend(sec, blockText, opts),
					StartLine:      lineCursor,
					EndLine:        blockEnd,
					Headers:        sec.headers,
					Level:          sec.level,
					HasFrontmatter: sec.hasFrontmatter && lineCursor == sec.startLine,
					HasCodeBlock:   true,
					Tokens:         tok.CountTokens(blockText),
				})
			} else {
				// Oversized fence: emitted whole anyway — never split a code block.
				chunks = append(chunks, Chunk{
					Content:        maybePrepend(sec, blockText, opts),
					StartLine:      lineCursor,
					EndLine:        blockEnd,
					Headers:        sec.headers,
					Level:          sec.level,
					HasCodeBlock:   true,
					Tokens:         tok.CountTokens(blockText),
				})
			}
			bufStart = blockEnd + 1
			lineCursor = blockEnd + 1
			continue
		}

		for _, line := range b.lines {
			candidate := append(append([]string(nil), bufLines...), line)
			if len(bufLines) > 0 && !tok.FitsInTokenBudget(strings.Join(candidate, "\n"), opts.MaxTokens) {
				flushBuf(lineCursor - 1)
				bufStart = lineCursor
			}
			if !tok.FitsInTokenBudget(line, opts.MaxTokens) {
				// A single line exceeds the budget: token-level packing.
				flushBuf(lineCursor - 1)
				sub := tok.SplitIntoTokenChunks(line, opts.MaxTokens, opts.Overlap)
				for _, s := range sub {
					chunks = append(chunks, Chunk{
						Content:      maybePrepend(sec, s, opts),
						StartLine:    lineCursor,
						EndLine:      lineCursor,
						Headers:      sec.headers,
						Level:        sec.level,
						HasCodeBlock: false,
						Tokens:       tok.CountTokens(s),
					})
				}
				bufStart = lineCursor + 1
				lineCursor++
				continue
			}
			bufLines = append(bufLines, line)
			lineCursor++
		}
	}
	flushBuf(lineCursor - 1)

	return chunks
}

type block struct {
	lines   []string
	isFence bool
}

func splitIntoBlocks(lines []string) []block {
	var blocks []block
	var cur []string
	inFence := false
	var marker string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isFenceDelimiter(trimmed) {
			if !inFence {
				if len(cur) > 0 {
					blocks = append(blocks, block{lines: cur})
					cur = nil
				}
				inFence = true
				marker = fenceToken(trimmed)
				cur = append(cur, line)
			} else if fenceToken(trimmed) == marker {
				cur = append(cur, line)
				blocks = append(blocks, block{lines: cur, isFence: true})
				cur = nil
				inFence = false
			} else {
				cur = append(cur, line)
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		blocks = append(blocks, block{lines: cur, isFence: inFence})
	}
	return blocks
}

func sectionHasCodeBlock(lines []string) bool {
	for _, l := range lines {
		if isFenceDelimiter(strings.TrimSpace(l)) {
			return true
		}
	}
	return false
}

func newChunk(sec *markdownSection, content string, hasCode bool, opts MarkdownOptions, tok *Tokenizer) Chunk {
	return Chunk{
		Content:        maybePrepend(sec, content, opts),
		StartLine:      sec.startLine,
		EndLine:        sec.startLine + len(sec.lines) - 1,
		Headers:        sec.headers,
		Level:          sec.level,
		HasFrontmatter: sec.hasFrontmatter,
		HasCodeBlock:   hasCode,
		Tokens:         tok.CountTokens(content),
	}
}

// maybePrepend adds an HTML-comment breadcrumb when the chunk lacks its own
// header line, per spec §4.3's optional context-prepending behaviour.
func maybePrepend(sec *markdownSection, content string, opts MarkdownOptions) string {
	if !opts.PrependBreadcrumb || len(sec.headers) == 0 {
		return content
	}
	if strings.HasPrefix(strings.TrimSpace(content), "#") {
		return content
	}
	breadcrumb := fmt.Sprintf("<!-- %s -->", strings.Join(sec.headers, " > "))
	return breadcrumb + "\n" + content
}
