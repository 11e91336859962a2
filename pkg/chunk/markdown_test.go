package chunk

import (
	"strings"
	"testing"
)

func TestChunkMarkdownCoversAllLines(t *testing.T) {
	text := "# Title\n\nSome intro text.\n\n## Section A\n\nContent for A.\n\n## Section B\n\nContent for B.\n"
	chunks := ChunkMarkdown(text, MarkdownOptions{MaxTokens: 512})

	seen := map[int]bool{}
	totalLines := len(strings.Split(text, "\n"))
	for _, c := range chunks {
		for line := c.StartLine; line <= c.EndLine; line++ {
			if seen[line] {
				t.Errorf("line %d appears in more than one chunk", line)
			}
			seen[line] = true
		}
	}
	for i := 1; i <= totalLines; i++ {
		if !seen[i] {
			t.Errorf("line %d is not covered by any chunk", i)
		}
	}
	if len(seen) == 0 {
		t.Fatal("expected at least one line covered")
	}
}

func TestChunkMarkdownNeverSplitsCodeFence(t *testing.T) {
	text := "# Title\n\n```go\nfunc main() {\n\tprintln(\"hi\")\n}\n```\n\nAfter.\n"
	chunks := ChunkMarkdown(text, MarkdownOptions{MaxTokens: 8})

	found := false
	for _, c := range chunks {
		if strings.Contains(c.Content, "```go") {
			found = true
			if !strings.Contains(c.Content, "```\n") && !strings.HasSuffix(strings.TrimRight(c.Content, "\n"), "```") {
				t.Errorf("fence chunk does not contain closing delimiter: %q", c.Content)
			}
			if !c.HasCodeBlock {
				t.Error("expected HasCodeBlock = true for the fence chunk")
			}
		}
	}
	if !found {
		t.Fatal("expected a chunk containing the fenced code block")
	}
}

func TestChunkMarkdownFrontmatter(t *testing.T) {
	text := "---\ntitle: Doc\n---\n\n# Heading\n\nBody.\n"
	chunks := ChunkMarkdown(text, MarkdownOptions{MaxTokens: 512})
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	if !chunks[0].HasFrontmatter {
		t.Error("expected first chunk to carry HasFrontmatter = true")
	}
}

func TestChunkMarkdownBreadcrumbPrepend(t *testing.T) {
	text := "# Top\n\n## Sub\n\n" + strings.Repeat("word ", 200) + "\n"
	chunks := ChunkMarkdown(text, MarkdownOptions{MaxTokens: 20, PrependBreadcrumb: true})
	if len(chunks) < 2 {
		t.Fatalf("expected re-split into multiple chunks, got %d", len(chunks))
	}
	foundBreadcrumb := false
	for _, c := range chunks {
		if strings.HasPrefix(c.Content, "<!--") {
			foundBreadcrumb = true
		}
	}
	if !foundBreadcrumb {
		t.Error("expected at least one chunk with a prepended breadcrumb comment")
	}
}

func TestChunkMarkdownEmpty(t *testing.T) {
	if got := ChunkMarkdown("", MarkdownOptions{MaxTokens: 512}); got != nil {
		t.Errorf("ChunkMarkdown(\"\") = %v, want nil", got)
	}
}
