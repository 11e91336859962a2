package chunk

import "testing"

func TestCountTokensEmpty(t *testing.T) {
	tok := NewTokenizer()
	if got := tok.CountTokens(""); got != 0 {
		t.Errorf("CountTokens(\"\") = %d, want 0", got)
	}
}

func TestTruncateToTokensInvariant(t *testing.T) {
	tok := NewTokenizer()
	text := "the quick brown fox jumps over the lazy dog repeatedly and often"
	total := tok.CountTokens(text)

	for _, n := range []int{0, -1, 1, 3, total, total + 50} {
		truncated := tok.TruncateToTokens(text, n)
		want := n
		if want > total {
			want = total
		}
		if want < 0 {
			want = 0
		}
		if got := tok.CountTokens(truncated); got != want {
			t.Errorf("CountTokens(TruncateToTokens(X, %d)) = %d, want %d", n, got, want)
		}
	}
}

func TestTruncateToTokensNonPositive(t *testing.T) {
	tok := NewTokenizer()
	if got := tok.TruncateToTokens("hello world", 0); got != "" {
		t.Errorf("TruncateToTokens(X, 0) = %q, want empty", got)
	}
	if got := tok.TruncateToTokens("hello world", -5); got != "" {
		t.Errorf("TruncateToTokens(X, -5) = %q, want empty", got)
	}
}

func TestSplitIntoTokenChunksEmptyInputs(t *testing.T) {
	tok := NewTokenizer()
	if got := tok.SplitIntoTokenChunks("", 10, 2); got != nil {
		t.Errorf("SplitIntoTokenChunks(\"\", ...) = %v, want nil", got)
	}
	if got := tok.SplitIntoTokenChunks("hello", 0, 2); got != nil {
		t.Errorf("SplitIntoTokenChunks(X, 0, ...) = %v, want nil", got)
	}
}

func TestSplitIntoTokenChunksCoversWholeText(t *testing.T) {
	tok := NewTokenizer()
	text := "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua."
	chunks := tok.SplitIntoTokenChunks(text, 8, 0)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	var reconstructed string
	for _, c := range chunks {
		reconstructed += c
	}
	if tok.CountTokens(reconstructed) != tok.CountTokens(text) {
		t.Errorf("reconstructed token count = %d, want %d", tok.CountTokens(reconstructed), tok.CountTokens(text))
	}
}

func TestSplitIntoTokenChunksLastChunkShorter(t *testing.T) {
	tok := NewTokenizer()
	text := "one two three four five six seven"
	chunks := tok.SplitIntoTokenChunks(text, 4, 1)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	last := chunks[len(chunks)-1]
	if tok.CountTokens(last) > 4 {
		t.Errorf("last chunk token count = %d, want <= 4", tok.CountTokens(last))
	}
}

func TestFitsInTokenBudget(t *testing.T) {
	tok := NewTokenizer()
	if !tok.FitsInTokenBudget("short", 100) {
		t.Error("FitsInTokenBudget(short text, 100) = false, want true")
	}
	long := ""
	for i := 0; i < 500; i++ {
		long += "word "
	}
	if tok.FitsInTokenBudget(long, 10) {
		t.Error("FitsInTokenBudget(long text, 10) = true, want false")
	}
}
