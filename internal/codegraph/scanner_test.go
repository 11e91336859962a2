package codegraph

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return full
}

func TestDiscoverExcludesOverrideIncludes(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "main.go", "package main\nfunc main() {}\n")
	writeTestFile(t, root, "vendor/dep/dep.go", "package dep\n")

	s := NewScanner(nil, 0)
	s.Include = []string{"*.go", "vendor/dep/dep.go"}
	result, err := s.Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	var paths []string
	for _, f := range result.Files {
		paths = append(paths, f.RelPath)
	}
	for _, p := range paths {
		if filepath.Dir(p) == "vendor/dep" || p == "vendor/dep/dep.go" {
			t.Fatalf("expected vendor/dep/dep.go excluded, got files: %v", paths)
		}
	}
	found := false
	for _, p := range paths {
		if p == "main.go" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected main.go discovered, got %v", paths)
	}
}

func TestDiscoverSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "big.go", "package main\n")

	s := NewScanner(nil, 0)
	s.MaxFileSize = 1 // smaller than the written content

	result, err := s.Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(result.Files) != 0 {
		t.Fatalf("expected oversized file skipped, got %v", result.Files)
	}
}

func TestHashFileStableAcrossCalls(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "a.go", "package a\n")

	h1, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	h2, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected stable hash, got %q then %q", h1, h2)
	}
	if h1 == "" {
		t.Fatalf("expected non-empty hash")
	}
}

func TestShouldExcludeHiddenDirectories(t *testing.T) {
	s := NewScanner(nil, 0)
	if !s.ShouldExclude("/proj/.idea", ".idea") {
		t.Fatalf("expected .idea excluded as a hidden directory")
	}
	if s.ShouldExclude("/proj/.github", ".github") {
		t.Fatalf("expected .github allowed despite leading dot")
	}
}
