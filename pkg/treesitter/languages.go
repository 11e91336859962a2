// Package treesitter provides language mappings and grammar access for tree-sitter parsing.
package treesitter

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageInfo holds metadata about a supported language
type LanguageInfo struct {
	// Language identifier
	Language Language

	// Human-readable name
	Name string

	// File extensions (without dot)
	Extensions []string

	// Tree-sitter language getter
	Grammar func() *sitter.Language
}

// supportedLanguages maps Language enum to LanguageInfo, restricted to the
// languages the Code Graph Builder's extractors and import-edge resolution
// actually exercise (Go, TypeScript, JavaScript, Rust, Java, Python).
var supportedLanguages = map[Language]LanguageInfo{
	LanguageGo: {
		Language:   LanguageGo,
		Name:       "Go",
		Extensions: []string{"go"},
		Grammar:    golang.GetLanguage,
	},
	LanguageTypeScript: {
		Language:   LanguageTypeScript,
		Name:       "TypeScript",
		Extensions: []string{"ts", "mts", "cts"},
		Grammar:    typescript.GetLanguage,
	},
	LanguageJavaScript: {
		Language:   LanguageJavaScript,
		Name:       "JavaScript",
		Extensions: []string{"js", "mjs", "cjs", "jsx"},
		Grammar:    javascript.GetLanguage,
	},
	LanguageRust: {
		Language:   LanguageRust,
		Name:       "Rust",
		Extensions: []string{"rs"},
		Grammar:    rust.GetLanguage,
	},
	LanguageJava: {
		Language:   LanguageJava,
		Name:       "Java",
		Extensions: []string{"java"},
		Grammar:    java.GetLanguage,
	},
	LanguagePython: {
		Language:   LanguagePython,
		Name:       "Python",
		Extensions: []string{"py", "pyw", "pyi"},
		Grammar:    python.GetLanguage,
	},
}

// extensionToLanguage maps file extensions to Language
var extensionToLanguage map[string]Language

func init() {
	extensionToLanguage = make(map[string]Language)

	for lang, info := range supportedLanguages {
		for _, ext := range info.Extensions {
			extensionToLanguage[ext] = lang
		}
	}
}

// GetLanguageByExtension returns the Language for a file extension (without dot)
func GetLanguageByExtension(ext string) (Language, bool) {
	lang, ok := extensionToLanguage[ext]
	return lang, ok
}

// GetLanguageInfo returns the LanguageInfo for a Language
func GetLanguageInfo(lang Language) (LanguageInfo, bool) {
	info, ok := supportedLanguages[lang]
	return info, ok
}

// GetGrammar returns the tree-sitter grammar for a Language
func GetGrammar(lang Language) (*sitter.Language, bool) {
	info, ok := GetLanguageInfo(lang)
	if !ok {
		return nil, false
	}
	return info.Grammar(), true
}

// IsLanguageSupported returns true if the language is supported
func IsLanguageSupported(lang Language) bool {
	_, ok := GetLanguageInfo(lang)
	return ok
}

// GetSupportedLanguages returns all supported language identifiers
func GetSupportedLanguages() []Language {
	languages := make([]Language, 0, len(supportedLanguages))
	for lang := range supportedLanguages {
		languages = append(languages, lang)
	}
	return languages
}

// GetSupportedExtensions returns all supported file extensions
func GetSupportedExtensions() []string {
	extensions := make([]string, 0, len(extensionToLanguage))
	for ext := range extensionToLanguage {
		extensions = append(extensions, ext)
	}
	return extensions
}
