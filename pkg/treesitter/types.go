// Package treesitter provides tree-sitter based parsing and AST extraction for code indexing.
package treesitter

import (
	"time"
)

// SymbolType represents the type of a code symbol
type SymbolType string

const (
	SymbolTypeClass       SymbolType = "class"
	SymbolTypeStruct      SymbolType = "struct"
	SymbolTypeInterface   SymbolType = "interface"
	SymbolTypeTrait       SymbolType = "trait"
	SymbolTypeMethod      SymbolType = "method"
	SymbolTypeFunction    SymbolType = "function"
	SymbolTypeConstructor SymbolType = "constructor"
	SymbolTypeProperty    SymbolType = "property"
	SymbolTypeField       SymbolType = "field"
	SymbolTypeVariable    SymbolType = "variable"
	SymbolTypeConstant    SymbolType = "constant"
	SymbolTypeEnum        SymbolType = "enum"
	SymbolTypeEnumMember  SymbolType = "enum_member"
	SymbolTypeTypeAlias   SymbolType = "type_alias"
	SymbolTypeNamespace   SymbolType = "namespace"
	SymbolTypeModule      SymbolType = "module"
	SymbolTypePackage     SymbolType = "package"
)

// Language represents a supported programming language
type Language string

const (
	LanguageGo         Language = "go"
	LanguageTypeScript Language = "typescript"
	LanguageJavaScript Language = "javascript"
	LanguageRust       Language = "rust"
	LanguageJava       Language = "java"
	LanguagePython     Language = "python"
)

// CodeSymbol represents a parsed code symbol from source code
type CodeSymbol struct {
	// Unique identifier for the symbol
	ID string `json:"id"`

	// Project this symbol belongs to
	ProjectID string `json:"project_id"`

	// Relative file path within the project
	FilePath string `json:"file_path"`

	// Programming language
	Language Language `json:"language"`

	// Type of symbol (class, method, function, etc.)
	SymbolType SymbolType `json:"symbol_type"`

	// Name of the symbol
	Name string `json:"name"`

	// Hierarchical path within the file (e.g., "/MyClass/myMethod")
	NamePath string `json:"name_path"`

	// Location in source file
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	StartByte int `json:"start_byte"`
	EndByte   int `json:"end_byte"`

	// Source code content
	SourceCode string `json:"source_code,omitempty"`

	// Signature (for methods/functions)
	Signature string `json:"signature,omitempty"`

	// Documentation string
	DocString string `json:"doc_string,omitempty"`

	// Vector embedding (populated later during indexing)
	Embedding []float32 `json:"embedding,omitempty"`

	// Parent symbol ID (for nested symbols like methods in classes)
	ParentID *string `json:"parent_id,omitempty"`

	// Additional metadata
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Children symbols (populated when fetching with depth)
	Children []*CodeSymbol `json:"children,omitempty"`
}

// ParseResult represents the result of parsing a source file
type ParseResult struct {
	// The file that was parsed
	FilePath string `json:"file_path"`

	// Detected language
	Language Language `json:"language"`

	// Extracted symbols
	Symbols []*CodeSymbol `json:"symbols"`

	// Parse errors (if any)
	Errors []ParseError `json:"errors,omitempty"`
}

// ParseError represents a parsing error
type ParseError struct {
	// Error message
	Message string `json:"message"`

	// Location
	Line   int `json:"line"`
	Column int `json:"column"`
}

