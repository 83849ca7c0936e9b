package types

// Complexity classifies a function by a cyclomatic-complexity-like count.
// It is a ranking aid, not a precise software metric.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// ComplexityFromCount maps a raw branch count to a complexity class.
func ComplexityFromCount(count int) Complexity {
	switch {
	case count <= 5:
		return ComplexityLow
	case count <= 10:
		return ComplexityMedium
	default:
		return ComplexityHigh
	}
}

// Visibility tags for functions and methods.
const (
	VisibilityPublic    = "public"
	VisibilityPrivate   = "private"
	VisibilityProtected = "protected"
)

// CodeFunction represents a function or method extracted from a file.
type CodeFunction struct {
	Name       string
	StartLine  int
	EndLine    int
	Parameters []string
	ReturnType string
	Docstring  string
	// Calls holds called-function names, best effort; never fully resolved.
	Calls      []string
	Complexity Complexity
	IsAsync    bool
	IsStatic   bool
	Visibility string
}

// CodeClass represents a class (or, for Go, a struct type with its
// receiver methods) extracted from a file.
type CodeClass struct {
	Name       string
	StartLine  int
	EndLine    int
	Methods    []CodeFunction
	Properties []string
	Bases      []string
	Implements []string
	Docstring  string
	IsAbstract bool
}

// CodeImport represents an import statement.
type CodeImport struct {
	Module string
	// Items lists the specific names imported; empty for whole-module or
	// side-effect imports.
	Items      []string
	Alias      string
	IsRelative bool
	Line       int
}

// Interface represents an interface or type-alias declaration. Exact
// membership is not extracted; the name and line are enough for indexing.
type Interface struct {
	Name string
	Line int
	Kind string // "interface" or "type"
}

// CodeStructure is the complete structural summary for one file.
type CodeStructure struct {
	FilePath        string
	Language        Language
	Functions       []CodeFunction
	Classes         []CodeClass
	Imports         []CodeImport
	Exports         []string
	Interfaces      []Interface
	TotalLines      int
	ComplexityScore float64
	EntryPoints     []string
}

// StubStructure returns the minimal structure used for unsupported
// languages and unrecoverable per-file analysis failures. Line ranges and
// symbol lists are empty; only the line count is populated.
func StubStructure(filePath string, lang Language, totalLines int) *CodeStructure {
	return &CodeStructure{
		FilePath:   filePath,
		Language:   lang,
		TotalLines: totalLines,
	}
}

// ClampLines forces a symbol's line range into [1, totalLines], falling
// back to the declaration line when the end is unknown.
func ClampLines(start, end, totalLines int) (int, int) {
	if start < 1 {
		start = 1
	}
	if totalLines > 0 && start > totalLines {
		start = totalLines
	}
	if end < start {
		end = start
	}
	if totalLines > 0 && end > totalLines {
		end = totalLines
	}
	return start, end
}
