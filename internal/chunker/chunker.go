// Package chunker converts per-file code structures into retrievable
// chunks. Chunk content is a synthesized summary of the symbol, built for
// embedding quality; line ranges and metadata point back at the source.
package chunker

import (
	"fmt"
	"strings"

	"coderag/pkg/types"
)

// DefaultSmallFileThreshold is the line count under which a whole-file
// chunk is emitted in addition to the symbol chunks.
const DefaultSmallFileThreshold = 50

// Chunker turns analyzed structures into chunks.
type Chunker struct {
	smallFileThreshold int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithSmallFileThreshold overrides the whole-file chunk line threshold.
func WithSmallFileThreshold(lines int) Option {
	return func(c *Chunker) { c.smallFileThreshold = lines }
}

// New creates a Chunker with default settings.
func New(opts ...Option) *Chunker {
	c := &Chunker{smallFileThreshold: DefaultSmallFileThreshold}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChunkProject emits chunks for every file in path order. Within a file
// the order is: functions, classes (each class followed by its methods),
// imports, then the whole-file chunk for small files. The order, and with
// it every chunk ID and index position, is reproducible across rebuilds
// of identical input.
func (c *Chunker) ChunkProject(paths []string, structures map[string]*types.CodeStructure) []types.CodeChunk {
	var chunks []types.CodeChunk
	for _, path := range paths {
		structure, ok := structures[path]
		if !ok {
			continue
		}
		chunks = append(chunks, c.ChunkFile(structure)...)
	}
	return chunks
}

// ChunkFile emits the chunks for a single file's structure.
func (c *Chunker) ChunkFile(structure *types.CodeStructure) []types.CodeChunk {
	var chunks []types.CodeChunk

	for i := range structure.Functions {
		chunks = append(chunks, functionChunk(&structure.Functions[i], structure))
	}
	for i := range structure.Classes {
		cls := &structure.Classes[i]
		chunks = append(chunks, classChunk(cls, structure))
		for j := range cls.Methods {
			chunks = append(chunks, methodChunk(&cls.Methods[j], cls.Name, structure))
		}
	}
	if len(structure.Imports) > 0 {
		chunks = append(chunks, importsChunk(structure))
	}
	if structure.TotalLines < c.smallFileThreshold {
		chunks = append(chunks, fileChunk(structure))
	}
	return chunks
}

func functionChunk(fn *types.CodeFunction, structure *types.CodeStructure) types.CodeChunk {
	parts := []string{
		"Function: " + fn.Name,
		"File: " + structure.FilePath,
		"Language: " + string(structure.Language),
		"Parameters: " + strings.Join(fn.Parameters, ", "),
	}
	if fn.Docstring != "" {
		parts = append(parts, "Description: "+fn.Docstring)
	}
	if len(fn.Calls) > 0 {
		parts = append(parts, "Calls: "+strings.Join(fn.Calls, ", "))
	}

	return types.CodeChunk{
		ID:        types.NewChunkID(structure.FilePath, fn.Name, types.ChunkFunction),
		Content:   strings.Join(parts, "\n"),
		FilePath:  structure.FilePath,
		Kind:      types.ChunkFunction,
		Language:  structure.Language,
		StartLine: fn.StartLine,
		EndLine:   fn.EndLine,
		Metadata: map[string]any{
			"function_name": fn.Name,
			"parameters":    fn.Parameters,
			"calls":         fn.Calls,
			"complexity":    string(fn.Complexity),
			"is_async":      fn.IsAsync,
			"return_type":   fn.ReturnType,
		},
	}
}

func classChunk(cls *types.CodeClass, structure *types.CodeStructure) types.CodeChunk {
	methodNames := make([]string, len(cls.Methods))
	for i, m := range cls.Methods {
		methodNames[i] = m.Name
	}

	parts := []string{
		"Class: " + cls.Name,
		"File: " + structure.FilePath,
		"Language: " + string(structure.Language),
		"Methods: " + strings.Join(methodNames, ", "),
	}
	if cls.Docstring != "" {
		parts = append(parts, "Description: "+cls.Docstring)
	}
	if len(cls.Bases) > 0 {
		parts = append(parts, "Inherits from: "+strings.Join(cls.Bases, ", "))
	}

	return types.CodeChunk{
		ID:        types.NewChunkID(structure.FilePath, cls.Name, types.ChunkClass),
		Content:   strings.Join(parts, "\n"),
		FilePath:  structure.FilePath,
		Kind:      types.ChunkClass,
		Language:  structure.Language,
		StartLine: cls.StartLine,
		EndLine:   cls.EndLine,
		Metadata: map[string]any{
			"class_name":  cls.Name,
			"methods":     methodNames,
			"bases":       cls.Bases,
			"implements":  cls.Implements,
			"is_abstract": cls.IsAbstract,
		},
	}
}

func methodChunk(method *types.CodeFunction, className string, structure *types.CodeStructure) types.CodeChunk {
	qualified := className + "." + method.Name

	parts := []string{
		"Method: " + qualified,
		"File: " + structure.FilePath,
		"Language: " + string(structure.Language),
		"Parameters: " + strings.Join(method.Parameters, ", "),
	}
	if method.Docstring != "" {
		parts = append(parts, "Description: "+method.Docstring)
	}

	return types.CodeChunk{
		ID:        types.NewChunkID(structure.FilePath, qualified, types.ChunkMethod),
		Content:   strings.Join(parts, "\n"),
		FilePath:  structure.FilePath,
		Kind:      types.ChunkMethod,
		Language:  structure.Language,
		StartLine: method.StartLine,
		EndLine:   method.EndLine,
		Metadata: map[string]any{
			"class_name":  className,
			"method_name": method.Name,
			"parameters":  method.Parameters,
			"calls":       method.Calls,
			"complexity":  string(method.Complexity),
			"is_async":    method.IsAsync,
			"visibility":  method.Visibility,
		},
	}
}

func importsChunk(structure *types.CodeStructure) types.CodeChunk {
	descriptions := make([]string, 0, len(structure.Imports))
	importMeta := make([]map[string]any, 0, len(structure.Imports))
	for _, imp := range structure.Imports {
		if len(imp.Items) > 0 {
			descriptions = append(descriptions,
				fmt.Sprintf("From %s imports: %s", imp.Module, strings.Join(imp.Items, ", ")))
		} else {
			descriptions = append(descriptions, "Imports: "+imp.Module)
		}
		importMeta = append(importMeta, map[string]any{
			"module":      imp.Module,
			"items":       imp.Items,
			"alias":       imp.Alias,
			"is_relative": imp.IsRelative,
		})
	}

	content := fmt.Sprintf("File: %s\nLanguage: %s\nImports:\n%s",
		structure.FilePath, structure.Language, strings.Join(descriptions, "\n"))

	return types.CodeChunk{
		ID:        types.NewChunkID(structure.FilePath, "imports", types.ChunkImports),
		Content:   content,
		FilePath:  structure.FilePath,
		Kind:      types.ChunkImports,
		Language:  structure.Language,
		StartLine: 1,
		EndLine:   len(structure.Imports),
		Metadata:  map[string]any{"imports": importMeta},
	}
}

func fileChunk(structure *types.CodeStructure) types.CodeChunk {
	parts := []string{
		"File: " + structure.FilePath,
		"Language: " + string(structure.Language),
		fmt.Sprintf("Lines: %d", structure.TotalLines),
		fmt.Sprintf("Functions: %d", len(structure.Functions)),
		fmt.Sprintf("Classes: %d", len(structure.Classes)),
	}
	if len(structure.EntryPoints) > 0 {
		parts = append(parts, "Entry points: "+strings.Join(structure.EntryPoints, ", "))
	}

	return types.CodeChunk{
		ID:        types.NewChunkID(structure.FilePath, "file", types.ChunkFile),
		Content:   strings.Join(parts, "\n"),
		FilePath:  structure.FilePath,
		Kind:      types.ChunkFile,
		Language:  structure.Language,
		StartLine: 1,
		EndLine:   structure.TotalLines,
		Metadata: map[string]any{
			"total_lines":      structure.TotalLines,
			"complexity_score": structure.ComplexityScore,
			"entry_points":     structure.EntryPoints,
			"function_count":   len(structure.Functions),
			"class_count":      len(structure.Classes),
		},
	}
}
