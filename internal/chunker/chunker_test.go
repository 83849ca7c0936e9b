package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag/pkg/types"
)

func calculatorStructure() *types.CodeStructure {
	return &types.CodeStructure{
		FilePath: "calculator.py",
		Language: types.LangPython,
		Classes: []types.CodeClass{
			{
				Name:      "Calculator",
				StartLine: 1,
				EndLine:   9,
				Methods: []types.CodeFunction{
					{Name: "add", StartLine: 2, EndLine: 3, Parameters: []string{"self", "a", "b"}, Docstring: "Add two numbers", Complexity: types.ComplexityLow},
					{Name: "multiply", StartLine: 5, EndLine: 6, Parameters: []string{"self", "a", "b"}, Complexity: types.ComplexityLow},
				},
			},
		},
		Imports:    []types.CodeImport{{Module: "math", Line: 1}},
		TotalLines: 10,
	}
}

func TestChunkFile_OrderAndKinds(t *testing.T) {
	st := &types.CodeStructure{
		FilePath:   "app.py",
		Language:   types.LangPython,
		Functions:  []types.CodeFunction{{Name: "run", StartLine: 5, EndLine: 10}},
		Classes:    calculatorStructure().Classes,
		Imports:    []types.CodeImport{{Module: "os"}},
		TotalLines: 30,
	}

	chunks := New().ChunkFile(st)
	require.Len(t, chunks, 6)

	kinds := make([]types.ChunkKind, len(chunks))
	for i, ch := range chunks {
		kinds[i] = ch.Kind
	}
	assert.Equal(t, []types.ChunkKind{
		types.ChunkFunction,
		types.ChunkClass,
		types.ChunkMethod,
		types.ChunkMethod,
		types.ChunkImports,
		types.ChunkFile,
	}, kinds)

	for _, ch := range chunks {
		assert.NoError(t, ch.Validate())
		assert.Equal(t, "app.py", ch.FilePath)
	}
}

func TestChunkFile_FunctionContent(t *testing.T) {
	st := &types.CodeStructure{
		FilePath: "util.go",
		Language: types.LangGo,
		Functions: []types.CodeFunction{{
			Name:       "Clamp",
			StartLine:  3,
			EndLine:    9,
			Parameters: []string{"v int", "max int"},
			ReturnType: "int",
			Docstring:  "Clamp bounds v to max.",
			Calls:      []string{"min"},
			Complexity: types.ComplexityLow,
		}},
		TotalLines: 100,
	}

	chunks := New().ChunkFile(st)
	require.Len(t, chunks, 1)

	ch := chunks[0]
	assert.Contains(t, ch.Content, "Function: Clamp")
	assert.Contains(t, ch.Content, "File: util.go")
	assert.Contains(t, ch.Content, "Parameters: v int, max int")
	assert.Contains(t, ch.Content, "Description: Clamp bounds v to max.")
	assert.Contains(t, ch.Content, "Calls: min")
	assert.Equal(t, 3, ch.StartLine)
	assert.Equal(t, 9, ch.EndLine)
	assert.Equal(t, "int", ch.Metadata["return_type"])
}

func TestChunkFile_MethodQualifiedName(t *testing.T) {
	chunks := New().ChunkFile(calculatorStructure())

	var add *types.CodeChunk
	for i := range chunks {
		if chunks[i].Kind == types.ChunkMethod && chunks[i].Metadata["method_name"] == "add" {
			add = &chunks[i]
		}
	}
	require.NotNil(t, add)

	assert.Contains(t, add.Content, "Method: Calculator.add")
	assert.Contains(t, add.Content, "Description: Add two numbers")
	assert.Equal(t, types.NewChunkID("calculator.py", "Calculator.add", types.ChunkMethod), add.ID)
	assert.Equal(t, "Calculator", add.Metadata["class_name"])
}

func TestChunkFile_ImportsContent(t *testing.T) {
	st := &types.CodeStructure{
		FilePath: "svc.py",
		Language: types.LangPython,
		Imports: []types.CodeImport{
			{Module: "os"},
			{Module: "collections", Items: []string{"OrderedDict"}},
		},
		TotalLines: 200,
	}

	chunks := New().ChunkFile(st)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "Imports: os")
	assert.Contains(t, chunks[0].Content, "From collections imports: OrderedDict")
}

func TestChunkFile_SmallFileThreshold(t *testing.T) {
	small := &types.CodeStructure{FilePath: "a.py", Language: types.LangPython, TotalLines: 49}
	large := &types.CodeStructure{FilePath: "b.py", Language: types.LangPython, TotalLines: 50}

	c := New()
	assert.Len(t, c.ChunkFile(small), 1)
	assert.Empty(t, c.ChunkFile(large))

	loose := New(WithSmallFileThreshold(100))
	assert.Len(t, loose.ChunkFile(large), 1)
}

func TestChunkProject_DeterministicIDs(t *testing.T) {
	structures := map[string]*types.CodeStructure{
		"calculator.py": calculatorStructure(),
	}
	paths := []string{"calculator.py"}

	c := New()
	first := c.ChunkProject(paths, structures)
	second := c.ChunkProject(paths, structures)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Len(t, first[i].ID, types.ChunkIDLength)
	}
}

func TestChunkProject_FollowsPathOrder(t *testing.T) {
	structures := map[string]*types.CodeStructure{
		"b.py": {FilePath: "b.py", Language: types.LangPython, Functions: []types.CodeFunction{{Name: "b", StartLine: 1, EndLine: 1}}, TotalLines: 100},
		"a.py": {FilePath: "a.py", Language: types.LangPython, Functions: []types.CodeFunction{{Name: "a", StartLine: 1, EndLine: 1}}, TotalLines: 100},
	}

	chunks := New().ChunkProject([]string{"b.py", "a.py"}, structures)
	require.Len(t, chunks, 2)
	assert.Equal(t, "b.py", chunks[0].FilePath)
	assert.Equal(t, "a.py", chunks[1].FilePath)
}
