package retriever

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag/pkg/types"
)

func retrieved(file, content string, confidence float64) types.RetrievedChunk {
	return types.RetrievedChunk{
		Chunk:      &types.CodeChunk{FilePath: file, Content: content},
		Confidence: confidence,
	}
}

func TestBuildContext_ConfidenceOrder(t *testing.T) {
	results := []types.RetrievedChunk{
		retrieved("low.py", "low content", 0.1),
		retrieved("high.py", "high content", 0.9),
		retrieved("mid.py", "mid content", 0.5),
	}

	context := BuildContext(results, 0)

	high := strings.Index(context, "From high.py:")
	mid := strings.Index(context, "From mid.py:")
	low := strings.Index(context, "From low.py:")
	require.NotEqual(t, -1, high)
	require.NotEqual(t, -1, mid)
	require.NotEqual(t, -1, low)
	assert.Less(t, high, mid)
	assert.Less(t, mid, low)
}

func TestBuildContext_Budget(t *testing.T) {
	results := []types.RetrievedChunk{
		retrieved("a.py", strings.Repeat("x", 100), 0.9),
		retrieved("b.py", strings.Repeat("y", 100), 0.5),
	}

	context := BuildContext(results, 130)
	assert.Contains(t, context, "a.py")
	assert.NotContains(t, context, "b.py")
}

func TestBuildContext_Empty(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil, 0))
}

func TestBuildMessages_WithContext(t *testing.T) {
	results := []types.RetrievedChunk{retrieved("calc.py", "Method: Calculator.add", 0.8)}

	messages := BuildMessages("what does add do?", results, 0)
	require.Len(t, messages, 2)

	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "user", messages[1].Role)
	assert.Contains(t, messages[1].Content, "From calc.py:")
	assert.Contains(t, messages[1].Content, "Question: what does add do?")
}

func TestBuildMessages_NoContext(t *testing.T) {
	messages := BuildMessages("hello", nil, 0)
	require.Len(t, messages, 2)
	assert.Equal(t, "Question: hello", messages[1].Content)
}
