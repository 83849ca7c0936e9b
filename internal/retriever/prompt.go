package retriever

import (
	"fmt"
	"sort"
	"strings"

	"coderag/internal/llm"
	"coderag/pkg/types"
)

// DefaultContextBudget caps the assembled context size in characters.
// Character counting is a deliberate stand-in for tokenization; the
// budget exists to keep prompts bounded, not to hit a model limit
// exactly.
const DefaultContextBudget = 16000

const systemPrompt = "You are a code assistant. Answer questions about the " +
	"indexed repository using only the provided context. When the context " +
	"does not contain the answer, say so."

// BuildContext formats retrieved chunks as LLM context, highest
// confidence first, truncated to the budget.
func BuildContext(results []types.RetrievedChunk, budget int) string {
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	ordered := make([]types.RetrievedChunk, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})

	var b strings.Builder
	for _, res := range ordered {
		block := fmt.Sprintf("From %s:\n%s\n\n", res.Chunk.FilePath, res.Chunk.Content)
		if b.Len()+len(block) > budget {
			break
		}
		b.WriteString(block)
	}
	return strings.TrimSuffix(b.String(), "\n\n")
}

// BuildMessages assembles the chat conversation for an ask call. Without
// retrieved context the question goes through bare.
func BuildMessages(question string, results []types.RetrievedChunk, budget int) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: systemPrompt}}

	context := BuildContext(results, budget)
	var user string
	if context != "" {
		user = fmt.Sprintf("Context from the repository:\n\n%s\n\nQuestion: %s", context, question)
	} else {
		user = "Question: " + question
	}
	messages = append(messages, llm.Message{Role: "user", Content: user})
	return messages
}
