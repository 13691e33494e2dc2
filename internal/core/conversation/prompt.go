package conversation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AyushPanchal/Medha/internal/core/retrieval"
)

// systemPrompt fixes the assistant persona for answer generation.
const systemPrompt = `You are Medha, a helpful assistant for the Computer Science Department at SVNIT, Surat.
Answer the user's question using only the provided context and conversation history.
If the context does not contain the answer, say that you don't have that information rather than guessing.
Keep answers concise and factual.`

// reformulateSystemPrompt fixes the persona for query reformulation.
const reformulateSystemPrompt = `You rewrite follow-up questions so they stand on their own.
Given the conversation history and the latest question, produce a single self-contained question
that resolves all pronouns and references to earlier turns. Do not answer the question.
Return only the rewritten question.`

// thinkBlockPattern matches chain-of-thought blocks some models emit before
// the actual answer.
var thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoning removes <think>...</think> blocks and trims the remainder.
func StripReasoning(text string) string {
	return strings.TrimSpace(thinkBlockPattern.ReplaceAllString(text, ""))
}

func buildHistorySection(sb *strings.Builder, memory MemorySnapshot) {
	if memory.Summary != "" {
		sb.WriteString("Summary of earlier conversation:\n")
		sb.WriteString(memory.Summary)
		sb.WriteString("\n\n")
	}
	if len(memory.Turns) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, turn := range memory.Turns {
			sb.WriteString(string(turn.Role))
			sb.WriteString(": ")
			sb.WriteString(turn.Text)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
}

// buildReformulatePrompt renders the user prompt for the reformulation call.
func buildReformulatePrompt(memory MemorySnapshot, query string) string {
	sb := &strings.Builder{}
	buildHistorySection(sb, memory)
	sb.WriteString("Latest question:\n")
	sb.WriteString(query)
	return sb.String()
}

// buildAnswerPrompt renders the user prompt for answer generation: retrieved
// context first, then history, then the question.
func buildAnswerPrompt(query string, results []retrieval.Result, memory MemorySnapshot) string {
	sb := &strings.Builder{}
	if len(results) == 0 {
		sb.WriteString("Context: no relevant documents were found for this question.\n\n")
	} else {
		sb.WriteString("Context:\n")
		for i, result := range results {
			sb.WriteString(fmt.Sprintf("[%d] (source: %s)\n", i+1, result.SourceEntity))
			sb.WriteString(result.Text)
			sb.WriteString("\n\n")
		}
	}
	buildHistorySection(sb, memory)
	sb.WriteString("Question:\n")
	sb.WriteString(query)
	return sb.String()
}
