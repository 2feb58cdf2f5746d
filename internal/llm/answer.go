package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/avelasquez/docqa/internal/config"
	"github.com/avelasquez/docqa/internal/kb"
)

// AnswerOptions configures answer synthesis.
type AnswerOptions struct {
	// ContextBytes bounds the total size of retrieved text sent to the
	// model. The first chunk is always included.
	ContextBytes int

	// Temperature controls randomness (0-1).
	Temperature float64

	// MaxTokens limits the response length.
	MaxTokens int
}

// DefaultAnswerOptions returns sensible defaults.
func DefaultAnswerOptions() AnswerOptions {
	return AnswerOptions{
		ContextBytes: config.DefaultContextBytes,
		Temperature:  config.DefaultTemperature,
		MaxTokens:    config.DefaultMaxTokens,
	}
}

// Answer is a generated answer with the chunks it was grounded on.
type Answer struct {
	Text    string      `json:"text"`
	Sources []kb.Result `json:"sources"`
}

// Answerer turns retrieved chunks and a question into a grounded answer.
type Answerer struct {
	llm Service
}

// NewAnswerer creates an answerer on top of a completion service.
func NewAnswerer(llm Service) *Answerer {
	return &Answerer{llm: llm}
}

// Answer generates an answer to the question using the retrieved chunks as
// context. With no chunks it returns a fixed no-context answer without
// calling the model.
func (a *Answerer) Answer(ctx context.Context, question string, results []kb.Result, opts AnswerOptions) (*Answer, error) {
	if len(results) == 0 {
		return &Answer{
			Text: "I couldn't find anything relevant in your documents. Try rephrasing the question or adding more documents.",
		}, nil
	}

	used := fitContextBudget(results, opts.ContextBytes)
	prompt := buildContext(used)

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Question: %s\n\n%s", question, prompt)},
	}

	text, err := a.llm.Complete(ctx, messages, CompletionOptions{
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &Answer{
		Text:    text,
		Sources: used,
	}, nil
}

// fitContextBudget keeps the best-ranked results whose combined content fits
// within budget bytes. The top result survives even when it alone exceeds
// the budget.
func fitContextBudget(results []kb.Result, budget int) []kb.Result {
	if budget <= 0 {
		return results
	}

	total := 0
	for i, r := range results {
		total += len(r.Content)
		if total > budget && i > 0 {
			return results[:i]
		}
	}
	return results
}

// buildContext renders retrieved chunks as numbered sources.
func buildContext(results []kb.Result) string {
	var sb strings.Builder

	sb.WriteString("Here are the relevant document excerpts:\n\n")

	for i, r := range results {
		fmt.Fprintf(&sb, "--- Source [%d]: %s (excerpt %d, %.0f%% match) ---\n",
			i+1, r.Source, r.Index+1, r.Score*100)
		sb.WriteString(r.Content)
		sb.WriteString("\n\n")
	}

	return sb.String()
}

// System prompt for document Q&A.
const systemPrompt = `You are a helpful assistant that answers questions about the user's documents.

Your role is to:
1. Read the provided document excerpts carefully
2. Answer the user's question accurately based on the excerpts
3. Cite the excerpts you relied on using [Source N] notation
4. Be concise but thorough
5. If the excerpts do not contain enough information to answer, say so plainly

Never invent facts that are not supported by the excerpts.

Format your answer in markdown when appropriate.`
