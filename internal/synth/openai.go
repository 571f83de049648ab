package synth

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/spacebio/biorag/internal/assemble"
)

// systemPrompt constrains the generative synthesizer to the retrieved
// context. Answers outside the corpus are explicitly disallowed.
const systemPrompt = `You are a research assistant answering questions about space bioscience.
Answer using ONLY the research excerpts provided in the context. Cite the
source tags (e.g. [Source 1 - papers - Results]) when you draw on them.
If the context does not contain the answer, say so plainly.`

// OpenAISynthesizer phrases answers with an OpenAI chat completion, grounded
// in the assembled context. Retrieval correctness does not depend on it; a
// failed completion falls back to the extractive answer.
type OpenAISynthesizer struct {
	// client is the OpenAI API client.
	client *openai.Client
	// model is the chat model name (e.g. "gpt-4o-mini").
	model string
	// fallback answers when the API call fails.
	fallback ExtractiveSynthesizer
}

// NewOpenAISynthesizer constructs an OpenAISynthesizer for the given API key
// and chat model.
func NewOpenAISynthesizer(apiKey, model string) (*OpenAISynthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("synth: openai synthesizer requires an API key")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAISynthesizer{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Name returns the synthesizer label.
func (*OpenAISynthesizer) Name() string { return "openai" }

// Synthesize sends the query and context to the chat model and returns its
// answer. On API failure it degrades to the extractive answer rather than
// failing the whole request.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, query string, win assemble.Context) (string, error) {
	if win.Text == "" {
		return noInfoAnswer, nil
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", win.Text, query)},
		},
		Temperature: 0.2,
		MaxTokens:   600,
	})
	if err != nil {
		return s.fallback.Synthesize(ctx, query, win)
	}
	if len(resp.Choices) == 0 {
		return s.fallback.Synthesize(ctx, query, win)
	}
	return resp.Choices[0].Message.Content, nil
}
