package api

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultSystemPrompt = "Provide brief, concise responses with a friendly and human tone. Do not use markdown formatting."

// OpenAIAsker implements Asker against any OpenAI-compatible chat
// completions endpoint. It keeps no server-side sessions; history is the
// backend's problem, so every ask is sessionless.
type OpenAIAsker struct {
	client llms.Model
}

// NewOpenAIAsker creates an OpenAI-compatible asker.
func NewOpenAIAsker(apiKey, baseURL, model string) (*OpenAIAsker, error) {
	client, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return &OpenAIAsker{client: client}, nil
}

// Ask implements the Asker interface.
func (a *OpenAIAsker) Ask(ctx context.Context, question, _ string) AskResult {
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, defaultSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, question),
	}

	resp, err := a.client.GenerateContent(ctx, msgs)
	if err != nil {
		return failureResult(FailureTransport, fmt.Sprintf("generate content: %v", err))
	}

	if len(resp.Choices) == 0 {
		return failureResult(FailureParse, "no choices returned from model")
	}

	return answerResult(resp.Choices[0].Content)
}
