package extract

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/resilience"
)

// OpenAIExtractor extracts leads with any OpenAI-compatible chat endpoint.
type OpenAIExtractor struct {
	client  *openai.Client
	model   string
	regions []string
	call    modelCall
}

// NewOpenAIExtractor builds an extractor. An empty baseURL uses the
// public OpenAI endpoint.
func NewOpenAIExtractor(apiKey, baseURL, model string, regions []string) *OpenAIExtractor {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIExtractor{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		regions: regions,
		call:    newModelCall("openai"),
	}
}

// Name implements Extractor.
func (e *OpenAIExtractor) Name() string { return "openai" }

// Extract implements Extractor.
func (e *OpenAIExtractor) Extract(ctx context.Context, sig model.Signal) (*model.LeadExtraction, *model.ScoringResult, error) {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemText(e.regions)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(sig)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	text, err := e.call.do(ctx, func(ctx context.Context) (string, error) {
		resp, err := e.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", resilience.FromStatus(eris.Wrap(err, "openai: chat completion"), openAIStatus(err))
		}
		if len(resp.Choices) == 0 {
			return "", eris.New("openai: no choices returned")
		}
		zap.L().Debug("openai: usage",
			zap.String("model", e.model),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			zap.Int("total_tokens", resp.Usage.TotalTokens),
		)
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, eris.Wrapf(err, "extract: openai signal %d", sig.ID)
	}
	return parseReply(text)
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
