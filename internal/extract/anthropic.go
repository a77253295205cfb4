package extract

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/resilience"
	"github.com/sells-group/hunter/pkg/anthropic"
)

// AnthropicExtractor extracts leads with a Claude model.
type AnthropicExtractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	regions   []string
	call      modelCall
}

// NewAnthropicExtractor builds an extractor over client.
func NewAnthropicExtractor(client anthropic.Client, model string, maxTokens int64, regions []string) *AnthropicExtractor {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicExtractor{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		regions:   regions,
		call:      newModelCall("anthropic"),
	}
}

// Name implements Extractor.
func (e *AnthropicExtractor) Name() string { return "anthropic" }

// Extract implements Extractor.
func (e *AnthropicExtractor) Extract(ctx context.Context, sig model.Signal) (*model.LeadExtraction, *model.ScoringResult, error) {
	temp := 0.0
	req := anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System: []anthropic.SystemBlock{
			{Text: systemText(e.regions), Cached: true},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: userPrompt(sig)},
		},
		Temperature: &temp,
	}

	text, err := e.call.do(ctx, func(ctx context.Context) (string, error) {
		resp, err := e.client.CreateMessage(ctx, req)
		if err != nil {
			return "", resilience.FromStatus(err, anthropic.StatusCode(err))
		}
		resp.Usage.Log(e.model, "extract")
		return resp.Text, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, eris.Wrapf(err, "extract: anthropic signal %d", sig.ID)
	}
	return parseReply(text)
}
