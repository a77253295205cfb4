package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/resilience"
	"github.com/sells-group/hunter/pkg/anthropic"
	anthropicmocks "github.com/sells-group/hunter/pkg/anthropic/mocks"
)

func TestAnthropicExtractor_Extract(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.MaxTokens == 1024 &&
			len(req.System) == 1 && req.System[0].Cached &&
			strings.Contains(req.System[0].Text, "Target regions: TX, FL.") &&
			len(req.Messages) == 1 &&
			strings.Contains(req.Messages[0].Content, "Title: Bluebird Tacos to open in Austin")
	})).Return(&anthropic.MessageResponse{
		Text:  bluebirdReply,
		Usage: anthropic.TokenUsage{InputTokens: 900, OutputTokens: 120},
	}, nil).Once()

	e := NewAnthropicExtractor(client, "claude-haiku-4-5-20251001", 0, []string{"TX", "FL"})
	assert.Equal(t, "anthropic", e.Name())

	ext, score, err := e.Extract(context.Background(), bluebirdSignal())
	require.NoError(t, err)
	assert.Equal(t, "Bluebird Tacos", ext.ConceptName)
	assert.Equal(t, model.StrengthWarmPlus, score.Strength)
}

func TestAnthropicExtractor_RetriesTransient(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.MarkTransient(errors.New("overloaded"), 529)).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{Text: bluebirdReply}, nil).Once()

	e := NewAnthropicExtractor(client, "m", 256, nil)
	fastCall(&e.call)

	ext, _, err := e.Extract(context.Background(), bluebirdSignal())
	require.NoError(t, err)
	assert.Equal(t, "Bluebird Tacos", ext.ConceptName)
}

func TestAnthropicExtractor_PermanentError(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("invalid request")).Once()

	e := NewAnthropicExtractor(client, "m", 256, nil)
	fastCall(&e.call)

	_, _, err := e.Extract(context.Background(), bluebirdSignal())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract: anthropic signal 7")
}

func TestAnthropicExtractor_BadReply(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{Text: "Sorry, no JSON today."}, nil).Once()

	e := NewAnthropicExtractor(client, "m", 256, nil)
	_, _, err := e.Extract(context.Background(), bluebirdSignal())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse model reply")
}

func TestAnthropicExtractor_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, resilience.MarkTransient(context.Canceled, 0)).Once()

	e := NewAnthropicExtractor(client, "m", 256, nil)
	fastCall(&e.call)

	_, _, err := e.Extract(ctx, bluebirdSignal())
	assert.ErrorIs(t, err, context.Canceled)
}
