// Package extract turns a Signal into a lead extraction and a strength
// score, using a language model or text rules.
package extract

import (
	"context"
	"time"

	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/resilience"
)

// Extractor reads one signal. An extraction with an empty ConceptName means
// the signal names no prospective company.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, sig model.Signal) (*model.LeadExtraction, *model.ScoringResult, error)
}

// modelCall wraps a provider call in a retry policy and a breaker so a
// provider outage fails fast instead of retrying every signal.
type modelCall struct {
	policy  resilience.Policy
	breaker *resilience.Breaker
}

func newModelCall(provider string) modelCall {
	return modelCall{
		policy: resilience.Policy{
			Attempts: 3,
			Base:     time.Second,
			Max:      20 * time.Second,
			Jitter:   0.25,
			OnRetry:  resilience.LogRetry("extract", provider),
		},
		breaker: resilience.NewBreaker(provider, resilience.BreakerConfig{
			Threshold: 5,
			Cooldown:  time.Minute,
			Trips:     resilience.IsTransient,
		}),
	}
}

func (m modelCall) do(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	return resilience.Call(ctx, m.breaker, func(ctx context.Context) (string, error) {
		return resilience.Retry(ctx, m.policy, fn)
	})
}
