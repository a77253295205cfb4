// Package ingest persists fetched articles as deduplicated Signals.
package ingest

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/textnorm"
)

// Store is the persistence subset the Ingestor needs.
type Store interface {
	SignalExists(ctx context.Context, contentHash string) (bool, error)
	CreateSignal(ctx context.Context, sig *model.Signal) (bool, error)
}

// DefaultSeenTTL is how long a hash stays in the in-process seen cache.
const DefaultSeenTTL = time.Hour

// Ingestor turns articles into Signals, skipping content already stored
// under any source.
type Ingestor struct {
	store Store
	seen  *gocache.Cache
}

// New creates an Ingestor. A non-positive ttl uses DefaultSeenTTL.
func New(st Store, ttl time.Duration) *Ingestor {
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	return &Ingestor{
		store: st,
		seen:  gocache.New(ttl, 2*ttl),
	}
}

// Hash returns the dedup key of an article.
func Hash(a model.FetchedArticle) string {
	return textnorm.ContentHash(a.URL + a.Content)
}

// Ingest stores every article not seen before and returns the Signals it
// created, in article order. Per-article failures are logged and skipped;
// only context cancellation aborts, returning ctx.Err().
func (in *Ingestor) Ingest(ctx context.Context, src model.Source, articles []model.FetchedArticle) ([]model.Signal, error) {
	log := zap.L().With(zap.String("source", src.Name))
	contentType := model.ContentTypeArticle
	if src.Kind == model.SourceRSS {
		contentType = model.ContentTypeFeed
	}

	var created []model.Signal
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		hash := Hash(a)
		if _, ok := in.seen.Get(hash); ok {
			log.Debug("ingest: skipped duplicate", zap.String("url", a.URL), zap.String("via", "cache"))
			continue
		}

		exists, err := in.store.SignalExists(ctx, hash)
		if err != nil {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			log.Warn("ingest: exists check failed", zap.String("url", a.URL), zap.Error(err))
			continue
		}
		if exists {
			in.seen.SetDefault(hash, struct{}{})
			log.Debug("ingest: skipped duplicate", zap.String("url", a.URL), zap.String("via", "store"))
			continue
		}

		sig := model.Signal{
			Source:      src.Name,
			SourceURL:   a.URL,
			Title:       a.Title,
			PublishedAt: a.PublishedAt,
			ContentType: contentType,
			RawContent:  a.Content,
			ContentHash: hash,
		}
		ok, err := in.store.CreateSignal(ctx, &sig)
		if err != nil {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			log.Warn("ingest: create signal failed", zap.String("url", a.URL), zap.Error(err))
			continue
		}
		in.seen.SetDefault(hash, struct{}{})
		if !ok {
			// Lost an insert race; the signal exists.
			log.Debug("ingest: skipped duplicate", zap.String("url", a.URL), zap.String("via", "conflict"))
			continue
		}
		created = append(created, sig)
	}

	log.Info("ingest: complete",
		zap.Int("articles", len(articles)),
		zap.Int("created", len(created)),
	)
	return created, nil
}
