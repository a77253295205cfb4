// Package hunter runs sources end to end: fetch, ingest, extract and merge
// into leads, with one Run row per source invocation.
package hunter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/hunter/internal/extract"
	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/source"
)

// ErrRunning is returned when the source already has a run in progress in
// this process.
var ErrRunning = eris.New("hunter: source already running")

// Store is the persistence the runner needs directly.
type Store interface {
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, errMsg string, result *model.RunResult) error
	// ListUnprocessedSignals omits signals that already failed
	// model.MaxSignalAttempts times and lists retries after fresh signals.
	ListUnprocessedSignals(ctx context.Context, source string, limit int) ([]model.Signal, error)
	RecordSignalFailure(ctx context.Context, id int64, errMsg string) error
}

// Ingestor persists fetched articles as signals.
type Ingestor interface {
	Ingest(ctx context.Context, src model.Source, articles []model.FetchedArticle) ([]model.Signal, error)
}

// Leads merges extractions into leads.
type Leads interface {
	UpsertLead(ctx context.Context, ext *model.LeadExtraction, score *model.ScoringResult) (*model.Lead, bool, error)
	LinkSignalToLead(ctx context.Context, leadID int64, sig model.Signal, ext *model.LeadExtraction)
	MarkSignalProcessed(ctx context.Context, signalID int64)
}

// AdapterFactory builds the adapter for a source.
type AdapterFactory func(src model.Source) (source.Adapter, error)

// Options tunes a Runner.
type Options struct {
	// BatchSize caps the signals processed per run. Default 25.
	BatchSize int
	// Concurrency caps the sources RunAll runs at once. Default 4.
	Concurrency int
}

// Runner executes hunt runs.
type Runner struct {
	store      Store
	ingestor   Ingestor
	leads      Leads
	extractor  extract.Extractor
	newAdapter AdapterFactory
	opts       Options

	mu       sync.Mutex
	adapters map[string]source.Adapter
	running  map[string]bool
}

// New creates a Runner.
func New(st Store, in Ingestor, leads Leads, ex extract.Extractor, newAdapter AdapterFactory, opts Options) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 25
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Runner{
		store:      st,
		ingestor:   in,
		leads:      leads,
		extractor:  ex,
		newAdapter: newAdapter,
		opts:       opts,
		adapters:   make(map[string]source.Adapter),
		running:    make(map[string]bool),
	}
}

// Outcome is the result of one source in RunAll.
type Outcome struct {
	Source string
	Result *model.RunResult
	Err    error
}

// RunAll runs every source, at most Options.Concurrency at a time. A failing
// source never stops the others; outcomes are returned in source order.
func (r *Runner) RunAll(ctx context.Context, srcs []model.Source) ([]Outcome, error) {
	out := make([]Outcome, len(srcs))

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, src := range srcs {
		g.Go(func() error {
			res, err := r.RunSource(ctx, src)
			out[i] = Outcome{Source: src.Name, Result: res, Err: err}
			if err != nil {
				zap.L().Error("hunter: source failed", zap.String("source", src.Name), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return out, ctx.Err()
}

// RunSource fetches, ingests and processes one source. Signals left
// unprocessed by earlier runs are replayed first, up to the batch size.
func (r *Runner) RunSource(ctx context.Context, src model.Source) (*model.RunResult, error) {
	if !r.begin(src.Name) {
		return nil, ErrRunning
	}
	defer r.end(src.Name)

	log := zap.L().With(zap.String("source", src.Name))
	start := time.Now()

	run, err := r.store.CreateRun(ctx, src.Name)
	if err != nil {
		return nil, eris.Wrapf(err, "hunter: create run for %s", src.Name)
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("hunter: run started", zap.String("kind", string(src.Kind)))

	result := &model.RunResult{Source: src.Name}
	runErr := r.execute(ctx, src, result, log)

	// Record the outcome even when ctx was canceled.
	bg := context.WithoutCancel(ctx)
	if runErr != nil {
		if err := r.store.FailRun(bg, run.ID, runErr.Error(), result); err != nil {
			log.Warn("hunter: record run failure", zap.Error(err))
		}
		log.Error("hunter: run failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(runErr),
		)
		return result, runErr
	}

	if err := r.store.CompleteRun(bg, run.ID, result); err != nil {
		return result, eris.Wrapf(err, "hunter: complete run %s", run.ID)
	}
	log.Info("hunter: run complete",
		zap.Int("articles", result.ArticlesFetched),
		zap.Int("signals_created", result.SignalsCreated),
		zap.Int("signals_processed", result.SignalsProcessed),
		zap.Int("leads_created", result.LeadsCreated),
		zap.Int("leads_merged", result.LeadsMerged),
		zap.Int("errors", result.Errors),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (r *Runner) execute(ctx context.Context, src model.Source, result *model.RunResult, log *zap.Logger) error {
	adapter, err := r.adapter(src)
	if err != nil {
		return err
	}

	// A failed fetch still replays the backlog; the run is failed after.
	articles, fetchErr := adapter.Fetch(ctx)
	if fetchErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.Errors++
		log.Warn("hunter: fetch failed", zap.Error(fetchErr))
	}
	result.ArticlesFetched = len(articles)

	if len(articles) > 0 {
		created, err := r.ingestor.Ingest(ctx, src, articles)
		result.SignalsCreated = len(created)
		if err != nil {
			return err
		}
	}

	signals, err := r.store.ListUnprocessedSignals(ctx, src.Name, r.opts.BatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return eris.Wrapf(err, "hunter: list unprocessed signals for %s", src.Name)
	}

	for _, sig := range signals {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.process(ctx, sig, result); err != nil {
			return err
		}
	}

	if fetchErr != nil {
		return eris.Wrapf(fetchErr, "hunter: fetch %s", src.Name)
	}
	return nil
}

// process handles one signal. Only cancellation is returned; other
// failures are counted and recorded on the signal, which stays unprocessed
// for the next run until it reaches model.MaxSignalAttempts.
func (r *Runner) process(ctx context.Context, sig model.Signal, result *model.RunResult) error {
	log := zap.L().With(zap.String("source", sig.Source), zap.Int64("signal_id", sig.ID))

	ext, score, err := r.extractor.Extract(ctx, sig)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.Errors++
		log.Warn("hunter: extract failed", zap.String("extractor", r.extractor.Name()), zap.Error(err))
		r.recordFailure(ctx, sig, err, log)
		return nil
	}

	if ext == nil || strings.TrimSpace(ext.ConceptName) == "" {
		log.Debug("hunter: no lead in signal")
		r.leads.MarkSignalProcessed(ctx, sig.ID)
		result.SignalsProcessed++
		return nil
	}

	lead, isNew, err := r.leads.UpsertLead(ctx, ext, score)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.Errors++
		log.Error("hunter: upsert lead failed", zap.String("concept", ext.ConceptName), zap.Error(err))
		r.recordFailure(ctx, sig, err, log)
		return nil
	}
	if isNew {
		result.LeadsCreated++
	} else {
		result.LeadsMerged++
	}

	r.leads.LinkSignalToLead(ctx, lead.ID, sig, ext)
	r.leads.MarkSignalProcessed(ctx, sig.ID)
	result.SignalsProcessed++

	log.Debug("hunter: signal processed",
		zap.Int64("lead_id", lead.ID),
		zap.String("concept", ext.ConceptName),
		zap.Bool("new_lead", isNew),
	)
	return nil
}

// adapter returns the cached adapter for src so per-adapter state, such as
// a feed's ETag, survives between runs.
func (r *Runner) recordFailure(ctx context.Context, sig model.Signal, cause error, log *zap.Logger) {
	if err := r.store.RecordSignalFailure(ctx, sig.ID, cause.Error()); err != nil {
		log.Warn("hunter: record signal failure", zap.Error(err))
		return
	}
	if sig.Attempts+1 >= model.MaxSignalAttempts {
		log.Warn("hunter: signal abandoned", zap.Int("attempts", sig.Attempts+1))
	}
}

func (r *Runner) adapter(src model.Source) (source.Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.adapters[src.Name]; ok {
		return a, nil
	}
	a, err := r.newAdapter(src)
	if err != nil {
		return nil, eris.Wrapf(err, "hunter: build adapter for %s", src.Name)
	}
	r.adapters[src.Name] = a
	return a, nil
}

func (r *Runner) begin(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[name] {
		return false
	}
	r.running[name] = true
	return true
}

func (r *Runner) end(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, name)
}

// Running reports whether name has a run in progress.
func (r *Runner) Running(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running[name]
}
