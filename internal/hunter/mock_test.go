package hunter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/source"
)

type fakeAdapter struct {
	name     string
	articles []model.FetchedArticle
	err      error
	calls    atomic.Int32
	block    chan struct{}
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Fetch(ctx context.Context) ([]model.FetchedArticle, error) {
	a.calls.Add(1)
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return a.articles, a.err
}

// adapters returns a factory serving fixed adapters and counting builds.
func adapters(builds *atomic.Int32, byName map[string]*fakeAdapter) AdapterFactory {
	return func(src model.Source) (source.Adapter, error) {
		builds.Add(1)
		a, ok := byName[src.Name]
		if !ok {
			return nil, errors.New("no adapter")
		}
		return a, nil
	}
}

type fakeStore struct {
	mu        sync.Mutex
	runs      map[string]*model.Run
	nextRun   int
	backlog   map[string][]model.Signal
	createErr error
	listErr   error
	listLimit int
	attempts  map[int64]int
	processed map[int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:      map[string]*model.Run{},
		backlog:   map[string][]model.Signal{},
		attempts:  map[int64]int{},
		processed: map[int64]bool{},
	}
}

func (s *fakeStore) CreateRun(_ context.Context, src string) (*model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextRun++
	r := &model.Run{ID: fmt.Sprintf("run-%d", s.nextRun), Source: src, Status: model.RunStatusRunning}
	s.runs[r.ID] = r
	return r, nil
}

func (s *fakeStore) CompleteRun(_ context.Context, id string, res *model.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id].Status = model.RunStatusComplete
	s.runs[id].Result = res
	return nil
}

func (s *fakeStore) FailRun(_ context.Context, id, msg string, res *model.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id].Status = model.RunStatusFailed
	s.runs[id].Error = msg
	s.runs[id].Result = res
	return nil
}

func (s *fakeStore) ListUnprocessedSignals(_ context.Context, src string, limit int) ([]model.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listLimit = limit
	if s.listErr != nil {
		return nil, s.listErr
	}
	var sigs []model.Signal
	for _, sig := range s.backlog[src] {
		sig.Attempts = s.attempts[sig.ID]
		if s.processed[sig.ID] || sig.Attempts >= model.MaxSignalAttempts {
			continue
		}
		sigs = append(sigs, sig)
	}
	sort.SliceStable(sigs, func(i, j int) bool { return sigs[i].Attempts < sigs[j].Attempts })
	if len(sigs) > limit {
		sigs = sigs[:limit]
	}
	return sigs, nil
}

func (s *fakeStore) RecordSignalFailure(_ context.Context, id int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[id]++
	return nil
}

func (s *fakeStore) markProcessed(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[id] = true
}

func (s *fakeStore) run(src string) *model.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.Source == src {
			return r
		}
	}
	return nil
}

// fakeIngestor turns every article into a signal and appends it to the
// store's backlog.
type fakeIngestor struct {
	store  *fakeStore
	nextID atomic.Int64
}

func (f *fakeIngestor) Ingest(_ context.Context, src model.Source, articles []model.FetchedArticle) ([]model.Signal, error) {
	var out []model.Signal
	for _, a := range articles {
		sig := model.Signal{ID: f.nextID.Add(1), Source: src.Name, SourceURL: a.URL, Title: a.Title, RawContent: a.Content}
		out = append(out, sig)
	}
	f.store.mu.Lock()
	f.store.backlog[src.Name] = append(f.store.backlog[src.Name], out...)
	f.store.mu.Unlock()
	return out, nil
}

// fakeExtractor uses the signal title as the concept name.
type fakeExtractor struct {
	failOn map[int64]error
}

func (e *fakeExtractor) Name() string { return "fake" }

func (e *fakeExtractor) Extract(ctx context.Context, sig model.Signal) (*model.LeadExtraction, *model.ScoringResult, error) {
	if err := e.failOn[sig.ID]; err != nil {
		return nil, nil, err
	}
	return &model.LeadExtraction{ConceptName: sig.Title}, &model.ScoringResult{Strength: model.StrengthWarm}, nil
}

type fakeLeads struct {
	store     *fakeStore
	mu        sync.Mutex
	byName    map[string]int64
	upsertErr map[string]error
	links     [][2]int64
	processed []int64
}

func newFakeLeads(st *fakeStore) *fakeLeads {
	return &fakeLeads{store: st, byName: map[string]int64{}, upsertErr: map[string]error{}}
}

func (l *fakeLeads) UpsertLead(_ context.Context, ext *model.LeadExtraction, _ *model.ScoringResult) (*model.Lead, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.upsertErr[ext.ConceptName]; err != nil {
		return nil, false, err
	}
	if id, ok := l.byName[ext.ConceptName]; ok {
		return &model.Lead{ID: id, ConceptName: ext.ConceptName}, false, nil
	}
	id := int64(len(l.byName) + 1)
	l.byName[ext.ConceptName] = id
	return &model.Lead{ID: id, ConceptName: ext.ConceptName}, true, nil
}

func (l *fakeLeads) LinkSignalToLead(_ context.Context, leadID int64, sig model.Signal, _ *model.LeadExtraction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.links = append(l.links, [2]int64{leadID, sig.ID})
}

func (l *fakeLeads) MarkSignalProcessed(_ context.Context, id int64) {
	l.store.markProcessed(id)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed = append(l.processed, id)
}
