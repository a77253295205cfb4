package lead

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hunter/internal/crm"
	"github.com/sells-group/hunter/internal/db"
	"github.com/sells-group/hunter/internal/model"
)

// memStore is an in-memory Store enforcing the unique normalized name and
// unique (lead, signal) pair.
type memStore struct {
	mu        sync.Mutex
	leads     map[int64]*model.Lead
	links     map[[2]int64]model.LeadSignal
	processed map[int64]time.Time
	nextID    int64

	creates int
	updates int

	// lookupGate, when set, blocks the first lookups until all have arrived.
	lookupGate *gate

	lookupErr error
	createErr error
	updateErr error
	linkErr   error
	markErr   error
}

func newMemStore() *memStore {
	return &memStore{
		leads:     make(map[int64]*model.Lead),
		links:     make(map[[2]int64]model.LeadSignal),
		processed: make(map[int64]time.Time),
	}
}

func (s *memStore) GetLeadByNormalizedName(_ context.Context, name string) (*model.Lead, error) {
	if s.lookupGate != nil {
		s.lookupGate.wait()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	for _, l := range s.leads {
		if l.NormalizedName == name {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateLead(_ context.Context, l *model.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.leads {
		if existing.NormalizedName == l.NormalizedName {
			return eris.Wrapf(db.ErrDuplicateKey, "mem: create lead %q", l.NormalizedName)
		}
	}
	s.nextID++
	l.ID = s.nextID
	l.CreatedAt = l.FirstSeenAt
	l.UpdatedAt = l.FirstSeenAt
	l.Version = 1
	cp := *l
	s.leads[l.ID] = &cp
	s.creates++
	return nil
}

func (s *memStore) UpdateLead(_ context.Context, id int64, p model.LeadPatch) (*model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	l, ok := s.leads[id]
	if !ok {
		return nil, errors.New("mem: lead not found")
	}
	if p.IfVersion != nil && *p.IfVersion != l.Version {
		return nil, eris.Wrapf(db.ErrStaleWrite, "mem: update lead %d at version %d", id, *p.IfVersion)
	}
	l.Version++
	if p.SignalStrength != nil {
		l.SignalStrength = *p.SignalStrength
	}
	if p.ScoreReasoning != nil {
		l.ScoreReasoning = *p.ScoreReasoning
	}
	if p.GeoRelevance != nil {
		l.GeoRelevance = *p.GeoRelevance
	}
	if p.KeyPersonName != nil {
		l.KeyPersonName = p.KeyPersonName
	}
	if p.KeyPersonTitle != nil {
		l.KeyPersonTitle = p.KeyPersonTitle
	}
	if p.TargetGeography != nil {
		l.TargetGeography = p.TargetGeography
	}
	if p.Website != nil {
		l.Website = p.Website
	}
	if p.IndustrySegment != nil {
		l.IndustrySegment = *p.IndustrySegment
	}
	if p.LastSignalAt != nil {
		l.LastSignalAt = *p.LastSignalAt
		l.UpdatedAt = *p.LastSignalAt
	}
	s.updates++
	cp := *l
	return &cp, nil
}

func (s *memStore) CreateLeadSignal(_ context.Context, ls *model.LeadSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linkErr != nil {
		return s.linkErr
	}
	k := [2]int64{ls.LeadID, ls.SignalID}
	if _, ok := s.links[k]; ok {
		return eris.Wrap(db.ErrDuplicateKey, "mem: link")
	}
	s.links[k] = *ls
	return nil
}

func (s *memStore) MarkSignalProcessed(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	if _, ok := s.processed[id]; !ok {
		s.processed[id] = at
	}
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leads)
}

// gate releases the first n callers together.
type gate struct {
	mu      sync.Mutex
	n       int
	arrived int
	open    chan struct{}
}

func newGate(n int) *gate {
	return &gate{n: n, open: make(chan struct{})}
}

func (g *gate) wait() {
	g.mu.Lock()
	if g.arrived >= g.n {
		g.mu.Unlock()
		return
	}
	g.arrived++
	if g.arrived == g.n {
		close(g.open)
	}
	g.mu.Unlock()
	<-g.open
}

// fakeDirectory returns fixed matches and records calls.
type fakeDirectory struct {
	mu          sync.Mutex
	contact     *crm.ContactMatch
	client      *crm.ClientMatch
	contactErr  error
	clientErr   error
	clientCalls int
}

func (f *fakeDirectory) FindContact(context.Context, string) (*crm.ContactMatch, error) {
	return f.contact, f.contactErr
}

func (f *fakeDirectory) FindClient(context.Context, string) (*crm.ClientMatch, error) {
	f.mu.Lock()
	f.clientCalls++
	f.mu.Unlock()
	return f.client, f.clientErr
}

// noLock never serializes, leaving the unique index and the version check
// as the only guards.
type noLock struct{}

func (noLock) Lock(context.Context, string) (func(), error) { return func() {}, nil }
