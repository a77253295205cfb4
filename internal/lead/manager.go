// Package lead merges extracted company signals into canonical leads.
package lead

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hunter/internal/crm"
	"github.com/sells-group/hunter/internal/db"
	"github.com/sells-group/hunter/internal/lock"
	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/textnorm"
)

// Store is the persistence subset the Manager needs.
type Store interface {
	GetLeadByNormalizedName(ctx context.Context, normalizedName string) (*model.Lead, error)
	CreateLead(ctx context.Context, lead *model.Lead) error
	UpdateLead(ctx context.Context, id int64, patch model.LeadPatch) (*model.Lead, error)
	CreateLeadSignal(ctx context.Context, ls *model.LeadSignal) error
	MarkSignalProcessed(ctx context.Context, id int64, at time.Time) error
}

// Manager creates and merges leads keyed by normalized concept name.
type Manager struct {
	store  Store
	crm    crm.Directory
	locker lock.Locker
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager. A nil directory never matches and a nil
// locker defaults to an in-process keyed lock.
func NewManager(st Store, dir crm.Directory, locker lock.Locker, opts ...Option) *Manager {
	if dir == nil {
		dir = crm.None{}
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	m := &Manager{store: st, crm: dir, locker: locker, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UpsertLead merges the extraction into the lead with the same normalized
// name, creating it when none exists. isNew reports whether this call
// created the lead.
func (m *Manager) UpsertLead(ctx context.Context, ext *model.LeadExtraction, score *model.ScoringResult) (*model.Lead, bool, error) {
	if ext == nil || strings.TrimSpace(ext.ConceptName) == "" {
		return nil, false, eris.New("lead: concept name is required")
	}
	if score == nil {
		score = &model.ScoringResult{}
	}

	key := textnorm.Normalize(ext.ConceptName)
	if key == "" {
		return nil, false, eris.Errorf("lead: concept name %q normalizes to empty", ext.ConceptName)
	}

	release, err := m.locker.Lock(ctx, key)
	if err != nil {
		return nil, false, eris.Wrapf(err, "lead: lock %q", key)
	}
	defer release()

	existing, err := m.store.GetLeadByNormalizedName(ctx, key)
	if err != nil {
		return nil, false, eris.Wrapf(err, "lead: lookup %q", ext.ConceptName)
	}
	if existing != nil {
		merged, err := m.merge(ctx, existing, ext, score)
		return merged, false, err
	}

	created, err := m.create(ctx, key, ext, score)
	if err == nil {
		return created, true, nil
	}
	if !db.IsUniqueViolation(err) {
		return nil, false, err
	}

	// Another process created the lead between lookup and insert.
	zap.L().Debug("lead: create lost race, merging",
		zap.String("normalized_name", key),
	)
	existing, err = m.store.GetLeadByNormalizedName(ctx, key)
	if err != nil {
		return nil, false, eris.Wrapf(err, "lead: re-fetch %q", ext.ConceptName)
	}
	if existing == nil {
		return nil, false, eris.Errorf("lead: %q vanished after duplicate insert", ext.ConceptName)
	}
	merged, err := m.merge(ctx, existing, ext, score)
	return merged, false, err
}

// mergePatch computes the update applying ext and score to existing. A nil
// key person or website on the lead means unknown; a stored value, even
// blank, is never replaced.
func mergePatch(existing *model.Lead, ext *model.LeadExtraction, score *model.ScoringResult, now time.Time) model.LeadPatch {
	patch := model.LeadPatch{LastSignalAt: &now}

	if score.Strength.Outranks(existing.SignalStrength) {
		patch.SignalStrength = model.Ptr(score.Strength)
		patch.ScoreReasoning = model.Ptr(score.Reasoning)
		patch.GeoRelevance = model.Ptr(score.GeoRelevance)
	}

	if existing.KeyPersonName == nil && ext.HasKeyPerson() {
		patch.KeyPersonName = model.Ptr(strings.TrimSpace(*ext.KeyPersonName))
		patch.KeyPersonTitle = ext.KeyPersonTitle
	}

	if geo := model.UnionGeography(existing.TargetGeography, ext.MentionedGeography); len(geo) > len(existing.TargetGeography) {
		patch.TargetGeography = geo
	}

	if existing.Website == nil && hasText(ext.Website) {
		patch.Website = model.Ptr(strings.TrimSpace(*ext.Website))
	}
	if strings.TrimSpace(existing.IndustrySegment) == "" && strings.TrimSpace(ext.IndustrySegment) != "" {
		patch.IndustrySegment = model.Ptr(strings.TrimSpace(ext.IndustrySegment))
	}

	return patch
}

// maxMergeAttempts bounds how often a merge is recomputed after losing a
// version race to another writer.
const maxMergeAttempts = 32

// merge applies ext to existing as a compare-and-set on the lead version,
// recomputing the patch from a fresh read whenever another writer got
// there first.
func (m *Manager) merge(ctx context.Context, existing *model.Lead, ext *model.LeadExtraction, score *model.ScoringResult) (*model.Lead, error) {
	for attempt := 1; ; attempt++ {
		patch := mergePatch(existing, ext, score, m.now().UTC())
		patch.IfVersion = model.Ptr(existing.Version)

		updated, err := m.store.UpdateLead(ctx, existing.ID, patch)
		if err == nil {
			zap.L().Info("lead: merged",
				zap.Int64("lead_id", updated.ID),
				zap.String("concept", updated.ConceptName),
				zap.String("strength", string(updated.SignalStrength)),
				zap.Bool("upgraded", patch.SignalStrength != nil),
			)
			return updated, nil
		}
		if !db.IsStaleWrite(err) || attempt >= maxMergeAttempts {
			return nil, eris.Wrapf(err, "lead: merge %q", ext.ConceptName)
		}

		zap.L().Debug("lead: merge raced, re-reading",
			zap.Int64("lead_id", existing.ID),
			zap.Int("attempt", attempt),
		)
		fresh, err := m.store.GetLeadByNormalizedName(ctx, existing.NormalizedName)
		if err != nil {
			return nil, eris.Wrapf(err, "lead: re-read %q", ext.ConceptName)
		}
		if fresh == nil {
			return nil, eris.Errorf("lead: %q vanished during merge", ext.ConceptName)
		}
		existing = fresh
	}
}

func (m *Manager) create(ctx context.Context, key string, ext *model.LeadExtraction, score *model.ScoringResult) (*model.Lead, error) {
	now := m.now().UTC()
	l := &model.Lead{
		ConceptName:     strings.TrimSpace(ext.ConceptName),
		NormalizedName:  key,
		IndustrySegment: strings.TrimSpace(ext.IndustrySegment),
		SignalStrength:  score.Strength,
		ScoreReasoning:  score.Reasoning,
		TargetGeography: model.UnionGeography(nil, ext.MentionedGeography),
		GeoRelevance:    score.GeoRelevance,
		Status:          model.LeadStatusNew,
		FirstSeenAt:     now,
		LastSignalAt:    now,
	}
	if hasText(ext.Website) {
		l.Website = model.Ptr(strings.TrimSpace(*ext.Website))
	}
	if ext.HasKeyPerson() {
		l.KeyPersonName = model.Ptr(strings.TrimSpace(*ext.KeyPersonName))
		l.KeyPersonTitle = ext.KeyPersonTitle
	}

	m.crossReference(ctx, l)

	if err := m.store.CreateLead(ctx, l); err != nil {
		return nil, eris.Wrapf(err, "lead: create %q", l.ConceptName)
	}

	zap.L().Info("lead: created",
		zap.Int64("lead_id", l.ID),
		zap.String("concept", l.ConceptName),
		zap.String("strength", string(l.SignalStrength)),
		zap.String("status", string(l.Status)),
	)
	return l, nil
}

// crossReference fills CRM ids and status. Directory failures count as no
// match.
func (m *Manager) crossReference(ctx context.Context, l *model.Lead) {
	contact, err := m.crm.FindContact(ctx, l.ConceptName)
	if err != nil {
		zap.L().Warn("lead: crm contact lookup failed",
			zap.String("concept", l.ConceptName),
			zap.Error(err),
		)
	} else if contact != nil {
		l.ExistingContactID = model.Ptr(contact.ID)
		if contact.ClientID != "" {
			l.ExistingClientID = model.Ptr(contact.ClientID)
		}
		l.Status = model.LeadStatusReady
	}

	if l.ExistingClientID != nil {
		return
	}
	client, err := m.crm.FindClient(ctx, l.ConceptName)
	if err != nil {
		zap.L().Warn("lead: crm client lookup failed",
			zap.String("concept", l.ConceptName),
			zap.Error(err),
		)
		return
	}
	if client != nil {
		l.ExistingClientID = model.Ptr(client.ID)
	}
}

// LinkSignalToLead records that signal contributed to the lead. Linking the
// same pair twice is a no-op; other failures are logged, not returned.
func (m *Manager) LinkSignalToLead(ctx context.Context, leadID int64, sig model.Signal, ext *model.LeadExtraction) {
	ls := &model.LeadSignal{
		LeadID:    leadID,
		SignalID:  sig.ID,
		CreatedAt: m.now().UTC(),
	}
	if ext != nil {
		ls.ExtractionSummary = ext.Summary
		ls.MentionedGeography = model.UnionGeography(nil, ext.MentionedGeography)
		if ext.HasKeyPerson() {
			ls.MentionedPerson = model.Ptr(strings.TrimSpace(*ext.KeyPersonName))
		}
	}

	err := m.store.CreateLeadSignal(ctx, ls)
	switch {
	case err == nil:
	case db.IsUniqueViolation(err):
		zap.L().Debug("lead: signal already linked",
			zap.Int64("lead_id", leadID),
			zap.Int64("signal_id", sig.ID),
		)
	default:
		zap.L().Warn("lead: link signal failed",
			zap.Int64("lead_id", leadID),
			zap.Int64("signal_id", sig.ID),
			zap.Error(err),
		)
	}
}

// MarkSignalProcessed flags the signal as handled. Failures are logged, not
// returned.
func (m *Manager) MarkSignalProcessed(ctx context.Context, signalID int64) {
	if err := m.store.MarkSignalProcessed(ctx, signalID, m.now().UTC()); err != nil {
		zap.L().Warn("lead: mark signal processed failed",
			zap.Int64("signal_id", signalID),
			zap.Error(err),
		)
	}
}

func hasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
