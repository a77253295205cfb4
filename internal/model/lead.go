package model

import (
	"strings"
	"time"
)

// Strength is the ordered signal-strength tier of a lead.
type Strength string

const (
	StrengthCool     Strength = "COOL"
	StrengthWarm     Strength = "WARM"
	StrengthWarmPlus Strength = "WARM+"
	StrengthHot      Strength = "HOT"
)

// Rank returns the position of s in COOL < WARM < WARM+ < HOT. Unknown
// tiers rank 0 so they never win an upgrade.
func (s Strength) Rank() int {
	switch s {
	case StrengthCool:
		return 1
	case StrengthWarm:
		return 2
	case StrengthWarmPlus:
		return 3
	case StrengthHot:
		return 4
	}
	return 0
}

// Outranks reports whether s ranks strictly higher than other.
func (s Strength) Outranks(other Strength) bool {
	return s.Rank() > other.Rank()
}

// ParseStrength maps free-form provider output onto a tier. Unrecognized
// values return ok=false.
func ParseStrength(v string) (Strength, bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "COOL", "COLD":
		return StrengthCool, true
	case "WARM":
		return StrengthWarm, true
	case "WARM+", "WARM_PLUS", "WARMPLUS":
		return StrengthWarmPlus, true
	case "HOT":
		return StrengthHot, true
	}
	return "", false
}

// LeadStatus is a lead's pipeline stage.
type LeadStatus string

const (
	LeadStatusNew          LeadStatus = "new"
	LeadStatusReady        LeadStatus = "ready"
	LeadStatusContacted    LeadStatus = "contacted"
	LeadStatusQualified    LeadStatus = "qualified"
	LeadStatusDisqualified LeadStatus = "disqualified"
)

// LeadExtraction holds the facts an extractor derived from one Signal.
// A nil pointer means the provider found nothing for that field.
type LeadExtraction struct {
	ConceptName        string   `json:"concept_name"`
	IndustrySegment    string   `json:"industry_segment"`
	Website            *string  `json:"website,omitempty"`
	MentionedGeography []string `json:"mentioned_geography"`
	KeyPersonName      *string  `json:"key_person_name,omitempty"`
	KeyPersonTitle     *string  `json:"key_person_title,omitempty"`
	Summary            string   `json:"summary"`
}

// HasKeyPerson reports whether the extraction names a non-blank person.
func (e *LeadExtraction) HasKeyPerson() bool {
	return e.KeyPersonName != nil && strings.TrimSpace(*e.KeyPersonName) != ""
}

// ScoringResult is a provider's strength assessment for one extraction.
type ScoringResult struct {
	Strength     Strength `json:"strength"`
	Reasoning    string   `json:"reasoning"`
	GeoRelevance float64  `json:"geo_relevance"`
}

// Lead is the canonical, deduplicated prospective company. NormalizedName is
// unique across all leads.
type Lead struct {
	ID                int64      `json:"id"`
	ConceptName       string     `json:"concept_name"`
	NormalizedName    string     `json:"normalized_name"`
	Website           *string    `json:"website,omitempty"`
	IndustrySegment   string     `json:"industry_segment"`
	SignalStrength    Strength   `json:"signal_strength"`
	ScoreReasoning    string     `json:"score_reasoning"`
	TargetGeography   []string   `json:"target_geography"`
	GeoRelevance      float64    `json:"geo_relevance"`
	KeyPersonName     *string    `json:"key_person_name,omitempty"`
	KeyPersonTitle    *string    `json:"key_person_title,omitempty"`
	Status            LeadStatus `json:"status"`
	ExistingContactID *string    `json:"existing_contact_id,omitempty"`
	ExistingClientID  *string    `json:"existing_client_id,omitempty"`
	NewsOnly          bool       `json:"news_only"`
	FirstSeenAt       time.Time  `json:"first_seen_at"`
	LastSignalAt      time.Time  `json:"last_signal_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	// Version starts at 1 and grows by one on every update.
	Version           int64      `json:"version"`
}

// LeadPatch is a partial update. Only non-nil fields are written.
type LeadPatch struct {
	SignalStrength  *Strength
	ScoreReasoning  *string
	GeoRelevance    *float64
	KeyPersonName   *string
	KeyPersonTitle  *string
	TargetGeography []string
	Website         *string
	IndustrySegment *string
	LastSignalAt    *time.Time

	// IfVersion, when set, makes the update apply only while the stored
	// version still equals it. It is a guard, not a change.
	IfVersion *int64
}

// IsEmpty reports whether the patch changes nothing.
func (p LeadPatch) IsEmpty() bool {
	return p.SignalStrength == nil && p.ScoreReasoning == nil && p.GeoRelevance == nil &&
		p.KeyPersonName == nil && p.KeyPersonTitle == nil && p.TargetGeography == nil &&
		p.Website == nil && p.IndustrySegment == nil && p.LastSignalAt == nil
}

// LeadSignal links a Signal to the Lead it contributed to, with a snapshot
// of the extraction at link time. (LeadID, SignalID) is unique.
type LeadSignal struct {
	ID                 int64     `json:"id"`
	LeadID             int64     `json:"lead_id"`
	SignalID           int64     `json:"signal_id"`
	ExtractionSummary  string    `json:"extraction_summary"`
	MentionedGeography []string  `json:"mentioned_geography"`
	MentionedPerson    *string   `json:"mentioned_person,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// UnionGeography returns existing followed by every region in incoming not
// already present. Regions are trimmed and compared case-insensitively;
// blanks are dropped.
func UnionGeography(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	add := func(r string) {
		r = strings.TrimSpace(r)
		if r == "" {
			return
		}
		k := strings.ToLower(r)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	for _, r := range existing {
		add(r)
	}
	for _, r := range incoming {
		add(r)
	}
	return out
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
