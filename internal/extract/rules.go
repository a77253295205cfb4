package extract

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/sells-group/hunter/internal/model"
)

var (
	// Up to five capitalised words before an expansion verb phrase.
	companyRe = regexp.MustCompile(
		`((?:[A-Z0-9][\w&'’.-]*\s+){0,4}[A-Z0-9][\w&'’.-]*)\s+` +
			`(?:is opening|will open|opens|plans to open|plans to expand|is expanding|is coming|` +
			`has signed|signed a lease|is set to open|announced plans|is launching|will debut|is bringing|to open|to expand)`)

	personBeforeRe = regexp.MustCompile(
		`\b(?i:(co-founder|founder|ceo|chief executive officer|owner|president|managing partner|franchisee))` +
			`\s+([A-Z][a-z]+(?:\s+[A-Z][a-z'-]+){1,2})`)
	personAfterRe = regexp.MustCompile(
		`([A-Z][a-z]+(?:\s+[A-Z][a-z'-]+){1,2}),\s+(?:the\s+)?(?:brand's\s+|company's\s+)?` +
			`(?i:(co-founder|founder|ceo|chief executive officer|owner|president|managing partner|franchisee))`)

	domainRe = regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.)?([a-z0-9][a-z0-9-]*\.(?:com|net|co|io|org|us|biz))\b`)

	stateCodeRe = regexp.MustCompile(`,\s*([A-Z]{2})\b`)
)

var leadingNoise = []string{"The ", "A ", "An ", "Local ", "Popular ", "Beloved "}

var notCompany = map[string]bool{
	"it": true, "we": true, "they": true, "he": true, "she": true, "this": true,
	"that": true, "company": true, "brand": true, "chain": true, "restaurant": true,
}

type trigger struct {
	phrase string
	weight int
}

// triggers score how concrete an expansion is.
var triggers = []trigger{
	{"signed a lease", 3},
	{"lease signed", 3},
	{"permit", 2},
	{"under construction", 2},
	{"grand opening", 2},
	{"opening date", 2},
	{"coming soon", 2},
	{"plans to open", 2},
	{"will open", 2},
	{"funding", 1},
	{"raised", 1},
	{"new location", 1},
	{"expansion", 1},
	{"expanding", 1},
	{"franchise", 1},
	{"multi-unit", 1},
}

var segments = []struct {
	name     string
	keywords []string
}{
	{"restaurant", []string{"restaurant", "cafe", "café", "taco", "pizza", "burger", "grill", "kitchen", "bakery", "coffee", "eatery"}},
	{"fitness", []string{"fitness", "gym", "yoga", "pilates", "crossfit"}},
	{"healthcare", []string{"clinic", "dental", "medical", "urgent care", "pharmacy"}},
	{"personal care", []string{"salon", "spa", "barber", "nail"}},
	{"retail", []string{"retail", "store", "boutique", "shop"}},
	{"hospitality", []string{"hotel", "motel", "resort"}},
}

// RuleExtractor extracts leads with text heuristics and no network calls.
type RuleExtractor struct {
	regions map[string]bool
}

// NewRuleExtractor builds a rule extractor scoring geography against
// regions (state codes or names).
func NewRuleExtractor(regions []string) *RuleExtractor {
	set := make(map[string]bool, len(regions))
	for _, r := range regions {
		if code := stateCode(r); code != "" {
			set[code] = true
		} else if r = strings.TrimSpace(r); r != "" {
			set[strings.ToUpper(r)] = true
		}
	}
	return &RuleExtractor{regions: set}
}

// Name implements Extractor.
func (e *RuleExtractor) Name() string { return "rules" }

// Extract implements Extractor.
func (e *RuleExtractor) Extract(ctx context.Context, sig model.Signal) (*model.LeadExtraction, *model.ScoringResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	text := sig.Title + ".\n" + sig.RawContent
	ext := &model.LeadExtraction{
		ConceptName:        findCompany(sig.Title, sig.RawContent),
		IndustrySegment:    findSegment(text),
		Website:            findWebsite(sig.RawContent, sig.SourceURL),
		MentionedGeography: findStates(text),
		Summary:            firstSentence(sig.RawContent),
	}
	if ext.ConceptName == "" {
		return ext, &model.ScoringResult{Strength: model.StrengthCool}, nil
	}
	ext.KeyPersonName, ext.KeyPersonTitle = findPerson(sig.RawContent)

	score, matched := scoreTriggers(strings.ToLower(text))
	reasoning := "no expansion triggers found"
	if len(matched) > 0 {
		reasoning = "matched: " + strings.Join(matched, ", ")
	}
	return ext, &model.ScoringResult{
		Strength:     strengthFor(score),
		Reasoning:    reasoning,
		GeoRelevance: e.geoRelevance(ext.MentionedGeography),
	}, nil
}

// geoRelevance is the share of mentioned regions inside the target set.
func (e *RuleExtractor) geoRelevance(mentioned []string) float64 {
	if len(mentioned) == 0 || len(e.regions) == 0 {
		return 0
	}
	hits := 0
	for _, m := range mentioned {
		if e.regions[strings.ToUpper(m)] {
			hits++
		}
	}
	return float64(hits) / float64(len(mentioned))
}

func findCompany(title, content string) string {
	for _, s := range []string{title, content} {
		for _, m := range companyRe.FindAllStringSubmatch(s, -1) {
			if name := trimCompany(m[1]); name != "" {
				return name
			}
		}
	}
	return ""
}

func trimCompany(name string) string {
	name = strings.TrimSpace(name)
	for changed := true; changed; {
		changed = false
		for _, p := range leadingNoise {
			if rest, ok := strings.CutPrefix(name, p); ok {
				name, changed = rest, true
			}
		}
	}
	name = strings.TrimRight(name, ".,;:")
	if len([]rune(name)) < 2 || notCompany[strings.ToLower(name)] || stateCode(name) != "" {
		return ""
	}
	return name
}

func findPerson(content string) (*string, *string) {
	if m := personBeforeRe.FindStringSubmatch(content); m != nil {
		name, title := m[2], titleCase(m[1])
		return &name, &title
	}
	if m := personAfterRe.FindStringSubmatch(content); m != nil {
		name, title := m[1], titleCase(m[2])
		return &name, &title
	}
	return nil, nil
}

func titleCase(t string) string {
	switch strings.ToLower(t) {
	case "ceo":
		return "CEO"
	case "chief executive officer":
		return "Chief Executive Officer"
	}
	words := strings.Fields(strings.ToLower(t))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func findSegment(text string) string {
	lower := strings.ToLower(text)
	for _, s := range segments {
		for _, k := range s.keywords {
			if strings.Contains(lower, k) {
				return s.name
			}
		}
	}
	return ""
}

func findWebsite(content, sourceURL string) *string {
	var own string
	if u, err := url.Parse(sourceURL); err == nil {
		own = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	for _, m := range domainRe.FindAllStringSubmatch(content, -1) {
		d := strings.ToLower(m[1])
		if d != own && !strings.HasSuffix(own, "."+d) {
			return &d
		}
	}
	return nil
}

// findStates returns two-letter codes in order of first mention.
func findStates(text string) []string {
	type hit struct {
		pos  int
		code string
	}
	var hits []hit
	// Same length, so offsets stay aligned with text.
	masked := strings.ReplaceAll(text, "West Virginia", "West ########")
	for name, code := range stateNames {
		src := text
		if name == "Virginia" {
			src = masked
		}
		if i := indexWord(src, name); i >= 0 {
			hits = append(hits, hit{i, code})
		}
	}
	for _, m := range stateCodeRe.FindAllStringSubmatchIndex(text, -1) {
		code := text[m[2]:m[3]]
		if validCodes[code] {
			hits = append(hits, hit{m[2], code})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return a.pos - b.pos })

	out := []string{}
	for _, h := range hits {
		if !slices.Contains(out, h.code) {
			out = append(out, h.code)
		}
	}
	return out
}

// indexWord finds word in text at word boundaries.
func indexWord(text, word string) int {
	from := 0
	for {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(word)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return i
		}
		from = end
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func scoreTriggers(lower string) (int, []string) {
	score := 0
	var matched []string
	for _, t := range triggers {
		if strings.Contains(lower, t.phrase) {
			score += t.weight
			matched = append(matched, fmt.Sprintf("%s(+%d)", t.phrase, t.weight))
		}
	}
	return score, matched
}

func strengthFor(score int) model.Strength {
	switch {
	case score >= 5:
		return model.StrengthHot
	case score >= 3:
		return model.StrengthWarmPlus
	case score >= 2:
		return model.StrengthWarm
	}
	return model.StrengthCool
}

func firstSentence(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if i := strings.Index(content, ". "); i >= 0 {
		content = content[:i+1]
	}
	if r := []rune(content); len(r) > 280 {
		content = string(r[:280])
	}
	return content
}

// stateCode maps a state name or code to its two-letter code.
func stateCode(s string) string {
	s = strings.TrimSpace(s)
	if up := strings.ToUpper(s); validCodes[up] {
		return up
	}
	for name, code := range stateNames {
		if strings.EqualFold(name, s) {
			return code
		}
	}
	return ""
}

var stateNames = map[string]string{
	"Alabama": "AL", "Alaska": "AK", "Arizona": "AZ", "Arkansas": "AR", "California": "CA",
	"Colorado": "CO", "Connecticut": "CT", "Delaware": "DE", "Florida": "FL", "Georgia": "GA",
	"Hawaii": "HI", "Idaho": "ID", "Illinois": "IL", "Indiana": "IN", "Iowa": "IA",
	"Kansas": "KS", "Kentucky": "KY", "Louisiana": "LA", "Maine": "ME", "Maryland": "MD",
	"Massachusetts": "MA", "Michigan": "MI", "Minnesota": "MN", "Mississippi": "MS", "Missouri": "MO",
	"Montana": "MT", "Nebraska": "NE", "Nevada": "NV", "New Hampshire": "NH", "New Jersey": "NJ",
	"New Mexico": "NM", "New York": "NY", "North Carolina": "NC", "North Dakota": "ND", "Ohio": "OH",
	"Oklahoma": "OK", "Oregon": "OR", "Pennsylvania": "PA", "Rhode Island": "RI", "South Carolina": "SC",
	"South Dakota": "SD", "Tennessee": "TN", "Texas": "TX", "Utah": "UT", "Vermont": "VT",
	"Virginia": "VA", "Washington": "WA", "West Virginia": "WV", "Wisconsin": "WI", "Wyoming": "WY",
	"District of Columbia": "DC",
}

var validCodes = func() map[string]bool {
	m := make(map[string]bool, len(stateNames))
	for _, c := range stateNames {
		m[c] = true
	}
	return m
}()
