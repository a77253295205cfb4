package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hunter/internal/model"
)

// maxPromptChars bounds the article text sent to a model.
const maxPromptChars = 12000

const systemPrompt = `You read business news and identify companies that are opening, expanding or relocating locations.

Reply with one JSON object and nothing else:
{
  "concept_name": "brand or company name as written, or empty string if the article is not about a specific expanding business",
  "industry_segment": "short segment such as restaurant, fitness, retail, healthcare",
  "website": "company domain if stated, else null",
  "mentioned_geography": ["US state codes or cities named as expansion targets"],
  "key_person_name": "named executive, founder or owner, else null",
  "key_person_title": "that person's title, else null",
  "summary": "one or two sentences on the expansion",
  "strength": "COOL | WARM | WARM+ | HOT",
  "reasoning": "why this strength",
  "geo_relevance": 0.0
}

Strength guide: HOT = signed lease, permits filed or opening date set; WARM+ = concrete plans with locations named; WARM = stated intent to expand; COOL = passing mention.
geo_relevance is 0 to 1: how much of the expansion falls inside the target regions.`

func systemText(regions []string) string {
	if len(regions) == 0 {
		return systemPrompt
	}
	return systemPrompt + "\nTarget regions: " + strings.Join(regions, ", ") + "."
}

func userPrompt(sig model.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", sig.Source)
	if sig.SourceURL != "" {
		fmt.Fprintf(&b, "URL: %s\n", sig.SourceURL)
	}
	if sig.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", sig.Title)
	}
	if sig.PublishedAt != nil {
		fmt.Fprintf(&b, "Published: %s\n", sig.PublishedAt.Format("2006-01-02"))
	}
	content := sig.RawContent
	if r := []rune(content); len(r) > maxPromptChars {
		content = string(r[:maxPromptChars])
	}
	b.WriteString("\n")
	b.WriteString(content)
	return b.String()
}

// modelReply is the JSON object a model returns.
type modelReply struct {
	ConceptName        string   `json:"concept_name"`
	IndustrySegment    string   `json:"industry_segment"`
	Website            *string  `json:"website"`
	MentionedGeography []string `json:"mentioned_geography"`
	KeyPersonName      *string  `json:"key_person_name"`
	KeyPersonTitle     *string  `json:"key_person_title"`
	Summary            string   `json:"summary"`
	Strength           string   `json:"strength"`
	Reasoning          string   `json:"reasoning"`
	GeoRelevance       float64  `json:"geo_relevance"`
}

// parseReply decodes a model reply. Blank optional strings become nil and
// an unrecognised strength falls back to COOL.
func parseReply(text string) (*model.LeadExtraction, *model.ScoringResult, error) {
	var r modelReply
	if err := json.Unmarshal([]byte(cleanJSON(text)), &r); err != nil {
		return nil, nil, eris.Wrap(err, "extract: parse model reply")
	}

	ext := &model.LeadExtraction{
		ConceptName:        strings.TrimSpace(r.ConceptName),
		IndustrySegment:    strings.TrimSpace(r.IndustrySegment),
		Website:            optional(r.Website),
		MentionedGeography: cleanList(r.MentionedGeography),
		KeyPersonName:      optional(r.KeyPersonName),
		KeyPersonTitle:     optional(r.KeyPersonTitle),
		Summary:            strings.TrimSpace(r.Summary),
	}
	if ext.KeyPersonName == nil {
		ext.KeyPersonTitle = nil
	}

	strength, ok := model.ParseStrength(r.Strength)
	if !ok {
		if ext.ConceptName != "" {
			zap.L().Debug("extract: unknown strength, using COOL", zap.String("strength", r.Strength))
		}
		strength = model.StrengthCool
	}
	score := &model.ScoringResult{
		Strength:     strength,
		Reasoning:    strings.TrimSpace(r.Reasoning),
		GeoRelevance: clamp01(r.GeoRelevance),
	}
	return ext, score, nil
}

// cleanJSON strips markdown fences and any prose around the outermost
// object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, "```"); ok {
		rest = strings.TrimPrefix(rest, "json")
		if i := strings.LastIndex(rest, "```"); i >= 0 {
			rest = rest[:i]
		}
		text = rest
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") || strings.EqualFold(v, "n/a") {
		return nil
	}
	return &v
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 1)
}
