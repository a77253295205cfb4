package extract

import (
	"time"

	"github.com/sells-group/hunter/internal/model"
)

const bluebirdReply = `{"concept_name":"Bluebird Tacos","industry_segment":"restaurant","website":"bluebirdtacos.com",` +
	`"mentioned_geography":["TX"," "],"key_person_name":"null","key_person_title":"Founder",` +
	`"summary":"Signed a lease in Austin.","strength":"warm_plus","reasoning":"lease signed","geo_relevance":1.4}`

func bluebirdSignal() model.Signal {
	pub := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	return model.Signal{
		ID:          7,
		Source:      "austin-biz",
		SourceURL:   "https://news.example.com/bluebird",
		Title:       "Bluebird Tacos to open in Austin",
		PublishedAt: &pub,
		ContentType: model.ContentTypeArticle,
		RawContent: "Bluebird Tacos has signed a lease for a 2,400-square-foot space in Austin, TX, the company said Monday. " +
			"Founder Maria Lopez said the chain plans to open three more locations in Texas and Florida by next year. " +
			"Details at bluebirdtacos.com.",
	}
}

func fastCall(m *modelCall) {
	m.policy.Base = time.Millisecond
	m.policy.Max = 5 * time.Millisecond
	m.policy.OnRetry = nil
}
