package progression_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/p-n-ai/pai-academy/internal/catalog"
	"github.com/p-n-ai/pai-academy/internal/progress"
	"github.com/p-n-ai/pai-academy/internal/progression"
)

// testCourse is, in order: video, guide card, single-choice challenge,
// video, descriptive challenge, guide card.
func testCourse() catalog.Course {
	return catalog.Course{
		ID:    "astro",
		Title: "Astronomy",
		Sections: []catalog.Section{
			{ID: "s1", Name: "Intro video", OrderNumber: 1, Content: catalog.Content{ID: "v1", Kind: catalog.KindVideo, DurationSeconds: 100}},
			{ID: "s2", Name: "Star facts", OrderNumber: 2, Content: catalog.Content{ID: "g1", Kind: catalog.KindGuideCard, GuideText: "Stars emit light."}},
			{ID: "s3", Name: "Quick check", OrderNumber: 3, Content: catalog.Content{ID: "q1", Kind: catalog.KindChallenge,
				ChallengeData: json.RawMessage(`{"type":"multiple_choice_single","question":"Which is a star?","options":["A","B","C"],"correct_option":"B"}`)}},
			{ID: "s4", Name: "The Sun", OrderNumber: 4, Content: catalog.Content{ID: "v2", Kind: catalog.KindVideo, DurationSeconds: 300}},
			{ID: "s5", Name: "Explain it", OrderNumber: 5, Content: catalog.Content{ID: "q2", Kind: catalog.KindChallenge,
				ChallengeData: json.RawMessage(`{"type":"descriptive","sub_questions":[{"question":"What is the Sun?","answer":"The Sun is a star that emits light and heat."}]}`)}},
			{ID: "s6", Name: "Summary", OrderNumber: 6, Content: catalog.Content{ID: "g2", Kind: catalog.KindGuideCard}},
		},
	}
}

type fixture struct {
	cat     *catalog.Catalog
	store   *progress.MemoryStore
	events  *progression.MemoryEventLogger
	service *progression.Service
}

func newFixture(t *testing.T, courses ...catalog.Course) *fixture {
	t.Helper()
	if len(courses) == 0 {
		courses = []catalog.Course{testCourse()}
	}
	cat, err := catalog.New(courses...)
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	f := &fixture{
		cat:    cat,
		store:  progress.NewMemoryStore(),
		events: progression.NewMemoryEventLogger(),
	}
	f.service = progression.NewService(progression.ServiceConfig{
		Catalog: cat,
		Store:   f.store,
		Events:  f.events,
	})
	return f
}

func (f *fixture) watch(t *testing.T, userID, contentID string, watched, total float64) {
	t.Helper()
	if _, err := f.service.RecordVideoWatch(context.Background(), userID, contentID, watched, total); err != nil {
		t.Fatalf("RecordVideoWatch(%s, %v/%v) error = %v", contentID, watched, total, err)
	}
}

func (f *fixture) submit(t *testing.T, userID, contentID, answers string) progression.Outcome {
	t.Helper()
	out, err := f.service.SubmitChallenge(context.Background(), userID, contentID, json.RawMessage(answers))
	if err != nil {
		t.Fatalf("SubmitChallenge(%s, %s) error = %v", contentID, answers, err)
	}
	return out
}

func (f *fixture) unlocked(t *testing.T, userID string) []bool {
	t.Helper()
	statuses, err := f.service.Gate().SectionStatuses(context.Background(), userID, "astro")
	if err != nil {
		t.Fatalf("SectionStatuses() error = %v", err)
	}
	out := make([]bool, len(statuses))
	for i, s := range statuses {
		out[i] = s.IsUnlocked
	}
	return out
}

func (f *fixture) section(t *testing.T, id string) catalog.Section {
	t.Helper()
	s, ok := f.cat.Section(id)
	if !ok {
		t.Fatalf("section %s not in catalog", id)
	}
	return s
}

func equalBools(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
