package catalog

import (
	"encoding/json"

	"github.com/p-n-ai/pai-academy/internal/challenge"
)

// Kind is the type of content a section carries.
type Kind string

const (
	KindVideo     Kind = "video"
	KindGuideCard Kind = "guide_card"
	KindChallenge Kind = "challenge"
)

// Course is an ordered collection of sections.
type Course struct {
	ID          string    `yaml:"id" json:"id"`
	Title       string    `yaml:"title" json:"title"`
	Description string    `yaml:"description" json:"description,omitempty"`
	Sections    []Section `yaml:"sections" json:"sections"`
}

// Section is one step of a course and holds exactly one content item.
type Section struct {
	ID          string  `yaml:"id" json:"id"`
	CourseID    string  `yaml:"-" json:"course_id"`
	Name        string  `yaml:"name" json:"section_name"`
	OrderNumber int     `yaml:"order_number" json:"order_number"`
	Content     Content `yaml:"content" json:"content"`
}

// Content is a video, a guide card or a challenge.
type Content struct {
	ID              string  `yaml:"id" json:"id"`
	Kind            Kind    `yaml:"kind" json:"content_type"`
	Title           string  `yaml:"title" json:"title,omitempty"`
	VideoURL        string  `yaml:"video_url" json:"video_url,omitempty"`
	DurationSeconds float64 `yaml:"duration_seconds" json:"duration_seconds,omitempty"`
	GuideText       string  `yaml:"guide_text" json:"guide_text,omitempty"`

	// RawChallenge is challenge_data as written in the catalog file.
	RawChallenge any `yaml:"challenge_data" json:"-"`

	ChallengeData json.RawMessage      `yaml:"-" json:"-"`
	Challenge     challenge.Definition `yaml:"-" json:"-"`
}
