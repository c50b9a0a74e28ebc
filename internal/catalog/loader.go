// Package catalog provides read-only course, section and content lookup.
// Courses are loaded from YAML files, one course per file.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-academy/internal/challenge"
)

// Catalog indexes courses and their sections by ID.
type Catalog struct {
	courses         map[string]Course
	sections        map[string]Section
	contentSections map[string]Section
	mu              sync.RWMutex
}

// New creates a catalog from in-memory courses.
func New(courses ...Course) (*Catalog, error) {
	c := empty()
	for _, course := range courses {
		if err := c.Add(course); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Load reads every course YAML file under rootDir.
func Load(rootDir string) (*Catalog, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("loading catalog: %s is not a directory", rootDir)
	}

	c := empty()
	err = filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		return c.loadCourse(path)
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	slog.Info("catalog loaded", "courses", len(c.courses), "sections", len(c.sections))
	return c, nil
}

func empty() *Catalog {
	return &Catalog{
		courses:         make(map[string]Course),
		sections:        make(map[string]Section),
		contentSections: make(map[string]Section),
	}
}

func (c *Catalog) loadCourse(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var course Course
	if err := yaml.Unmarshal(data, &course); err != nil {
		slog.Warn("skipping invalid course YAML", "path", path, "error", err)
		return nil
	}
	if course.ID == "" {
		return nil // Not a course file
	}

	if err := c.Add(course); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Add validates a course and indexes it. Section order numbers must be unique
// and at least 1; every section needs a content item of a known kind.
func (c *Catalog) Add(course Course) error {
	if course.ID == "" {
		return fmt.Errorf("course id is required")
	}

	sections := make([]Section, len(course.Sections))
	copy(sections, course.Sections)
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].OrderNumber < sections[j].OrderNumber
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.courses[course.ID]; dup {
		return fmt.Errorf("duplicate course id: %s", course.ID)
	}

	seenSection := make(map[string]bool, len(sections))
	seenContent := make(map[string]bool, len(sections))
	for i := range sections {
		s := &sections[i]
		s.CourseID = course.ID

		switch {
		case s.ID == "":
			return fmt.Errorf("course %s: section at order %d has no id", course.ID, s.OrderNumber)
		case s.OrderNumber < 1:
			return fmt.Errorf("course %s: section %s has order_number %d, want >= 1", course.ID, s.ID, s.OrderNumber)
		case i > 0 && sections[i-1].OrderNumber == s.OrderNumber:
			return fmt.Errorf("course %s: sections %s and %s share order_number %d",
				course.ID, sections[i-1].ID, s.ID, s.OrderNumber)
		case seenSection[s.ID] || c.hasSection(s.ID):
			return fmt.Errorf("course %s: duplicate section id: %s", course.ID, s.ID)
		case s.Content.ID == "":
			return fmt.Errorf("course %s: section %s has no content id", course.ID, s.ID)
		case seenContent[s.Content.ID] || c.hasContent(s.Content.ID):
			return fmt.Errorf("course %s: duplicate content id: %s", course.ID, s.Content.ID)
		}
		seenSection[s.ID] = true
		seenContent[s.Content.ID] = true

		if err := prepareContent(&s.Content); err != nil {
			return fmt.Errorf("course %s: section %s: %w", course.ID, s.ID, err)
		}
	}

	course.Sections = sections
	c.courses[course.ID] = course
	for _, s := range sections {
		c.sections[s.ID] = s
		c.contentSections[s.Content.ID] = s
	}
	return nil
}

func prepareContent(content *Content) error {
	switch content.Kind {
	case KindVideo, KindGuideCard:
		return nil
	case KindChallenge:
	default:
		return fmt.Errorf("content %s: unknown kind %q", content.ID, content.Kind)
	}

	if content.Challenge != nil {
		return nil
	}
	if len(content.ChallengeData) == 0 {
		if content.RawChallenge == nil {
			return fmt.Errorf("content %s: challenge_data is required", content.ID)
		}
		raw, err := json.Marshal(content.RawChallenge)
		if err != nil {
			return fmt.Errorf("content %s: encode challenge_data: %w", content.ID, err)
		}
		content.ChallengeData = raw
	}

	def, err := challenge.Parse(content.ChallengeData)
	if err != nil {
		return fmt.Errorf("content %s: %w", content.ID, err)
	}
	content.Challenge = def
	return nil
}

func (c *Catalog) hasSection(id string) bool {
	_, ok := c.sections[id]
	return ok
}

func (c *Catalog) hasContent(id string) bool {
	_, ok := c.contentSections[id]
	return ok
}

// Course returns a course with its sections in ascending order.
func (c *Catalog) Course(id string) (Course, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	course, ok := c.courses[id]
	return course, ok
}

// Section returns a section by ID.
func (c *Catalog) Section(id string) (Section, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sections[id]
	return s, ok
}

// ContentSection returns the section that holds the given content.
func (c *Catalog) ContentSection(contentID string) (Section, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.contentSections[contentID]
	return s, ok
}

// SectionByOrder returns the section of a course at the given order number.
func (c *Catalog) SectionByOrder(courseID string, order int) (Section, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	course, ok := c.courses[courseID]
	if !ok {
		return Section{}, false
	}
	for _, s := range course.Sections {
		if s.OrderNumber == order {
			return s, true
		}
	}
	return Section{}, false
}

// AllCourses returns every loaded course ordered by ID.
func (c *Catalog) AllCourses() []Course {
	c.mu.RLock()
	defer c.mu.RUnlock()
	courses := make([]Course, 0, len(c.courses))
	for _, course := range c.courses {
		courses = append(courses, course)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses
}
