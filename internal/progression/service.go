package progression

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/p-n-ai/pai-academy/internal/catalog"
	"github.com/p-n-ai/pai-academy/internal/challenge"
	"github.com/p-n-ai/pai-academy/internal/progress"
)

const (
	msgPassed        = "Challenge passed! Next section unlocked."
	msgPassedLast    = "Challenge passed! You have completed the course."
	msgAlreadyPassed = "Challenge already passed."
	msgExhausted     = "You've used all attempts. Review previous sections."
)

// ServiceConfig holds dependencies for the progression service.
type ServiceConfig struct {
	Catalog   *catalog.Catalog
	Store     progress.Store       // default: in-memory store
	Evaluator *challenge.Evaluator // default: overlap grading at 0.6
	Events    EventLogger          // default: NopEventLogger
	Cache     StatusCache          // default: NopStatusCache
}

// Service records video progress and challenge submissions and answers
// section access queries.
type Service struct {
	catalog   *catalog.Catalog
	store     progress.Store
	evaluator *challenge.Evaluator
	events    EventLogger
	cache     StatusCache
	gate      *Gate
}

// Outcome is the result of one challenge submission.
type Outcome struct {
	IsCorrect             bool   `json:"is_correct"`
	Message               string `json:"message"`
	AttemptNumber         int    `json:"attempt_number,omitempty"`
	AttemptsRemaining     *int   `json:"attempts_remaining,omitempty"`
	NextSectionUnlocked   bool   `json:"next_section_unlocked"`
	NextSectionOrder      *int   `json:"next_section_order,omitempty"`
	VideoProgressReset    bool   `json:"video_progress_reset,omitempty"`
	RequiresVideoReview   bool   `json:"requires_video_review,omitempty"`
	RevisitSections       []int  `json:"revisit_sections,omitempty"`
	ChallengeSectionOrder int    `json:"challenge_section_order,omitempty"`
	AlreadyPassed         bool   `json:"already_passed,omitempty"`
}

// SectionView is an unlocked section with the caller's progress on it.
type SectionView struct {
	Section           catalog.Section         `json:"section"`
	ChallengeData     json.RawMessage         `json:"challenge_data,omitempty"`
	WatchProgress     *progress.WatchProgress `json:"watch_progress,omitempty"`
	AttemptsUsed      int                     `json:"attempts_used"`
	AttemptsRemaining int                     `json:"attempts_remaining"`
	Passed            bool                    `json:"passed"`
}

// NewService creates a progression service.
func NewService(cfg ServiceConfig) *Service {
	cat := cfg.Catalog
	if cat == nil {
		cat, _ = catalog.New()
	}
	store := cfg.Store
	if store == nil {
		store = progress.NewMemoryStore()
	}
	evaluator := cfg.Evaluator
	if evaluator == nil {
		evaluator = challenge.NewEvaluator(challenge.EvaluatorConfig{})
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NopStatusCache{}
	}
	return &Service{
		catalog:   cat,
		store:     store,
		evaluator: evaluator,
		events:    events,
		cache:     cache,
		gate:      NewGate(cat, store),
	}
}

// Gate returns the service's progression gate.
func (s *Service) Gate() *Gate { return s.gate }

// RecordVideoWatch stores how far a user has watched a video and whether that
// reaches the completion ratio.
func (s *Service) RecordVideoWatch(ctx context.Context, userID, contentID string, watched, total float64) (progress.WatchProgress, error) {
	if userID == "" {
		return progress.WatchProgress{}, invalid("user_id", "is required")
	}
	if math.IsNaN(watched) || math.IsInf(watched, 0) || math.IsNaN(total) || math.IsInf(total, 0) {
		return progress.WatchProgress{}, invalid("duration", "must be a finite number")
	}
	if total <= 0 {
		return progress.WatchProgress{}, invalid("total_seconds", "must be greater than 0")
	}
	if watched < 0 || watched > total {
		return progress.WatchProgress{}, invalid("watched_seconds", "must be between 0 and total_seconds")
	}

	section, ok := s.catalog.ContentSection(contentID)
	if !ok {
		return progress.WatchProgress{}, notFound("content", contentID)
	}
	if section.Content.Kind != catalog.KindVideo {
		return progress.WatchProgress{}, invalid("content_id", "content %s is a %s, not a video", contentID, section.Content.Kind)
	}

	var saved progress.WatchProgress
	var wasCompleted bool
	err := s.store.WithinTx(ctx, userID, contentID, func(tx progress.Tx) error {
		prev, err := tx.GetWatchProgress(ctx, userID, contentID)
		switch {
		case err == nil:
			wasCompleted = prev.IsCompleted
		case !errors.Is(err, progress.ErrNotFound):
			return err
		}

		saved, err = tx.SaveWatchProgress(ctx, progress.WatchProgress{
			UserID:          userID,
			ContentID:       contentID,
			WatchedDuration: watched,
			TotalDuration:   total,
			IsCompleted:     progress.IsCompleted(watched, total),
		})
		return err
	})
	if err != nil {
		return progress.WatchProgress{}, fmt.Errorf("record video watch: %w", err)
	}

	s.invalidate(ctx, userID)
	s.logEvent(ctx, Event{
		UserID:    userID,
		ContentID: contentID,
		EventType: EventVideoProgress,
		Data: map[string]any{
			"watched_seconds":  watched,
			"total_seconds":    total,
			"progress_percent": saved.ProgressPercent(),
		},
	})
	if saved.IsCompleted && !wasCompleted {
		s.logEvent(ctx, Event{
			UserID:    userID,
			ContentID: contentID,
			EventType: EventVideoCompleted,
			Data:      map[string]any{"section_order": section.OrderNumber},
		})
	}

	return saved, nil
}

// SubmitChallenge grades answers for a challenge and applies the attempt
// budget. A passed challenge is not graded again.
func (s *Service) SubmitChallenge(ctx context.Context, userID, contentID string, answers json.RawMessage) (Outcome, error) {
	if userID == "" {
		return Outcome{}, invalid("user_id", "is required")
	}
	if trimmed := bytes.TrimSpace(answers); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Outcome{}, invalid("answers", "is required")
	}

	section, ok := s.catalog.ContentSection(contentID)
	if !ok {
		return Outcome{}, notFound("content", contentID)
	}
	if section.Content.Kind != catalog.KindChallenge {
		return Outcome{}, invalid("content_id", "content %s is a %s, not a challenge", contentID, section.Content.Kind)
	}
	course, ok := s.catalog.Course(section.CourseID)
	if !ok {
		return Outcome{}, notFound("course", section.CourseID)
	}
	idx := indexOf(course.Sections, section.ID)
	if idx < 0 {
		return Outcome{}, notFound("section", section.ID)
	}

	var next *catalog.Section
	if idx+1 < len(course.Sections) {
		next = &course.Sections[idx+1]
	}
	video := prerequisiteVideo(course.Sections, idx)

	var out Outcome
	err := s.store.WithinTx(ctx, userID, contentID, func(tx progress.Tx) error {
		// Access is decided under the pair lock.
		accessible, err := accessibleTx(ctx, tx, userID, course.Sections, idx)
		if err != nil {
			return err
		}
		if !accessible {
			return ErrSectionLocked
		}

		passed, err := tx.HasSuccessfulAttempt(ctx, userID, contentID)
		if err != nil {
			return err
		}
		if passed {
			out = passedOutcome(next)
			out.Message = msgAlreadyPassed
			out.AlreadyPassed = true
			return nil
		}

		count, err := tx.CountAttempts(ctx, userID, contentID)
		if err != nil {
			return err
		}
		number := count + 1
		correct := s.evaluator.Evaluate(section.Content.Challenge, answers)

		if _, err := tx.CreateAttempt(ctx, progress.Attempt{
			UserID:        userID,
			ContentID:     contentID,
			AttemptNumber: number,
			IsSuccessful:  correct,
		}); err != nil {
			return err
		}

		switch {
		case correct:
			out = passedOutcome(next)
		case number >= MaxAttempts:
			if video >= 0 {
				if _, err := tx.ResetWatchProgress(ctx, userID, course.Sections[video].Content.ID); err != nil {
					return err
				}
			}
			if _, err := tx.DeleteAttempts(ctx, userID, contentID); err != nil {
				return err
			}
			out = Outcome{
				Message:               msgExhausted,
				AttemptsRemaining:     intPtr(0),
				VideoProgressReset:    video >= 0,
				RequiresVideoReview:   video >= 0,
				RevisitSections:       revisitOrders(course.Sections, idx, video),
				ChallengeSectionOrder: section.OrderNumber,
			}
		default:
			remaining := MaxAttempts - number
			out = Outcome{
				Message:           failedMessage(remaining),
				AttemptsRemaining: intPtr(remaining),
			}
		}
		out.AttemptNumber = number
		return nil
	})
	if errors.Is(err, ErrSectionLocked) {
		return Outcome{}, ErrSectionLocked
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("submit challenge: %w", err)
	}

	if out.AlreadyPassed {
		return out, nil
	}

	s.invalidate(ctx, userID)
	s.logEvent(ctx, Event{
		UserID:    userID,
		ContentID: contentID,
		EventType: EventChallengeAttempted,
		Data: map[string]any{
			"attempt_number": out.AttemptNumber,
			"is_correct":     out.IsCorrect,
			"challenge_type": string(challenge.PeekType(section.Content.ChallengeData)),
		},
	})
	switch {
	case out.IsCorrect:
		s.logEvent(ctx, Event{
			UserID:    userID,
			ContentID: contentID,
			EventType: EventChallengePassed,
			Data:      map[string]any{"attempt_number": out.AttemptNumber, "section_order": section.OrderNumber},
		})
	case out.RevisitSections != nil:
		s.logEvent(ctx, Event{
			UserID:    userID,
			ContentID: contentID,
			EventType: EventChallengeExhausted,
			Data: map[string]any{
				"section_order":    section.OrderNumber,
				"revisit_sections": out.RevisitSections,
				"video_reset":      out.VideoProgressReset,
			},
		})
	}

	return out, nil
}

func passedOutcome(next *catalog.Section) Outcome {
	out := Outcome{IsCorrect: true, Message: msgPassedLast}
	if next != nil {
		out.Message = msgPassed
		out.NextSectionUnlocked = true
		out.NextSectionOrder = intPtr(next.OrderNumber)
	}
	return out
}

func failedMessage(remaining int) string {
	if remaining == 1 {
		return "Challenge failed. 1 attempt left."
	}
	return fmt.Sprintf("Challenge failed. %d attempts left.", remaining)
}

// SectionStatuses lists a course's sections with the user's unlock state.
func (s *Service) SectionStatuses(ctx context.Context, userID, courseID string) ([]SectionStatus, error) {
	gen, err := s.cache.Generation(ctx, userID)
	cacheable := err == nil
	if err != nil {
		slog.Warn("failed to read status cache generation", "user_id", userID, "error", err)
	}
	if cacheable {
		if statuses, ok := s.cache.Get(ctx, courseID, userID, gen); ok {
			return statuses, nil
		}
	}

	statuses, err := s.gate.SectionStatuses(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if err := s.cache.Set(ctx, courseID, userID, gen, statuses); err != nil {
			slog.Warn("failed to cache section statuses", "user_id", userID, "course_id", courseID, "error", err)
		}
	}
	return statuses, nil
}

// NextSections returns the statuses of the sections that follow sectionID
// within the unlock window.
func (s *Service) NextSections(ctx context.Context, userID, sectionID string) ([]SectionStatus, error) {
	from, ok := s.catalog.Section(sectionID)
	if !ok {
		return nil, notFound("section", sectionID)
	}
	next := s.gate.NextUnlockableSections(from)
	if len(next) == 0 {
		return []SectionStatus{}, nil
	}

	all, err := s.SectionStatuses(ctx, userID, from.CourseID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]SectionStatus, len(all))
	for _, st := range all {
		byID[st.SectionID] = st
	}

	out := make([]SectionStatus, 0, len(next))
	for _, n := range next {
		out = append(out, byID[n.ID])
	}
	return out, nil
}

// SectionContent returns the section at order in a course, or ErrSectionLocked
// when the user may not open it yet. Challenge answers are redacted.
func (s *Service) SectionContent(ctx context.Context, userID, courseID string, order int) (SectionView, error) {
	if _, ok := s.catalog.Course(courseID); !ok {
		return SectionView{}, notFound("course", courseID)
	}
	section, ok := s.catalog.SectionByOrder(courseID, order)
	if !ok {
		return SectionView{}, notFound("section", fmt.Sprintf("%s/%d", courseID, order))
	}

	accessible, err := s.gate.IsSectionAccessible(ctx, userID, section)
	if err != nil {
		return SectionView{}, err
	}
	if !accessible {
		return SectionView{}, ErrSectionLocked
	}

	view := SectionView{Section: section, AttemptsRemaining: MaxAttempts}
	switch section.Content.Kind {
	case catalog.KindVideo:
		p, err := s.store.GetWatchProgress(ctx, userID, section.Content.ID)
		switch {
		case err == nil:
			view.WatchProgress = &p
		case !errors.Is(err, progress.ErrNotFound):
			return SectionView{}, fmt.Errorf("load watch progress: %w", err)
		}
	case catalog.KindChallenge:
		view.ChallengeData = challenge.Redact(section.Content.ChallengeData)
		sums, err := s.store.AttemptSummariesFor(ctx, userID, []string{section.Content.ID})
		if err != nil {
			return SectionView{}, fmt.Errorf("load attempts: %w", err)
		}
		sum := sums[section.Content.ID]
		view.AttemptsUsed = sum.Count
		view.Passed = sum.Succeeded
		view.AttemptsRemaining = max(MaxAttempts-sum.Count, 0)
	}
	return view, nil
}

// ResetAttempts deletes a user's attempts on a challenge and returns how many
// were removed.
func (s *Service) ResetAttempts(ctx context.Context, userID, contentID string) (int, error) {
	if userID == "" {
		return 0, invalid("user_id", "is required")
	}
	section, ok := s.catalog.ContentSection(contentID)
	if !ok {
		return 0, notFound("content", contentID)
	}
	if section.Content.Kind != catalog.KindChallenge {
		return 0, invalid("content_id", "content %s is not a challenge", contentID)
	}

	var n int
	err := s.store.WithinTx(ctx, userID, contentID, func(tx progress.Tx) error {
		var err error
		n, err = tx.DeleteAttempts(ctx, userID, contentID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("reset attempts: %w", err)
	}

	s.invalidate(ctx, userID)
	slog.Info("challenge attempts reset", "user_id", userID, "content_id", contentID, "deleted", n)
	return n, nil
}

// CourseActivity returns a course and every learner record on its contents.
func (s *Service) CourseActivity(ctx context.Context, courseID string) (catalog.Course, progress.Activity, error) {
	course, ok := s.catalog.Course(courseID)
	if !ok {
		return catalog.Course{}, progress.Activity{}, notFound("course", courseID)
	}
	ids := make([]string, len(course.Sections))
	for i, sec := range course.Sections {
		ids[i] = sec.Content.ID
	}
	act, err := s.store.ActivityFor(ctx, ids)
	if err != nil {
		return catalog.Course{}, progress.Activity{}, fmt.Errorf("load course activity: %w", err)
	}
	return course, act, nil
}

// invalidate tries twice before giving up; a missed invalidation leaves the
// previous listing readable until its TTL runs out.
func (s *Service) invalidate(ctx context.Context, userID string) {
	err := s.cache.Invalidate(ctx, userID)
	if err != nil {
		err = s.cache.Invalidate(ctx, userID)
	}
	if err != nil {
		slog.Warn("failed to invalidate section statuses", "user_id", userID, "error", err)
	}
}

func (s *Service) logEvent(ctx context.Context, e Event) {
	if err := s.events.LogEvent(ctx, e); err != nil {
		slog.Warn("failed to log progression event", "type", e.EventType, "user_id", e.UserID, "error", err)
	}
}

func intPtr(v int) *int { return &v }
