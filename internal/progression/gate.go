// Package progression decides which course sections a user may open and runs
// the challenge submission state machine.
package progression

import (
	"context"
	"errors"
	"fmt"

	"github.com/p-n-ai/pai-academy/internal/catalog"
	"github.com/p-n-ai/pai-academy/internal/progress"
)

const (
	// UnlockWindow is how many following sections a completed video unlocks.
	UnlockWindow = 2
	// MaxAttempts is the failed-attempt budget before a challenge resets.
	MaxAttempts = 3
)

// SectionStatus is one row of a course's section listing for a user.
type SectionStatus struct {
	SectionID   string       `json:"id"`
	Name        string       `json:"section_name"`
	OrderNumber int          `json:"order_number"`
	Kind        catalog.Kind `json:"content_type"`
	IsUnlocked  bool         `json:"is_unlocked"`
}

// Gate computes section access from watch progress and attempt history.
// It never writes.
type Gate struct {
	catalog *catalog.Catalog
	store   progress.Store
}

// NewGate creates a gate over a catalog and a progress store.
func NewGate(cat *catalog.Catalog, store progress.Store) *Gate {
	return &Gate{catalog: cat, store: store}
}

// learnerState is the progress a user has on one course.
type learnerState struct {
	watches  map[string]progress.WatchProgress
	attempts map[string]progress.AttemptSummary
}

func (g *Gate) loadState(ctx context.Context, userID string, sections []catalog.Section) (learnerState, error) {
	var videos, challenges []string
	for _, s := range sections {
		switch s.Content.Kind {
		case catalog.KindVideo:
			videos = append(videos, s.Content.ID)
		case catalog.KindChallenge:
			challenges = append(challenges, s.Content.ID)
		}
	}

	st := learnerState{
		watches:  map[string]progress.WatchProgress{},
		attempts: map[string]progress.AttemptSummary{},
	}
	var err error
	if len(videos) > 0 {
		if st.watches, err = g.store.WatchProgressFor(ctx, userID, videos); err != nil {
			return learnerState{}, fmt.Errorf("load watch progress: %w", err)
		}
	}
	if len(challenges) > 0 {
		if st.attempts, err = g.store.AttemptSummariesFor(ctx, userID, challenges); err != nil {
			return learnerState{}, fmt.Errorf("load attempts: %w", err)
		}
	}
	return st, nil
}

// loadStateTx reads the same state as loadState through tx, so a check made
// while holding a pair lock sees what earlier holders committed.
func loadStateTx(ctx context.Context, tx progress.Tx, userID string, sections []catalog.Section) (learnerState, error) {
	st := learnerState{
		watches:  map[string]progress.WatchProgress{},
		attempts: map[string]progress.AttemptSummary{},
	}
	for _, s := range sections {
		id := s.Content.ID
		switch s.Content.Kind {
		case catalog.KindVideo:
			p, err := tx.GetWatchProgress(ctx, userID, id)
			switch {
			case err == nil:
				st.watches[id] = p
			case !errors.Is(err, progress.ErrNotFound):
				return learnerState{}, fmt.Errorf("load watch progress: %w", err)
			}
		case catalog.KindChallenge:
			n, err := tx.CountAttempts(ctx, userID, id)
			if err != nil {
				return learnerState{}, fmt.Errorf("count attempts: %w", err)
			}
			if n == 0 {
				continue
			}
			ok, err := tx.HasSuccessfulAttempt(ctx, userID, id)
			if err != nil {
				return learnerState{}, fmt.Errorf("check attempts: %w", err)
			}
			st.attempts[id] = progress.AttemptSummary{Count: n, Succeeded: ok}
		}
	}
	return st, nil
}

// unlockStates returns, for sections in ascending order, whether each is
// accessible. Later sections depend on earlier results, so the pass runs
// from first to last.
func unlockStates(sections []catalog.Section, st learnerState) []bool {
	open := make([]bool, len(sections))
	for i := range sections {
		open[i] = sectionOpen(sections, open, i, st)
	}
	return open
}

func sectionOpen(sections []catalog.Section, open []bool, i int, st learnerState) bool {
	s := sections[i]
	if s.OrderNumber == 1 {
		return true
	}

	if s.Content.Kind == catalog.KindChallenge {
		sum := st.attempts[s.Content.ID]
		if !canAccess(sum) {
			return false
		}
		if sum.Count > 0 {
			return true
		}
	}

	for k := i - 1; k >= 0 && k >= i-UnlockWindow; k-- {
		prev := sections[k]
		if prev.Content.Kind == catalog.KindVideo && st.watches[prev.Content.ID].IsCompleted {
			return true
		}
	}

	if i == 0 {
		return false
	}
	prev := sections[i-1]
	switch prev.Content.Kind {
	case catalog.KindGuideCard:
		return open[i-1]
	case catalog.KindChallenge:
		return st.attempts[prev.Content.ID].Succeeded
	}
	return false
}

// canAccess is false only once the budget is spent without a success.
func canAccess(sum progress.AttemptSummary) bool {
	return sum.Succeeded || sum.Count < MaxAttempts
}

// IsSectionAccessible reports whether the user may open the section.
func (g *Gate) IsSectionAccessible(ctx context.Context, userID string, section catalog.Section) (bool, error) {
	course, ok := g.catalog.Course(section.CourseID)
	if !ok {
		return false, notFound("course", section.CourseID)
	}
	idx := indexOf(course.Sections, section.ID)
	if idx < 0 {
		return false, notFound("section", section.ID)
	}

	st, err := g.loadState(ctx, userID, course.Sections[:idx+1])
	if err != nil {
		return false, err
	}
	return unlockStates(course.Sections[:idx+1], st)[idx], nil
}

// accessibleTx is IsSectionAccessible for the section at idx of sections,
// reading through tx.
func accessibleTx(ctx context.Context, tx progress.Tx, userID string, sections []catalog.Section, idx int) (bool, error) {
	st, err := loadStateTx(ctx, tx, userID, sections[:idx+1])
	if err != nil {
		return false, err
	}
	return unlockStates(sections[:idx+1], st)[idx], nil
}

// NextUnlockableSections returns up to UnlockWindow sections following from,
// ascending. It is empty when from is not part of its course.
func (g *Gate) NextUnlockableSections(from catalog.Section) []catalog.Section {
	course, ok := g.catalog.Course(from.CourseID)
	if !ok {
		return nil
	}
	idx := indexOf(course.Sections, from.ID)
	if idx < 0 {
		return nil
	}
	end := min(idx+1+UnlockWindow, len(course.Sections))
	return append([]catalog.Section(nil), course.Sections[idx+1:end]...)
}

// SectionStatuses lists every section of a course with its unlock state.
func (g *Gate) SectionStatuses(ctx context.Context, userID, courseID string) ([]SectionStatus, error) {
	course, ok := g.catalog.Course(courseID)
	if !ok {
		return nil, notFound("course", courseID)
	}

	st, err := g.loadState(ctx, userID, course.Sections)
	if err != nil {
		return nil, err
	}
	open := unlockStates(course.Sections, st)

	statuses := make([]SectionStatus, len(course.Sections))
	for i, s := range course.Sections {
		statuses[i] = SectionStatus{
			SectionID:   s.ID,
			Name:        s.Name,
			OrderNumber: s.OrderNumber,
			Kind:        s.Content.Kind,
			IsUnlocked:  open[i],
		}
	}
	return statuses, nil
}

// prerequisiteVideo returns the index of the nearest video within the unlock
// window before the section at idx, or -1.
func prerequisiteVideo(sections []catalog.Section, idx int) int {
	for k := idx - 1; k >= 0 && k >= idx-UnlockWindow; k-- {
		if sections[k].Content.Kind == catalog.KindVideo {
			return k
		}
	}
	return -1
}

// revisitOrders lists the order numbers a user must go back over after
// exhausting the challenge at idx: the prerequisite video through the
// challenge, or the preceding section and the challenge when there is no video.
func revisitOrders(sections []catalog.Section, idx, video int) []int {
	from := video
	if from < 0 {
		from = max(idx-1, 0)
	}
	orders := make([]int, 0, idx-from+1)
	for _, s := range sections[from : idx+1] {
		orders = append(orders, s.OrderNumber)
	}
	return orders
}

func indexOf(sections []catalog.Section, id string) int {
	for i, s := range sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}
