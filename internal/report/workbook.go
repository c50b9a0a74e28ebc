// Package report renders a course's learner activity as an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-academy/internal/catalog"
	"github.com/p-n-ai/pai-academy/internal/progress"
)

// Sheet names.
const (
	SheetSummary    = "Summary"
	SheetVideos     = "Videos"
	SheetChallenges = "Challenges"
)

// ContentType is the MIME type of the rendered workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	summaryHeader   = []any{"Order", "Section", "Content", "Learners", "Completed or passed", "Attempts"}
	videosHeader    = []any{"User", "Order", "Section", "Watched (s)", "Total (s)", "Progress %", "Completed", "Updated at"}
	challengeHeader = []any{"User", "Order", "Section", "Attempt", "Correct", "Submitted at"}
)

// Build creates a workbook with a summary sheet and one sheet per record kind.
// The caller must Close the returned file.
func Build(course catalog.Course, act progress.Activity) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetVideos, SheetChallenges} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	bySection := make(map[string]catalog.Section, len(course.Sections))
	for _, s := range course.Sections {
		bySection[s.Content.ID] = s
	}

	w := sheetWriter{f: f, style: bold}
	w.write(SheetSummary, summaryHeader, summaryRows(course, act))
	w.write(SheetVideos, videosHeader, videoRows(bySection, act.Watches))
	w.write(SheetChallenges, challengeHeader, challengeRows(bySection, act.Attempts))
	if w.err != nil {
		f.Close()
		return nil, w.err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook and streams it to out.
func Write(out io.Writer, course catalog.Course, act progress.Activity) error {
	f, err := Build(course, act)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Filename returns the download name for a course report.
func Filename(courseID string, now time.Time) string {
	return fmt.Sprintf("%s-activity-%s.xlsx", courseID, now.UTC().Format("20060102"))
}

type sheetWriter struct {
	f     *excelize.File
	style int
	err   error
}

func (w *sheetWriter) write(sheet string, header []any, rows [][]any) {
	if w.err != nil {
		return
	}
	if err := w.f.SetSheetRow(sheet, "A1", &header); err != nil {
		w.err = fmt.Errorf("%s header: %w", sheet, err)
		return
	}
	if err := w.f.SetRowStyle(sheet, 1, 1, w.style); err != nil {
		w.err = fmt.Errorf("%s header style: %w", sheet, err)
		return
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			w.err = err
			return
		}
		if err := w.f.SetSheetRow(sheet, cell, &row); err != nil {
			w.err = fmt.Errorf("%s row %d: %w", sheet, i+2, err)
			return
		}
	}

	last, _ := excelize.ColumnNumberToName(len(header))
	if err := w.f.SetColWidth(sheet, "A", last, 16); err != nil {
		w.err = fmt.Errorf("%s column width: %w", sheet, err)
	}
}

func summaryRows(course catalog.Course, act progress.Activity) [][]any {
	type tally struct {
		learners map[string]struct{}
		done     map[string]struct{}
		attempts int
	}
	tallies := make(map[string]*tally, len(course.Sections))
	get := func(contentID string) *tally {
		t, ok := tallies[contentID]
		if !ok {
			t = &tally{learners: map[string]struct{}{}, done: map[string]struct{}{}}
			tallies[contentID] = t
		}
		return t
	}

	for _, wp := range act.Watches {
		t := get(wp.ContentID)
		t.learners[wp.UserID] = struct{}{}
		if wp.IsCompleted {
			t.done[wp.UserID] = struct{}{}
		}
	}
	for _, a := range act.Attempts {
		t := get(a.ContentID)
		t.learners[a.UserID] = struct{}{}
		t.attempts++
		if a.IsSuccessful {
			t.done[a.UserID] = struct{}{}
		}
	}

	rows := make([][]any, 0, len(course.Sections))
	for _, s := range course.Sections {
		t := get(s.Content.ID)
		rows = append(rows, []any{
			s.OrderNumber, s.Name, string(s.Content.Kind),
			len(t.learners), len(t.done), t.attempts,
		})
	}
	return rows
}

func videoRows(bySection map[string]catalog.Section, watches []progress.WatchProgress) [][]any {
	rows := make([][]any, 0, len(watches))
	for _, wp := range watches {
		s := bySection[wp.ContentID]
		rows = append(rows, []any{
			wp.UserID, s.OrderNumber, s.Name,
			wp.WatchedDuration, wp.TotalDuration, wp.ProgressPercent(),
			yesNo(wp.IsCompleted), wp.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	sortRows(rows)
	return rows
}

func challengeRows(bySection map[string]catalog.Section, attempts []progress.Attempt) [][]any {
	rows := make([][]any, 0, len(attempts))
	for _, a := range attempts {
		s := bySection[a.ContentID]
		rows = append(rows, []any{
			a.UserID, s.OrderNumber, s.Name,
			a.AttemptNumber, yesNo(a.IsSuccessful), a.SubmittedAt.UTC().Format(time.RFC3339),
		})
	}
	sortRows(rows)
	return rows
}

// sortRows orders detail rows by user, then section order, keeping input order otherwise.
func sortRows(rows [][]any) {
	sort.SliceStable(rows, func(i, j int) bool {
		ui, uj := rows[i][0].(string), rows[j][0].(string)
		if ui != uj {
			return ui < uj
		}
		return rows[i][1].(int) < rows[j][1].(int)
	})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
