package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-academy/internal/catalog"
	"github.com/p-n-ai/pai-academy/internal/progress"
	"github.com/p-n-ai/pai-academy/internal/report"
)

var at = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func testCourse() catalog.Course {
	return catalog.Course{ID: "astro", Title: "Astronomy", Sections: []catalog.Section{
		{ID: "s1", Name: "Stars", OrderNumber: 1, Content: catalog.Content{ID: "v1", Kind: catalog.KindVideo}},
		{ID: "s2", Name: "Notes", OrderNumber: 2, Content: catalog.Content{ID: "g1", Kind: catalog.KindGuideCard}},
		{ID: "s3", Name: "Quiz", OrderNumber: 3, Content: catalog.Content{ID: "q1", Kind: catalog.KindChallenge}},
	}}
}

func testActivity() progress.Activity {
	return progress.Activity{
		Watches: []progress.WatchProgress{
			{UserID: "u2", ContentID: "v1", WatchedDuration: 50, TotalDuration: 100, UpdatedAt: at},
			{UserID: "u1", ContentID: "v1", WatchedDuration: 90, TotalDuration: 100, IsCompleted: true, UpdatedAt: at},
		},
		Attempts: []progress.Attempt{
			{UserID: "u1", ContentID: "q1", AttemptNumber: 1, SubmittedAt: at},
			{UserID: "u1", ContentID: "q1", AttemptNumber: 2, IsSuccessful: true, SubmittedAt: at},
			{UserID: "u2", ContentID: "q1", AttemptNumber: 1, SubmittedAt: at},
		},
	}
}

func readBack(t *testing.T, course catalog.Course, act progress.Activity) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, course, act))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWrite_Sheets(t *testing.T) {
	f := readBack(t, testCourse(), testActivity())
	require.Equal(t, []string{report.SheetSummary, report.SheetVideos, report.SheetChallenges}, f.GetSheetList())
}

func TestWrite_Summary(t *testing.T) {
	f := readBack(t, testCourse(), testActivity())

	rows, err := f.GetRows(report.SheetSummary)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "Order", rows[0][0])

	require.Equal(t, []string{"1", "Stars", "video", "2", "1", "0"}, rows[1])
	require.Equal(t, []string{"2", "Notes", "guide_card", "0", "0", "0"}, rows[2])
	require.Equal(t, []string{"3", "Quiz", "challenge", "2", "1", "3"}, rows[3])
}

func TestWrite_VideosSortedByUser(t *testing.T) {
	f := readBack(t, testCourse(), testActivity())

	rows, err := f.GetRows(report.SheetVideos)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.Equal(t, "u1", rows[1][0])
	require.Equal(t, "Stars", rows[1][2])
	require.Equal(t, "90", rows[1][5])
	require.Equal(t, "yes", rows[1][6])
	require.Equal(t, "2026-03-01T09:30:00Z", rows[1][7])

	require.Equal(t, "u2", rows[2][0])
	require.Equal(t, "no", rows[2][6])
}

func TestWrite_Challenges(t *testing.T) {
	f := readBack(t, testCourse(), testActivity())

	rows, err := f.GetRows(report.SheetChallenges)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	require.Equal(t, []string{"u1", "3", "Quiz", "1", "no", "2026-03-01T09:30:00Z"}, rows[1])
	require.Equal(t, []string{"u1", "3", "Quiz", "2", "yes", "2026-03-01T09:30:00Z"}, rows[2])
	require.Equal(t, "u2", rows[3][0])
}

func TestWrite_NoActivity(t *testing.T) {
	f := readBack(t, testCourse(), progress.Activity{})

	rows, err := f.GetRows(report.SheetVideos)
	require.NoError(t, err)
	require.Len(t, rows, 1, "only the header row")

	rows, err = f.GetRows(report.SheetSummary)
	require.NoError(t, err)
	require.Len(t, rows, 4)
}

func TestFilename(t *testing.T) {
	require.Equal(t, "astro-activity-20260301.xlsx", report.Filename("astro", at))
}
