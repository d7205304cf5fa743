// Package report exports learning activity as an Excel workbook for teachers.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/eduruang/internal/game"
	"github.com/p-n-ai/eduruang/internal/progress"
	"github.com/p-n-ai/eduruang/internal/user"
)

// Sheet names, in workbook order.
const (
	SheetStudents = "Students"
	SheetSessions = "Sessions"
	SheetProgress = "Progress"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Data is the activity to export.
type Data struct {
	Users    []user.User
	Sessions []game.Session
	Progress []progress.Record
}

// Write renders data as an xlsx workbook to w.
func Write(w io.Writer, data Data) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetStudents); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	for _, name := range []string{SheetSessions, SheetProgress} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", name, err)
		}
	}

	names := make(map[string]string, len(data.Users))
	for _, u := range data.Users {
		names[u.ID] = u.Name
	}

	students := [][]any{{"ID", "Name", "Class", "Role", "Points", "Level", "Last Active"}}
	for _, u := range data.Users {
		students = append(students, []any{
			u.ID, sanitize(u.Name), sanitize(u.Class), string(u.Role), u.Points, u.Level(), formatTime(u.LastActive),
		})
	}

	sessions := [][]any{{"Session", "Student", "Subject", "Answered", "Questions", "Score", "Hints", "Pending Review", "Started", "Duration (s)"}}
	for _, s := range data.Sessions {
		sessions = append(sessions, []any{
			s.ID, sanitize(nameOr(names, s.UserID)), s.SubjectID, s.CurrentQuestionIndex, len(s.Questions),
			s.Score, s.HintsUsed, len(s.PendingReview), formatTime(s.StartTime), int(s.Duration().Seconds()),
		})
	}

	records := [][]any{{"Student", "Material", "Completed", "Minutes", "Reading %", "Last Accessed", "Completed At"}}
	for _, r := range data.Progress {
		completedAt := ""
		if r.CompletedAt != nil {
			completedAt = formatTime(*r.CompletedAt)
		}
		records = append(records, []any{
			sanitize(nameOr(names, r.UserID)), r.MaterialID, r.IsCompleted, r.TimeSpent, r.ReadingProgress,
			formatTime(r.LastAccessedAt), completedAt,
		})
	}

	for _, sheet := range []struct {
		name string
		rows [][]any
	}{
		{SheetStudents, students},
		{SheetSessions, sessions},
		{SheetProgress, records},
	} {
		if err := writeRows(f, sheet.name, sheet.rows); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream writer for %s: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", sheet, err)
	}
	return nil
}

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// sanitize prevents spreadsheet formula injection from user-entered text.
func sanitize(s string) string {
	if s != "" && strings.ContainsAny(s[:1], "=+-@\t\r") {
		return "'" + s
	}
	return s
}
