// Package report renders a learner's tutoring history as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-tutor/internal/content"
	"github.com/p-n-ai/pai-tutor/internal/learner"
)

// Sheet names in the workbook.
const (
	SummarySheet = "Summary"
	HistorySheet = "History"
	MasterySheet = "Mastery"
)

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Catalog resolves concept names and question concepts for the report.
type Catalog interface {
	Concepts() []content.Concept
	Question(id string) (content.Question, bool)
}

// WriteHistory writes a workbook with a summary, the learner's interactions
// in answer order, and the current mastery estimate in taught order.
func WriteHistory(w io.Writer, st learner.State, catalog Catalog) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	for _, name := range []string{HistorySheet, MasterySheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", name, err)
		}
	}

	if err := writeSummary(f, st); err != nil {
		return err
	}
	if err := writeRows(f, HistorySheet, header,
		[]any{"#", "Answered At", "Question ID", "Concept ID", "Correct", "Response Time (ms)"},
		historyRows(st, catalog),
	); err != nil {
		return err
	}
	if err := writeRows(f, MasterySheet, header,
		[]any{"Concept ID", "Name", "Score"},
		masteryRows(st, catalog),
	); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, st learner.State) error {
	correct := 0
	for _, in := range st.History {
		if in.IsCorrect {
			correct++
		}
	}
	accuracy := 0.0
	if len(st.History) > 0 {
		accuracy = float64(correct) / float64(len(st.History))
	}

	rows := [][]any{
		{"Learner", st.ID},
		{"Answered", len(st.History)},
		{"Correct", correct},
		{"Accuracy", accuracy},
	}
	for i, row := range rows {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SummarySheet, "A", "B", 20)
}

func historyRows(st learner.State, catalog Catalog) [][]any {
	rows := make([][]any, 0, len(st.History))
	for i, in := range st.History {
		conceptID := ""
		if q, ok := catalog.Question(in.QuestionID); ok {
			conceptID = q.ConceptID
		}
		correct := "no"
		if in.IsCorrect {
			correct = "yes"
		}
		rows = append(rows, []any{
			i + 1,
			in.Timestamp.UTC().Format(time.RFC3339),
			in.QuestionID,
			conceptID,
			correct,
			in.ResponseTimeMs,
		})
	}
	return rows
}

// masteryRows lists catalog concepts in taught order, then any scored
// concepts the catalog no longer has, sorted by ID.
func masteryRows(st learner.State, catalog Catalog) [][]any {
	var rows [][]any
	listed := make(map[string]bool)
	for _, c := range catalog.Concepts() {
		if c.ID == "" {
			continue
		}
		listed[c.ID] = true
		score, ok := st.Mastery[c.ID]
		if !ok {
			rows = append(rows, []any{c.ID, c.Name, ""})
			continue
		}
		rows = append(rows, []any{c.ID, c.Name, score})
	}

	var extra []string
	for id := range st.Mastery {
		if !listed[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		rows = append(rows, []any{id, "", st.Mastery[id]})
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, style int, header []any, rows [][]any) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}
