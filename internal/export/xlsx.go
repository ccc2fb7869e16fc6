package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

const (
	sheetProblems = "문제"
	sheetAnswers  = "정답"
)

// XLSX renders problems as a two-sheet workbook: questions with metadata, then the answer key.
func XLSX(problems []problem.Problem) ([]byte, error) {
	if len(problems) == 0 {
		return nil, ErrNoProblems
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetProblems); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetAnswers); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E7EEF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, fmt.Errorf("wrap style: %w", err)
	}

	problemRows := [][]any{{"번호", "문제", "난이도", "단원", "세부 항목"}}
	answerRows := [][]any{{"번호", "빠른 정답", "풀이"}}
	for i, p := range problems {
		n := i + 1
		problemRows = append(problemRows, []any{n, p.Question, p.Difficulty.Label(), p.Semester + " " + p.Unit, p.SubTopic})
		answerRows = append(answerRows, []any{n, QuickAnswer(p.Answer), p.Answer})
	}

	sheets := []struct {
		name   string
		rows   [][]any
		widths []float64
	}{
		{sheetProblems, problemRows, []float64{6, 70, 10, 20, 28}},
		{sheetAnswers, answerRows, []float64{6, 20, 70}},
	}
	for _, s := range sheets {
		for i, row := range s.rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				return nil, fmt.Errorf("write %s row %d: %w", s.name, i+1, err)
			}
		}
		for i, w := range s.widths {
			col, _ := excelize.ColumnNumberToName(i + 1)
			if err := f.SetColWidth(s.name, col, col, w); err != nil {
				return nil, fmt.Errorf("column width: %w", err)
			}
		}
		lastCol, _ := excelize.ColumnNumberToName(len(s.widths))
		if err := f.SetCellStyle(s.name, "A1", lastCol+"1", header); err != nil {
			return nil, fmt.Errorf("style header: %w", err)
		}
		bottom := fmt.Sprintf("%s%d", lastCol, len(s.rows))
		if err := f.SetCellStyle(s.name, "A2", bottom, wrap); err != nil {
			return nil, fmt.Errorf("style body: %w", err)
		}
		if err := f.SetPanes(s.name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return nil, fmt.Errorf("freeze header: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
