// Package export renders a problem set as a printable worksheet with an answer key.
package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

// Default download names.
const (
	DOCXFilename = "math_problems.docx"
	XLSXFilename = "math_problems.xlsx"
)

// MsgNoProblems is shown when export is requested for an empty set.
const MsgNoProblems = "다운로드할 문제가 없습니다."

// ErrNoProblems is returned when there is nothing to export.
var ErrNoProblems = errors.New("export: no problems")

const (
	titleWorksheet = "수학 문장제 문제지"
	titleAnswerKey = "정답 및 풀이"
	titleQuick     = "빠른 정답"
	titleDetailed  = "상세 풀이"

	answerMarker = "답: "
	quickSep     = "   "

	bodySize = 20 // half-points, 10pt
)

// Paragraph styles.
const (
	StyleNormal   = ""
	StyleHeading1 = "Heading1"
	StyleHeading2 = "Heading2"
)

// Run is a span of text with uniform formatting. Size is in half-points; zero inherits the style.
type Run struct {
	Text string
	Bold bool
	Size int
}

// Paragraph is one block. Spacing is in twips.
type Paragraph struct {
	Style           string
	Center          bool
	PageBreakBefore bool
	SpacingBefore   int
	SpacingAfter    int
	Runs            []Run
}

// Text returns the concatenated run text.
func (p Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// Section is a run of paragraphs sharing page layout. Sections start continuously.
type Section struct {
	Columns     int
	ColumnSpace int // twips between columns
	Paragraphs  []Paragraph
}

// Document is the format-independent worksheet description the writers render.
type Document struct {
	Sections []Section
}

// QuickAnswer returns the text after the first "답: " marker, or the whole answer when there is none.
func QuickAnswer(answer string) string {
	if _, after, ok := strings.Cut(answer, answerMarker); ok && strings.TrimSpace(after) != "" {
		return strings.TrimSpace(after)
	}
	return answer
}

// QuickAnswers returns the numbered quick answers in set order.
func QuickAnswers(problems []problem.Problem) []string {
	out := make([]string, len(problems))
	for i, p := range problems {
		out[i] = fmt.Sprintf("%d. %s", i+1, QuickAnswer(p.Answer))
	}
	return out
}

func heading(style, text string) Paragraph {
	return Paragraph{Style: style, Runs: []Run{{Text: text}}}
}

func numbered(n int, text string, after int) Paragraph {
	return Paragraph{
		SpacingAfter: after,
		Runs: []Run{
			{Text: fmt.Sprintf("%d. ", n), Bold: true, Size: bodySize},
			{Text: text, Size: bodySize},
		},
	}
}

// Layout builds the two-section worksheet: questions in two columns, then the answer key on a new page.
func Layout(problems []problem.Problem) Document {
	title := heading(StyleHeading1, titleWorksheet)
	title.Center = true
	title.SpacingAfter = 480

	questions := Section{Columns: 2, ColumnSpace: 720, Paragraphs: []Paragraph{title}}
	for i, p := range problems {
		questions.Paragraphs = append(questions.Paragraphs, numbered(i+1, p.Question, 1000))
	}

	keyTitle := heading(StyleHeading1, titleAnswerKey)
	keyTitle.Center = true
	keyTitle.PageBreakBefore = true
	keyTitle.SpacingBefore = 600
	keyTitle.SpacingAfter = 400

	quickTitle := heading(StyleHeading2, titleQuick)
	quickTitle.SpacingBefore = 400
	quickTitle.SpacingAfter = 200

	quick := Paragraph{
		SpacingAfter: 600,
		Runs:         []Run{{Text: strings.Join(QuickAnswers(problems), quickSep), Size: bodySize}},
	}

	detailTitle := heading(StyleHeading2, titleDetailed)
	detailTitle.SpacingBefore = 400
	detailTitle.SpacingAfter = 200

	answers := Section{Columns: 1, Paragraphs: []Paragraph{keyTitle, quickTitle, quick, detailTitle}}
	for i, p := range problems {
		answers.Paragraphs = append(answers.Paragraphs, numbered(i+1, p.Answer, 200))
	}

	return Document{Sections: []Section{questions, answers}}
}
