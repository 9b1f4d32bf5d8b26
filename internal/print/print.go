// Package print renders a quiz for paper: a plain text sheet or a PDF with an answer key.
package print

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"medquiz-service/internal/domain"
)

const (
	margin       = 15.0
	lineHeight   = 6.0
	spacingSmall = 4.0
	spacingLarge = 10.0
)

// Sheet is what gets printed.
type Sheet struct {
	Title     string
	Questions []domain.Question
	// WithAnswers appends the correct answers after the questions.
	WithAnswers bool
}

// WriteText writes the sheet as numbered plain text.
func WriteText(w io.Writer, s Sheet) error {
	var b strings.Builder
	if s.Title != "" {
		b.WriteString(s.Title + "\n\n")
	}
	for i, q := range s.Questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(q.Text))
		for n := 1; n <= 3; n++ {
			fmt.Fprintf(&b, "   %c) %s\n", 'A'+n-1, q.AnswerText(n))
		}
		if len(q.Specialties) > 0 {
			fmt.Fprintf(&b, "   [%s]\n", strings.Join(q.Specialties, ", "))
		}
		b.WriteString("\n")
	}
	if s.WithAnswers && len(s.Questions) > 0 {
		b.WriteString("Svar: " + answerKey(s.Questions) + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WritePDF writes the sheet as an A4 PDF.
func WritePDF(w io.Writer, s Sheet) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(margin, margin, margin)
	pdf.AddPage()

	if s.Title != "" {
		pdf.SetFont("Times", "B", 18)
		pdf.CellFormat(0, 10, tr(s.Title), "", 1, "C", false, 0, "")
		pdf.Ln(spacingLarge)
	}

	for i, q := range s.Questions {
		pdf.SetFont("Times", "B", 12)
		pdf.MultiCell(0, lineHeight, tr(strconv.Itoa(i+1)+". "+strings.TrimSpace(q.Text)), "", "L", false)
		pdf.SetFont("Times", "", 12)
		for n := 1; n <= 3; n++ {
			pdf.MultiCell(0, lineHeight, tr(fmt.Sprintf("    %c) %s", 'A'+n-1, q.AnswerText(n))), "", "L", false)
		}
		pdf.Ln(spacingSmall)
	}

	if s.WithAnswers && len(s.Questions) > 0 {
		pdf.AddPage()
		pdf.SetFont("Times", "B", 14)
		pdf.CellFormat(0, 10, "Svar", "", 1, "L", false, 0, "")
		pdf.SetFont("Times", "", 12)
		pdf.MultiCell(0, lineHeight, answerKey(s.Questions), "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

// answerKey lists the correct letters per question, e.g. "1: B  2: A/C".
func answerKey(questions []domain.Question) string {
	parts := make([]string, len(questions))
	for i, q := range questions {
		letters := make([]string, 0, len(q.CorrectAnswers))
		for _, c := range q.CorrectAnswers {
			if c >= 1 && c <= 3 {
				letters = append(letters, string(rune('A'+c-1)))
			}
		}
		parts[i] = strconv.Itoa(i+1) + ": " + strings.Join(letters, "/")
	}
	return strings.Join(parts, "  ")
}
