package print

import (
	"bytes"
	"strings"
	"testing"

	"medquiz-service/internal/domain"
)

func sampleSheet() Sheet {
	return Sheet{
		Title: "Forår 2018",
		Questions: []domain.Question{
			{ID: 1, Text: "Hvilket diuretikum virker i Henles slynge?", Answer1: "Furosemid", Answer2: "Spironolacton", Answer3: "Metoprolol", CorrectAnswers: []int{1}, Specialties: []string{"nefrologi"}},
			{ID: 2, Text: "Hvilke er betablokkere?", Answer1: "Metoprolol", Answer2: "Amlodipin", Answer3: "Propranolol", CorrectAnswers: []int{1, 3}},
		},
		WithAnswers: true,
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleSheet()); err != nil {
		t.Fatalf("write text: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Forår 2018", "1. Hvilket diuretikum", "   C) Metoprolol", "[nefrologi]", "Svar: 1: A  2: A/C"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestWriteTextWithoutAnswers(t *testing.T) {
	s := sampleSheet()
	s.WithAnswers = false
	var buf bytes.Buffer
	if err := WriteText(&buf, s); err != nil {
		t.Fatalf("write text: %v", err)
	}
	if strings.Contains(buf.String(), "Svar:") {
		t.Fatalf("expected no answer key")
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, sampleSheet()); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected a PDF header, got %q", buf.Bytes()[:min(8, buf.Len())])
	}
}
