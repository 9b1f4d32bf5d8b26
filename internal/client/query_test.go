package client

import (
	"errors"
	"testing"

	"medquiz-service/internal/domain"
	"medquiz-service/internal/quiz"
)

func TestQueryForSettings(t *testing.T) {
	s := quiz.DefaultState().Settings
	s.Semester = 7
	s.N = 20
	s.OnlyNew = true

	q, err := QueryForSettings(s)
	if err != nil {
		t.Fatalf("random query: %v", err)
	}
	if got := q.Encode(); got != "n=20&semester=7&unique=t" {
		t.Fatalf("unexpected random query %q", got)
	}

	s.Type = domain.QuizSpecialer
	s.OnlyNew = false
	s.Specialties = []string{"kardiologi", "urologi"}
	s.Tags = []string{"ekg"}
	q, _ = QueryForSettings(s)
	if got := q.Encode(); got != "n=20&semester=7&specialer=kardiologi%2Curologi&tags=ekg" {
		t.Fatalf("unexpected specialer query %q", got)
	}

	s.Type = domain.QuizSet
	s.Set = "2018/F"
	q, _ = QueryForSettings(s)
	if got := q.Encode(); got != "examSeason=F&examYear=2018&semester=7" {
		t.Fatalf("unexpected set query %q", got)
	}
}

func TestQueryForSettingsRejectsMalformedSet(t *testing.T) {
	s := quiz.DefaultState().Settings
	s.Type = domain.QuizSet
	s.Set = "2018"
	if _, err := QueryForSettings(s); !errors.Is(err, domain.ErrMalformedSet) {
		t.Fatalf("expected malformed set error, got %v", err)
	}
}

func TestQueryIDsOverrideFilters(t *testing.T) {
	q := QuestionQuery{IDs: []int{3, 1}, Semester: 7}
	if got := q.Encode(); got != "ids=3%2C1" {
		t.Fatalf("unexpected ids query %q", got)
	}
}

func TestQueryForSettingsRequiresN(t *testing.T) {
	s := quiz.DefaultState().Settings
	s.N = 0
	if _, err := QueryForSettings(s); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected a random query without n to be refused, got %v", err)
	}
	s.Type = domain.QuizSpecialer
	s.N = -3
	if _, err := QueryForSettings(s); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected a specialer query without n to be refused, got %v", err)
	}
}
