package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"medquiz-service/internal/domain"
	"medquiz-service/internal/quiz"
)

// QuestionQuery is the typed form of the GET /api/questions query string.
type QuestionQuery struct {
	IDs         []int
	Semester    int
	N           int
	Specialties []string
	Tags        []string
	Unique      bool
	ExamYear    int
	ExamSeason  string
}

// Values encodes the query. Zero fields are omitted; lists are comma separated.
func (q QuestionQuery) Values() url.Values {
	v := url.Values{}
	if len(q.IDs) > 0 {
		ids := make([]string, len(q.IDs))
		for i, id := range q.IDs {
			ids[i] = strconv.Itoa(id)
		}
		v.Set("ids", strings.Join(ids, ","))
		return v
	}
	if q.Semester > 0 {
		v.Set("semester", strconv.Itoa(q.Semester))
	}
	if q.N > 0 {
		v.Set("n", strconv.Itoa(q.N))
	}
	if len(q.Specialties) > 0 {
		v.Set("specialer", strings.Join(q.Specialties, ","))
	}
	if len(q.Tags) > 0 {
		v.Set("tags", strings.Join(q.Tags, ","))
	}
	if q.Unique {
		v.Set("unique", "t")
	}
	if q.ExamYear > 0 {
		v.Set("examYear", strconv.Itoa(q.ExamYear))
	}
	if q.ExamSeason != "" {
		v.Set("examSeason", q.ExamSeason)
	}
	return v
}

// Encode returns the query string without the leading '?'.
func (q QuestionQuery) Encode() string {
	return q.Values().Encode()
}

// QueryForSettings builds the listing query for the set, random and specialer quiz types.
// Random and specialer queries always carry n, so they never read as a whole-pool request.
func QueryForSettings(s quiz.Settings) (QuestionQuery, error) {
	switch s.Type {
	case domain.QuizSet:
		year, season, err := quiz.ParseSetKey(s.Set)
		if err != nil {
			return QuestionQuery{}, fmt.Errorf("%w: %q", err, s.Set)
		}
		return QuestionQuery{Semester: s.Semester, ExamYear: year, ExamSeason: season}, nil
	case domain.QuizRandom, domain.QuizSpecialer:
		if s.N < 1 {
			return QuestionQuery{}, fmt.Errorf("%w: n must be at least 1, got %d", domain.ErrBadRequest, s.N)
		}
		q := QuestionQuery{Semester: s.Semester, N: s.N, Unique: s.OnlyNew}
		if s.Type == domain.QuizSpecialer {
			q.Specialties = append([]string(nil), s.Specialties...)
			q.Tags = append([]string(nil), s.Tags...)
		}
		return q, nil
	}
	return QuestionQuery{}, fmt.Errorf("%w: quiz type %q has no listing query", domain.ErrBadRequest, s.Type)
}
