package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"medquiz-service/internal/domain"
	"medquiz-service/internal/quiz"
)

// Fetcher loads questions for the current settings and feeds the results into the store.
type Fetcher struct {
	api   *Client
	store *quiz.Store
}

func NewFetcher(api *Client, store *quiz.Store) *Fetcher {
	return &Fetcher{api: api, store: store}
}

// Fetch requests the questions described by settings. requestedIDs is only read for the ids
// quiz type. The store sees FetchStarted before the request and FetchCompleted after it; a
// completion that has been overtaken by a newer fetch of the same slice is dropped by the store.
// Unknown quiz types make no request and return nil.
func (f *Fetcher) Fetch(ctx context.Context, settings quiz.Settings, requestedIDs []int) ([]domain.Question, error) {
	var request func(ctx context.Context) ([]domain.Question, error)
	slice := quiz.SliceQuiz

	switch settings.Type {
	case domain.QuizIDs:
		ids := append([]int(nil), requestedIDs...)
		request = func(ctx context.Context) ([]domain.Question, error) {
			return f.api.QuestionsByIDs(ctx, ids)
		}
	case domain.QuizSet, domain.QuizRandom, domain.QuizSpecialer:
		query, err := QueryForSettings(settings)
		if err != nil {
			return nil, err
		}
		request = func(ctx context.Context) ([]domain.Question, error) {
			return f.api.ListQuestions(ctx, query)
		}
	case domain.QuizSpecific:
		slice = quiz.SliceQuestion
		id := settings.QuestionID
		request = func(ctx context.Context) ([]domain.Question, error) {
			q, err := f.api.Question(ctx, id)
			if err != nil {
				return nil, err
			}
			return []domain.Question{q}, nil
		}
	default:
		return nil, nil
	}

	token := f.store.Begin(slice)
	questions, err := request(ctx)
	if err != nil {
		return nil, err
	}
	f.store.Dispatch(quiz.FetchCompleted(slice, token, settings.Type, questions, f.store.Now()))
	return questions, nil
}

// FetchPool loads every question of semester as the candidate pool; the store derives the exam
// sets from it and clears specialty and tag filters when the semester changed.
func (f *Fetcher) FetchPool(ctx context.Context, semester int) ([]domain.Question, error) {
	token := f.store.Begin(quiz.SlicePool)
	questions, err := f.api.ListQuestions(ctx, QuestionQuery{Semester: semester})
	if err != nil {
		return nil, err
	}
	f.store.Dispatch(quiz.PoolFetched(token, semester, questions, f.store.Now()))
	return questions, nil
}

// ErrCannotStart is returned by Start when the settings do not allow a quiz.
var ErrCannotStart = errors.New("cannot start quiz")

// Start validates the current settings, picks questions locally for random and specialer
// quizzes, and fetches the quiz. The local pool knows neither the user's answer history nor
// tag filters, so quizzes restricted to new questions or to tags are drawn by the backend.
func (f *Fetcher) Start(ctx context.Context, rnd *rand.Rand) ([]domain.Question, error) {
	settings := f.store.State().Settings
	if problems := quiz.Validate(settings); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrCannotStart, problems)
	}
	if needsServerSelection(settings) {
		return f.Fetch(ctx, settings, nil)
	}
	selection := quiz.SelectQuestionIDs(settings, rnd)
	if selection.Sampled() {
		byIDs := settings
		byIDs.Type = domain.QuizIDs
		return f.Fetch(ctx, byIDs, selection.IDs)
	}
	return f.Fetch(ctx, *selection.Settings, nil)
}

func needsServerSelection(s quiz.Settings) bool {
	switch s.Type {
	case domain.QuizRandom:
		return s.OnlyNew
	case domain.QuizSpecialer:
		return s.OnlyNew || len(s.Tags) > 0
	}
	return false
}
