package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"medquiz-service/internal/domain"
	"medquiz-service/internal/logger"
	"medquiz-service/internal/quiz"
)

const submitTimeout = 10 * time.Second

// Recorder applies answers and votes locally and sends them to the backend.
type Recorder struct {
	api   *Client
	store *quiz.Store
	wg    sync.WaitGroup
}

func NewRecorder(api *Client, store *quiz.Store) *Recorder {
	return &Recorder{api: api, store: store}
}

// RecordAnswer marks the answer in the local state at once. When user is set, the answer is
// also submitted in the background; submit failures are logged and the local answer is kept.
func (r *Recorder) RecordAnswer(ctx context.Context, questionID, chosen int, correct bool, semester int, user *domain.User) {
	r.store.Dispatch(quiz.AnswerQuestion(questionID, chosen))
	if user == nil {
		return
	}

	answer := domain.Answer{
		QuestionID: questionID,
		Answer:     "wrong",
		AnswerNo:   chosen,
		Semester:   semester,
	}
	if correct {
		answer.Answer = "correct"
	}
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, submitTimeout)
		defer cancel()
		if _, err := r.api.SubmitAnswer(ctx, answer); err != nil {
			logger.Error("failed to submit answer", "question_id", questionID, "user_id", user.ID, "error", err)
		}
	}()
}

// RecordVote replaces the user's votes of kind on the question and folds the server's view of
// the question back into the store. Anonymous viewers cannot vote.
func (r *Recorder) RecordVote(ctx context.Context, kind domain.VoteKind, values []string, user *domain.User, questionID int) (domain.Question, error) {
	if user == nil {
		return domain.Question{}, fmt.Errorf("%w: voting requires a user", domain.ErrNotAuthorized)
	}
	votes := append([]string{}, values...)
	var req domain.VoteRequest
	switch kind {
	case domain.VoteSpecialty:
		req.SpecialtyVotes = &votes
	case domain.VoteTag:
		req.TagVotes = &votes
	default:
		return domain.Question{}, domain.ErrBadRequest
	}
	return r.apply(r.api.Vote(ctx, questionID, req))
}

func (r *Recorder) Comment(ctx context.Context, questionID int, text string, private bool) (domain.Question, error) {
	return r.apply(r.api.AddComment(ctx, questionID, text, private))
}

func (r *Recorder) EditComment(ctx context.Context, questionID, commentID int, text string, private bool) (domain.Question, error) {
	return r.apply(r.api.EditComment(ctx, questionID, commentID, text, private))
}

func (r *Recorder) DeleteComment(ctx context.Context, questionID, commentID int) (domain.Question, error) {
	return r.apply(r.api.DeleteComment(ctx, questionID, commentID))
}

// Report sends a report in the background; failures are only logged.
func (r *Recorder) Report(ctx context.Context, reportType string, data any) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, submitTimeout)
		defer cancel()
		if err := r.api.Report(ctx, reportType, data); err != nil {
			logger.Error("failed to send report", "type", reportType, "error", err)
		}
	}()
}

// Wait blocks until background submissions have finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) apply(q domain.Question, err error) (domain.Question, error) {
	if err != nil {
		return domain.Question{}, err
	}
	r.store.Dispatch(quiz.QuestionUpdated(q))
	return q, nil
}
