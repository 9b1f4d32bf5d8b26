package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"medquiz-service/internal/app"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/infra/gormdb"
	"medquiz-service/internal/infra/memory"
	"medquiz-service/internal/quiz"
	"medquiz-service/internal/testutil"
	transport "medquiz-service/internal/transport/http"
)

func newBackend(t *testing.T) (string, *gormdb.QuestionRepository) {
	t.Helper()
	repo := testutil.NewQuestionRepository(t)
	pools := memory.NewPoolCache(app.RepositoryPoolLoader(repo), time.Minute)
	service := app.NewQuestionService(repo, pools, memory.NewReportQueue(100), memory.NewHubStore())
	server := httptest.NewServer(transport.NewRouter(service))
	t.Cleanup(server.Close)
	return server.URL, repo
}

func TestClientQuizRoundTrip(t *testing.T) {
	ctx := context.Background()
	baseURL, repo := newBackend(t)
	first := testutil.MustCreate(t, repo, testutil.SampleQuestion(7, 2018, "F"), 1)
	testutil.MustCreate(t, repo, testutil.SampleQuestion(7, 2017, "E"), 1)

	user := &domain.User{ID: 10, Role: domain.RoleUser}
	api := New(baseURL, 5*time.Second, user)
	store := quiz.NewStore(quiz.DefaultState())
	fetcher := NewFetcher(api, store)
	recorder := NewRecorder(api, store)

	if _, err := fetcher.FetchPool(ctx, 7); err != nil {
		t.Fatalf("fetch pool: %v", err)
	}
	if got := len(store.State().Settings.Sets); got != 2 {
		t.Fatalf("expected 2 sets, got %d", got)
	}

	store.Dispatch(quiz.ChangeSetting(quiz.FieldType, domain.QuizSet))
	store.Dispatch(quiz.ChangeSetting(quiz.FieldSet, "2018/F"))
	questions, err := fetcher.Start(ctx, quiz.NewRand())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(questions) != 1 || questions[0].ID != first {
		t.Fatalf("expected the 2018 spring question, got %+v", questions)
	}

	q := questions[0]
	recorder.RecordAnswer(ctx, q.ID, 2, q.IsCorrect(2), q.Semester(), user)
	recorder.Wait()

	onlyNew, err := api.ListQuestions(ctx, QuestionQuery{Semester: 7, N: 10, Unique: true})
	if err != nil {
		t.Fatalf("list unanswered: %v", err)
	}
	if len(onlyNew) != 1 || onlyNew[0].ID == first {
		t.Fatalf("expected the answered question excluded, got %+v", onlyNew)
	}

	updated, err := recorder.RecordVote(ctx, domain.VoteTag, []string{"ekg"}, user, q.ID)
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if len(updated.UserTagVotes) != 1 || updated.UserTagVotes[0] != "ekg" {
		t.Fatalf("expected own tag vote, got %+v", updated.UserTagVotes)
	}
	if store.State().Questions[0].Answer != 2 {
		t.Fatalf("expected local answer to survive the update")
	}
}

func TestClientCommentsAndBookmarks(t *testing.T) {
	ctx := context.Background()
	baseURL, repo := newBackend(t)
	id := testutil.MustCreate(t, repo, testutil.SampleQuestion(7, 2018, "F"), 1)
	api := New(baseURL, 5*time.Second, &domain.User{ID: 10, Role: domain.RoleUser})

	q, err := api.AddComment(ctx, id, "husk kalium", false)
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if len(q.PublicComments) != 1 {
		t.Fatalf("expected a public comment, got %+v", q.PublicComments)
	}
	commentID := q.PublicComments[0].ID

	other := New(baseURL, 5*time.Second, &domain.User{ID: 11, Role: domain.RoleUser})
	if _, err := other.DeleteComment(ctx, id, commentID); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected another user's delete refused, got %v", err)
	}
	if q, err = api.DeleteComment(ctx, id, commentID); err != nil || len(q.PublicComments) != 0 {
		t.Fatalf("expected comment deleted, got %+v, %v", q.PublicComments, err)
	}

	if err := api.Bookmark(ctx, id); err != nil {
		t.Fatalf("bookmark: %v", err)
	}
	saved, err := api.Bookmarks(ctx)
	if err != nil || len(saved) != 1 || saved[0].ID != id {
		t.Fatalf("expected the bookmarked question, got %+v (%v)", saved, err)
	}
	if err := api.Unbookmark(ctx, id); err != nil {
		t.Fatalf("unbookmark: %v", err)
	}
	if err := api.Unbookmark(ctx, id); !errors.Is(err, domain.ErrBookmarkNotFound) {
		t.Fatalf("expected missing bookmark, got %v", err)
	}
}

func TestAnonymousClientCannotVote(t *testing.T) {
	baseURL, repo := newBackend(t)
	id := testutil.MustCreate(t, repo, testutil.SampleQuestion(7, 2018, "F"), 1)
	tags := []string{"ekg"}
	_, err := New(baseURL, 5*time.Second, nil).Vote(context.Background(), id, domain.VoteRequest{TagVotes: &tags})
	if !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
}

func TestClientAnswerHistoryAndEdit(t *testing.T) {
	ctx := context.Background()
	baseURL, repo := newBackend(t)
	id := testutil.MustCreate(t, repo, testutil.SampleQuestion(7, 2018, "F"), 1)
	student := New(baseURL, 5*time.Second, &domain.User{ID: 10, Role: domain.RoleUser})

	if _, err := student.SubmitAnswer(ctx, domain.Answer{QuestionID: id, AnswerNo: 2}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	history, err := student.Answers(ctx, 7)
	if err != nil || len(history) != 1 || history[0].QuestionID != id || history[0].AnswerNo != 2 {
		t.Fatalf("expected one answer in history, got %+v (%v)", history, err)
	}
	if _, err := New(baseURL, 5*time.Second, nil).Answers(ctx, 0); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected anonymous history refused, got %v", err)
	}

	text := "Hvilken elektrolytforstyrrelse giver spidse T-takker?"
	patch := domain.QuestionPatch{Text: &text}
	if _, err := student.PatchQuestion(ctx, id, patch); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected a plain user's edit refused, got %v", err)
	}
	editor := New(baseURL, 5*time.Second, &domain.User{ID: 2, Role: domain.RoleEditor})
	q, err := editor.PatchQuestion(ctx, id, patch)
	if err != nil || q.Text != text {
		t.Fatalf("expected edited text, got %q (%v)", q.Text, err)
	}
}
