package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"medquiz-service/internal/domain"
	"medquiz-service/internal/quiz"
)

func storeWithQuestion(q domain.Question) *quiz.Store {
	store := quiz.NewStore(quiz.DefaultState())
	store.Dispatch(quiz.FetchCompleted(quiz.SliceQuiz, 0, domain.QuizIDs, []domain.Question{q}, store.Now()))
	return store
}

func TestRecordAnswerAnonymousStaysLocal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	store := storeWithQuestion(domain.Question{ID: 4})
	recorder := NewRecorder(New(server.URL, time.Second, nil), store)
	recorder.RecordAnswer(context.Background(), 4, 2, true, 7, nil)
	recorder.Wait()

	if store.State().Questions[0].Answer != 2 {
		t.Fatalf("expected local answer recorded")
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request for anonymous answers, got %d", calls.Load())
	}
}

func TestRecordAnswerSubmitsForUser(t *testing.T) {
	user := &domain.User{ID: 10, Role: domain.RoleUser}
	received := make(chan domain.Answer, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-ID") != "10" {
			t.Errorf("expected identity header, got %q", r.Header.Get("X-User-ID"))
		}
		var a domain.Answer
		_ = json.NewDecoder(r.Body).Decode(&a)
		received <- a
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := storeWithQuestion(domain.Question{ID: 4})
	recorder := NewRecorder(New(server.URL, time.Second, user), store)
	recorder.RecordAnswer(context.Background(), 4, 1, false, 7, user)
	recorder.Wait()

	a := <-received
	if a.QuestionID != 4 || a.Answer != "wrong" || a.AnswerNo != 1 || a.Semester != 7 {
		t.Fatalf("unexpected submitted answer %+v", a)
	}
	if store.State().Questions[0].Answer != 1 {
		t.Fatalf("expected local answer kept after failed submit")
	}
}

func TestRecordVoteReplacesLocalMetadata(t *testing.T) {
	user := &domain.User{ID: 10, Role: domain.RoleUser}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req domain.VoteRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.SpecialtyVotes == nil || req.TagVotes != nil {
			t.Errorf("expected specialty votes only, got %+v", req)
		}
		_ = json.NewEncoder(w).Encode(domain.Question{ID: 4, Specialties: *req.SpecialtyVotes, UserSpecialtyVotes: *req.SpecialtyVotes})
	}))
	defer server.Close()

	store := storeWithQuestion(domain.Question{ID: 4, Specialties: []string{"urologi"}})
	store.Dispatch(quiz.AnswerQuestion(4, 3))
	recorder := NewRecorder(New(server.URL, time.Second, user), store)

	if _, err := recorder.RecordVote(context.Background(), domain.VoteSpecialty, []string{"onkologi"}, user, 4); err != nil {
		t.Fatalf("vote: %v", err)
	}
	q := store.State().Questions[0]
	if len(q.Specialties) != 1 || q.Specialties[0] != "onkologi" || q.Answer != 3 {
		t.Fatalf("expected server metadata with local answer, got %+v", q)
	}

	if _, err := recorder.RecordVote(context.Background(), domain.VoteTag, nil, nil, 4); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected anonymous vote refused, got %v", err)
	}
}

func TestClientDecodesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(domain.APIError{Type: domain.ErrorTypeNotFound, Message: "question not found"})
	}))
	defer server.Close()

	_, err := New(server.URL, time.Second, nil).Question(context.Background(), 9)
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected APIError with status, got %v", err)
	}
	if !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected error to match not-found sentinel")
	}
}
