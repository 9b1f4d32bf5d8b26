package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"medquiz-service/internal/app"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/logger"
)

// Identity headers set by the fronting session layer.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

const maxBodyBytes = 1 << 20

type userKey struct{}

// UserFromContext returns the identity attached by WithUser, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userKey{}).(*domain.User)
	return u
}

// API serves the question REST endpoints.
type API struct {
	service *app.QuestionService
}

func NewAPI(service *app.QuestionService) *API {
	return &API{service: service}
}

// Register mounts every REST route on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/questions", a.listQuestions)
	mux.HandleFunc("POST /api/questions", a.createQuestion)
	mux.HandleFunc("POST /api/questions/ids", a.questionsByIDs)
	mux.HandleFunc("POST /api/questions/search", a.searchQuestions)
	mux.HandleFunc("POST /api/questions/answer", a.answerQuestion)
	mux.HandleFunc("POST /api/questions/report", a.report)
	mux.HandleFunc("GET /api/questions/{id}", a.getQuestion)
	mux.HandleFunc("PATCH /api/questions/{id}", a.patchQuestion)
	mux.HandleFunc("DELETE /api/questions/{id}", a.deleteQuestion)
	mux.HandleFunc("PUT /api/questions/{id}/vote", a.vote)
	mux.HandleFunc("PUT /api/questions/{id}/comment", a.addComment)
	mux.HandleFunc("PUT /api/questions/{id}/comment/{commentId}", a.editComment)
	mux.HandleFunc("DELETE /api/questions/{id}/comment/{commentId}", a.deleteComment)
	mux.HandleFunc("POST /api/questions/{id}/bookmark", a.bookmark)
	mux.HandleFunc("DELETE /api/questions/{id}/bookmark", a.unbookmark)
	mux.HandleFunc("GET /api/me/bookmarks", a.myBookmarks)
	mux.HandleFunc("GET /api/me/answers", a.myAnswers)
	mux.HandleFunc("GET /api/reports", a.listReports)
	mux.HandleFunc("GET /api/sets", a.examSets)
}

func (a *API) listQuestions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	questions, err := a.service.List(r.Context(), filter, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

// parseFilter reads the listing query. Lists are comma separated; ids override everything else.
func parseFilter(r *http.Request) (domain.QuestionFilter, error) {
	q := r.URL.Query()
	var (
		f   domain.QuestionFilter
		err error
	)
	if f.IDs, err = parseIDList(q.Get("ids")); err != nil {
		return f, err
	}
	if len(f.IDs) > 0 {
		return f, nil
	}
	if f.Semester, err = optionalInt(q.Get("semester"), "semester"); err != nil {
		return f, err
	}
	if f.N, err = optionalInt(q.Get("n"), "n"); err != nil {
		return f, err
	}
	if q.Has("n") && f.N == 0 {
		return f, fmt.Errorf("%w: n must be at least 1", domain.ErrBadRequest)
	}
	if f.ExamYear, err = optionalInt(q.Get("examYear"), "examYear"); err != nil {
		return f, err
	}
	f.ExamSeason = strings.TrimSpace(q.Get("examSeason"))

	specialties := q.Get("specialer")
	if specialties == "" {
		specialties = q.Get("specialties")
	}
	f.Specialties = splitList(specialties)
	f.Tags = splitList(q.Get("tags"))

	if q.Get("unique") == "t" || q.Get("onlyNew") == "true" {
		if u := UserFromContext(r.Context()); u != nil {
			f.ExcludeAnsweredBy = u.ID
		}
	}
	return f, nil
}

func (a *API) questionsByIDs(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []int `json:"ids"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	questions, err := a.service.GetByIDs(r.Context(), body.IDs, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (a *API) getQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := a.service.Get(r.Context(), id, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) createQuestion(w http.ResponseWriter, r *http.Request) {
	var nq domain.NewQuestion
	if err := decodeBody(r, &nq); err != nil {
		writeError(w, err)
		return
	}
	q, err := a.service.Create(r.Context(), nq, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (a *API) patchQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var patch domain.QuestionPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	q, err := a.service.Patch(r.Context(), id, patch, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.service.Delete(r.Context(), id, UserFromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (a *API) searchQuestions(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SearchString string `json:"searchString"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	questions, err := a.service.Search(r.Context(), body.SearchString, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (a *API) answerQuestion(w http.ResponseWriter, r *http.Request) {
	var answer domain.Answer
	if err := decodeBody(r, &answer); err != nil {
		writeError(w, err)
		return
	}
	receipt, err := a.service.Answer(r.Context(), answer, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (a *API) vote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req domain.VoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	q, err := a.service.Vote(r.Context(), id, req, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type commentBody struct {
	Comment   string `json:"comment"`
	IsPrivate bool   `json:"isPrivate"`
}

func (a *API) addComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body commentBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	q, err := a.service.AddComment(r.Context(), id, body.Comment, body.IsPrivate, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) editComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	commentID, err := pathID(r, "commentId")
	if err != nil {
		writeError(w, err)
		return
	}
	var body commentBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	q, err := a.service.EditComment(r.Context(), id, commentID, body.Comment, body.IsPrivate, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) deleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	commentID, err := pathID(r, "commentId")
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := a.service.DeleteComment(r.Context(), id, commentID, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) bookmark(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.service.Bookmark(r.Context(), id, UserFromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questionId": id, "bookmarked": true})
}

func (a *API) unbookmark(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.service.Unbookmark(r.Context(), id, UserFromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questionId": id, "bookmarked": false})
}

func (a *API) myBookmarks(w http.ResponseWriter, r *http.Request) {
	questions, err := a.service.Bookmarks(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (a *API) myAnswers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	semester, err := optionalInt(q.Get("semester"), "semester")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := optionalInt(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	answers, err := a.service.AnswerHistory(r.Context(), semester, limit, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

func (a *API) report(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	report, err := a.service.Report(r.Context(), body.Type, body.Data, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) listReports(w http.ResponseWriter, r *http.Request) {
	limit, err := optionalInt(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	reports, err := a.service.Reports(r.Context(), limit, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (a *API) examSets(w http.ResponseWriter, r *http.Request) {
	semester, err := optionalInt(r.URL.Query().Get("semester"), "semester")
	if err != nil {
		writeError(w, err)
		return
	}
	sets, err := a.service.ExamSets(r.Context(), semester)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

// WithUser attaches the identity from the session headers to the request context.
// A request without a valid user id is anonymous.
func WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id, err := strconv.Atoi(raw); err == nil && id > 0 {
			role := strings.TrimSpace(r.Header.Get(HeaderUserRole))
			if role == "" {
				role = domain.RoleUser
			}
			r = r.WithContext(context.WithValue(r.Context(), userKey{}, &domain.User{ID: id, Role: role}))
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack passes WebSocket upgrades through to the underlying connection.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// LogRequests logs one line per request.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", domain.ErrBadRequest, name)
	}
	return id, nil
}

func optionalInt(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrBadRequest, name)
	}
	return v, nil
}

func parseIDList(raw string) ([]int, error) {
	var ids []int
	for _, part := range splitList(raw) {
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id %q", domain.ErrBadRequest, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		apiErr = &domain.APIError{Type: domain.ErrorType(err), Message: err.Error(), Data: map[string]any{}}
	}
	status := statusFor(apiErr.Type)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		apiErr = &domain.APIError{Type: domain.ErrorTypeServer, Message: "internal server error", Data: map[string]any{}}
	}
	writeJSON(w, status, apiErr)
}

func statusFor(errorType string) int {
	switch errorType {
	case domain.ErrorTypeBadRequest:
		return http.StatusBadRequest
	case domain.ErrorTypeNotAuthorized:
		return http.StatusUnauthorized
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
