package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/logger"
	"medquiz-service/internal/quiz"
)

// MaxQuestions is the largest listing a non-admin may request.
const MaxQuestions = 300

const searchLimit = 100

// QuestionRepository abstracts the relational store (pgx or gorm).
type QuestionRepository interface {
	QuestionFinder
	FindQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error)
	Search(ctx context.Context, text string, limit int) ([]domain.Question, error)
	// AttachViewer fills private comments and own votes of userID into questions in place.
	AttachViewer(ctx context.Context, questions []domain.Question, userID int) error
	CreateQuestion(ctx context.Context, q domain.NewQuestion, userID int) (int, error)
	// UpdateQuestion writes the editable fields of q (text, answers, correct answers, images, qno).
	UpdateQuestion(ctx context.Context, q domain.Question) error
	DeleteQuestion(ctx context.Context, id int) (bool, error)
	SaveAnswer(ctx context.Context, a domain.Answer) error
	// ListAnswers returns userID's answers, newest first. A zero semester means all semesters.
	ListAnswers(ctx context.Context, userID, semester, limit int) ([]domain.AnswerRecord, error)
	// ReplaceVotes replaces, per kind present in votes, all votes of userID on questionID.
	ReplaceVotes(ctx context.Context, questionID, userID int, votes map[domain.VoteKind][]string) error
	CreateComment(ctx context.Context, c domain.Comment) (domain.Comment, error)
	GetComment(ctx context.Context, questionID, commentID int) (domain.Comment, error)
	UpdateComment(ctx context.Context, c domain.Comment) error
	DeleteComment(ctx context.Context, questionID, commentID int) error
	AddBookmark(ctx context.Context, userID, questionID int) error
	RemoveBookmark(ctx context.Context, userID, questionID int) (bool, error)
	// ListBookmarks returns the bookmarked question ids of userID, newest first.
	ListBookmarks(ctx context.Context, userID int) ([]int, error)
}

// PoolCache serves whole-semester question pools (memory or Redis).
type PoolCache interface {
	GetPool(ctx context.Context, semester int) ([]domain.Question, error)
	Invalidate(ctx context.Context, semester int) error
}

// ReportQueue stores user reports for the editors.
type ReportQueue interface {
	Push(ctx context.Context, r domain.Report) error
	List(ctx context.Context, limit int) ([]domain.Report, error)
}

// HubRepository abstracts where vote hubs live (in-memory, Redis-marked, etc).
type HubRepository interface {
	GetOrCreate(questionID int) *Hub
	Get(questionID int) (*Hub, bool)
	DeleteIfIdle(questionID int)
}

// QuestionService contains the backend use cases.
type QuestionService struct {
	repo    QuestionRepository
	pools   PoolCache
	reports ReportQueue
	hubs    HubRepository
	loader  *QuestionLoader
	now     func() time.Time
}

func NewQuestionService(repo QuestionRepository, pools PoolCache, reports ReportQueue, hubs HubRepository) *QuestionService {
	return &QuestionService{
		repo:    repo,
		pools:   pools,
		reports: reports,
		hubs:    hubs,
		loader:  NewQuestionLoader(repo),
		now:     time.Now,
	}
}

// List returns the questions matching filter. A request for a bare semester is served from
// the pool cache; everything else goes to the repository in random order.
func (s *QuestionService) List(ctx context.Context, filter domain.QuestionFilter, user *domain.User) ([]domain.Question, error) {
	if len(filter.IDs) > 0 {
		return s.GetByIDs(ctx, filter.IDs, user)
	}
	if !user.IsAdmin() {
		tooMany := filter.N > MaxQuestions
		unbounded := filter.N == 0 && filter.Semester == 0
		if tooMany || unbounded {
			requested := "all"
			if filter.N > 0 {
				requested = fmt.Sprint(filter.N)
			}
			return nil, fmt.Errorf("%w: you requested too many questions. The limit for non-admins is %d (you requested %s)",
				domain.ErrNotAuthorized, MaxQuestions, requested)
		}
	}
	if user == nil {
		filter.ExcludeAnsweredBy = 0
	}

	var (
		questions []domain.Question
		err       error
	)
	if isPoolRequest(filter) {
		questions, err = s.pools.GetPool(ctx, filter.Semester)
		questions = cloneQuestions(questions)
	} else {
		season := filter.ExamSeason
		filter.ExamSeason = ""
		filter.Random = filter.ExamYear == 0
		questions, err = s.repo.FindQuestions(ctx, filter)
		if season != "" {
			questions = filterSeason(questions, season)
		}
	}
	if err != nil {
		return nil, err
	}
	return s.withViewer(ctx, questions, user)
}

func isPoolRequest(f domain.QuestionFilter) bool {
	return f.Semester > 0 && f.N == 0 && len(f.Specialties) == 0 && len(f.Tags) == 0 &&
		f.ExamYear == 0 && f.ExamSeason == "" && f.ExcludeAnsweredBy == 0
}

// filterSeason keeps questions from the sittings selected by a set key season.
// A key of "F" matches both the ordinary and the re-exam sitting of that season.
func filterSeason(questions []domain.Question, season string) []domain.Question {
	out := questions[:0]
	for _, q := range questions {
		if quiz.SeasonMatches(q.ExamSet.Season, season) {
			out = append(out, q)
		}
	}
	return out
}

// Get returns one question, batching concurrent lookups.
func (s *QuestionService) Get(ctx context.Context, id int, user *domain.User) (domain.Question, error) {
	q, err := s.loader.Load(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	out, err := s.withViewer(ctx, []domain.Question{q}, user)
	if err != nil {
		return domain.Question{}, err
	}
	return out[0], nil
}

// GetByIDs returns the existing questions among ids. Order is not guaranteed.
func (s *QuestionService) GetByIDs(ctx context.Context, ids []int, user *domain.User) ([]domain.Question, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ids must not be empty", domain.ErrBadRequest)
	}
	questions, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.withViewer(ctx, questions, user)
}

// Search performs a text search over question text and answers.
func (s *QuestionService) Search(ctx context.Context, text string, user *domain.User) ([]domain.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: searchString must not be empty", domain.ErrBadRequest)
	}
	questions, err := s.repo.Search(ctx, text, searchLimit)
	if err != nil {
		return nil, err
	}
	return s.withViewer(ctx, questions, user)
}

// Create inserts a question. Admins only.
func (s *QuestionService) Create(ctx context.Context, nq domain.NewQuestion, user *domain.User) (domain.Question, error) {
	if user == nil || user.Role != domain.RoleAdmin {
		return domain.Question{}, domain.ErrNotAuthorized
	}
	if err := validateNewQuestion(nq); err != nil {
		return domain.Question{}, err
	}
	id, err := s.repo.CreateQuestion(ctx, nq, user.ID)
	if err != nil {
		return domain.Question{}, err
	}
	s.invalidatePool(ctx, nq.Semester)
	logger.Info("question created", "question_id", id, "semester", nq.Semester, "user_id", user.ID)
	return s.reload(ctx, id, user)
}

func validateNewQuestion(nq domain.NewQuestion) error {
	problems := contentProblems(domain.Question{
		Text:           nq.Text,
		Answer1:        nq.Answer1,
		Answer2:        nq.Answer2,
		Answer3:        nq.Answer3,
		CorrectAnswers: nq.CorrectAnswers,
	})
	if nq.Semester <= 0 || nq.ExamYear <= 0 || strings.TrimSpace(nq.ExamSeason) == "" {
		problems = append(problems, "semester, examYear and examSeason are required")
	}
	return validationError(problems)
}

// contentProblems checks the parts of a question an editor can change.
func contentProblems(q domain.Question) []string {
	var problems []string
	if strings.TrimSpace(q.Text) == "" {
		problems = append(problems, "text is required")
	}
	if q.Answer1 == "" || q.Answer2 == "" || q.Answer3 == "" {
		problems = append(problems, "all three answers are required")
	}
	if len(q.CorrectAnswers) == 0 {
		problems = append(problems, "at least one correct answer is required")
	}
	for _, c := range q.CorrectAnswers {
		if c < 1 || c > 3 {
			problems = append(problems, fmt.Sprintf("correct answer %d is not 1, 2 or 3", c))
		}
	}
	return problems
}

func validationError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(problems, "; "))
}

// Delete removes a question. Admins only.
func (s *QuestionService) Delete(ctx context.Context, id int, user *domain.User) error {
	if user == nil || user.Role != domain.RoleAdmin {
		return domain.ErrNotAuthorized
	}
	existing, err := s.repo.FindByIDs(ctx, []int{id})
	if err != nil {
		return err
	}
	deleted, err := s.repo.DeleteQuestion(ctx, id)
	if err != nil {
		return err
	}
	if !deleted || len(existing) == 0 {
		return domain.ErrQuestionNotFound
	}
	s.invalidatePool(ctx, existing[0].Semester())
	logger.Info("question deleted", "question_id", id, "user_id", user.ID)
	return nil
}

// Patch edits a question's text, answers, images or numbering. Editors and admins only.
func (s *QuestionService) Patch(ctx context.Context, id int, patch domain.QuestionPatch, user *domain.User) (domain.Question, error) {
	if user == nil || (user.Role != domain.RoleAdmin && user.Role != domain.RoleEditor) {
		return domain.Question{}, domain.ErrNotAuthorized
	}
	if patch.Empty() {
		return domain.Question{}, fmt.Errorf("%w: nothing to update", domain.ErrBadRequest)
	}
	existing, err := s.repo.FindByIDs(ctx, []int{id})
	if err != nil {
		return domain.Question{}, err
	}
	if len(existing) == 0 {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	updated := patch.Apply(existing[0])
	if err := validationError(contentProblems(updated)); err != nil {
		return domain.Question{}, err
	}
	if err := s.repo.UpdateQuestion(ctx, updated); err != nil {
		return domain.Question{}, err
	}
	s.invalidatePool(ctx, updated.Semester())
	logger.Info("question updated", "question_id", id, "user_id", user.ID)
	return s.reload(ctx, id, user)
}

// Answer stores an answer. Correctness is decided here from the stored correct answers;
// anonymous answers are stored without a user.
func (s *QuestionService) Answer(ctx context.Context, a domain.Answer, user *domain.User) (domain.AnswerReceipt, error) {
	if a.QuestionID <= 0 {
		return domain.AnswerReceipt{}, fmt.Errorf("%w: you must provide a question id", domain.ErrBadRequest)
	}
	if a.AnswerNo < 1 || a.AnswerNo > 3 {
		return domain.AnswerReceipt{}, fmt.Errorf("%w: answerNo must be 1, 2 or 3", domain.ErrBadRequest)
	}
	q, err := s.loader.Load(ctx, a.QuestionID)
	if err != nil {
		return domain.AnswerReceipt{}, err
	}

	correct := q.IsCorrect(a.AnswerNo)
	a.Answer = "wrong"
	if correct {
		a.Answer = "correct"
	}
	if a.Semester == 0 {
		a.Semester = q.Semester()
	}
	a.UserID = nil
	if user != nil {
		id := user.ID
		a.UserID = &id
	}
	if err := s.repo.SaveAnswer(ctx, a); err != nil {
		return domain.AnswerReceipt{}, err
	}
	return domain.AnswerReceipt{
		Answer:         a.AnswerNo,
		QuestionID:     q.ID,
		Correct:        correct,
		CorrectAnswers: q.CorrectAnswers,
	}, nil
}

// Vote replaces the user's specialty and/or tag votes on a question and returns the question
// with recomputed tallies. Hub subscribers receive the new tally.
func (s *QuestionService) Vote(ctx context.Context, questionID int, req domain.VoteRequest, user *domain.User) (domain.Question, error) {
	if user == nil {
		return domain.Question{}, fmt.Errorf("%w: voting requires a user", domain.ErrNotAuthorized)
	}
	if questionID <= 0 {
		return domain.Question{}, fmt.Errorf("%w: you must provide a question id", domain.ErrBadRequest)
	}
	if req.SpecialtyVotes == nil && req.TagVotes == nil {
		return domain.Question{}, fmt.Errorf("%w: you must provide either specialty votes or tag votes", domain.ErrBadRequest)
	}
	existing, err := s.loader.Load(ctx, questionID)
	if err != nil {
		return domain.Question{}, err
	}

	votes := make(map[domain.VoteKind][]string, 2)
	if req.SpecialtyVotes != nil {
		votes[domain.VoteSpecialty] = normalizeValues(*req.SpecialtyVotes)
	}
	if req.TagVotes != nil {
		votes[domain.VoteTag] = normalizeValues(*req.TagVotes)
	}
	if err := s.repo.ReplaceVotes(ctx, questionID, user.ID, votes); err != nil {
		return domain.Question{}, err
	}
	s.invalidatePool(ctx, existing.Semester())

	updated, err := s.reload(ctx, questionID, user)
	if err != nil {
		return domain.Question{}, err
	}
	if hub, ok := s.hubs.Get(questionID); ok {
		hub.publish(updated.Tally())
	}
	return updated, nil
}

func normalizeValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// AddComment adds a public or private comment and returns the refreshed question.
func (s *QuestionService) AddComment(ctx context.Context, questionID int, text string, private bool, user *domain.User) (domain.Question, error) {
	if user == nil {
		return domain.Question{}, fmt.Errorf("%w: commenting requires a user", domain.ErrNotAuthorized)
	}
	if strings.TrimSpace(text) == "" {
		return domain.Question{}, fmt.Errorf("%w: comment must not be empty", domain.ErrBadRequest)
	}
	if _, err := s.loader.Load(ctx, questionID); err != nil {
		return domain.Question{}, err
	}
	now := s.now()
	if _, err := s.repo.CreateComment(ctx, domain.Comment{
		QuestionID: questionID,
		UserID:     user.ID,
		Text:       text,
		Private:    private,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return domain.Question{}, err
	}
	return s.reload(ctx, questionID, user)
}

// EditComment changes a comment owned by the user (or any comment for admins).
func (s *QuestionService) EditComment(ctx context.Context, questionID, commentID int, text string, private bool, user *domain.User) (domain.Question, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Question{}, fmt.Errorf("%w: comment must not be empty", domain.ErrBadRequest)
	}
	c, err := s.ownedComment(ctx, questionID, commentID, user)
	if err != nil {
		return domain.Question{}, err
	}
	c.Text = text
	c.Private = private
	c.UpdatedAt = s.now()
	if err := s.repo.UpdateComment(ctx, c); err != nil {
		return domain.Question{}, err
	}
	return s.reload(ctx, questionID, user)
}

// DeleteComment removes a comment owned by the user (or any comment for admins).
func (s *QuestionService) DeleteComment(ctx context.Context, questionID, commentID int, user *domain.User) (domain.Question, error) {
	if _, err := s.ownedComment(ctx, questionID, commentID, user); err != nil {
		return domain.Question{}, err
	}
	if err := s.repo.DeleteComment(ctx, questionID, commentID); err != nil {
		return domain.Question{}, err
	}
	return s.reload(ctx, questionID, user)
}

func (s *QuestionService) ownedComment(ctx context.Context, questionID, commentID int, user *domain.User) (domain.Comment, error) {
	if user == nil {
		return domain.Comment{}, fmt.Errorf("%w: editing comments requires a user", domain.ErrNotAuthorized)
	}
	c, err := s.repo.GetComment(ctx, questionID, commentID)
	if err != nil {
		return domain.Comment{}, err
	}
	if c.UserID != user.ID && user.Role != domain.RoleAdmin {
		return domain.Comment{}, fmt.Errorf("%w: you can only change your own comments", domain.ErrNotAuthorized)
	}
	return c, nil
}

// Bookmark saves a question for later.
func (s *QuestionService) Bookmark(ctx context.Context, questionID int, user *domain.User) error {
	if user == nil {
		return fmt.Errorf("%w: bookmarks require a user", domain.ErrNotAuthorized)
	}
	if _, err := s.loader.Load(ctx, questionID); err != nil {
		return err
	}
	return s.repo.AddBookmark(ctx, user.ID, questionID)
}

// Unbookmark removes a bookmark.
func (s *QuestionService) Unbookmark(ctx context.Context, questionID int, user *domain.User) error {
	if user == nil {
		return fmt.Errorf("%w: bookmarks require a user", domain.ErrNotAuthorized)
	}
	removed, err := s.repo.RemoveBookmark(ctx, user.ID, questionID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrBookmarkNotFound
	}
	return nil
}

// Bookmarks returns the user's bookmarked questions, most recently bookmarked first.
func (s *QuestionService) Bookmarks(ctx context.Context, user *domain.User) ([]domain.Question, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: bookmarks require a user", domain.ErrNotAuthorized)
	}
	ids, err := s.repo.ListBookmarks(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Question{}, nil
	}
	questions, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	ordered := make([]domain.Question, 0, len(questions))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return s.withViewer(ctx, ordered, user)
}

// AnswerHistory lists the user's answers, newest first, optionally for one semester only.
func (s *QuestionService) AnswerHistory(ctx context.Context, semester, limit int, user *domain.User) ([]domain.AnswerRecord, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: answer history requires a user", domain.ErrNotAuthorized)
	}
	if limit <= 0 || limit > MaxQuestions {
		limit = MaxQuestions
	}
	return s.repo.ListAnswers(ctx, user.ID, semester, limit)
}

// Report queues a report for the editors.
func (s *QuestionService) Report(ctx context.Context, reportType string, data json.RawMessage, user *domain.User) (domain.Report, error) {
	if strings.TrimSpace(reportType) == "" {
		return domain.Report{}, fmt.Errorf("%w: report type is required", domain.ErrBadRequest)
	}
	r := domain.Report{
		ID:        uuid.NewString(),
		Type:      reportType,
		Data:      data,
		CreatedAt: s.now(),
	}
	if user != nil {
		id := user.ID
		r.UserID = &id
	}
	if err := s.reports.Push(ctx, r); err != nil {
		return domain.Report{}, err
	}
	logger.Info("report queued", "report_id", r.ID, "type", r.Type)
	return r, nil
}

// Reports lists queued reports, newest first. Editors and admins only.
func (s *QuestionService) Reports(ctx context.Context, limit int, user *domain.User) ([]domain.Report, error) {
	if user == nil || (user.Role != domain.RoleAdmin && user.Role != domain.RoleEditor) {
		return nil, domain.ErrNotAuthorized
	}
	if limit <= 0 {
		limit = 50
	}
	return s.reports.List(ctx, limit)
}

// ExamSets lists the exam sittings that have questions in semester.
func (s *QuestionService) ExamSets(ctx context.Context, semester int) ([]domain.ExamSetDescriptor, error) {
	if semester <= 0 {
		return nil, fmt.Errorf("%w: semester is required", domain.ErrBadRequest)
	}
	pool, err := s.pools.GetPool(ctx, semester)
	if err != nil {
		return nil, err
	}
	return quiz.DeriveSets(pool), nil
}

// SubscribeTallies returns a channel of vote tallies for a question, starting with the
// current one. The caller must invoke the returned cancel function to avoid leaks.
func (s *QuestionService) SubscribeTallies(ctx context.Context, questionID int) (<-chan domain.VoteTally, func(), error) {
	q, err := s.loader.Load(ctx, questionID)
	if err != nil {
		return nil, nil, err
	}
	hub := s.hubs.GetOrCreate(questionID)
	hub.seed(q.Tally())
	ch, cancel := hub.subscribe()
	return ch, func() {
		cancel()
		if hub.IsIdle() {
			s.hubs.DeleteIfIdle(questionID)
		}
	}, nil
}

func (s *QuestionService) reload(ctx context.Context, id int, user *domain.User) (domain.Question, error) {
	questions, err := s.repo.FindByIDs(ctx, []int{id})
	if err != nil {
		return domain.Question{}, err
	}
	if len(questions) == 0 {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	out, err := s.withViewer(ctx, questions, user)
	if err != nil {
		return domain.Question{}, err
	}
	return out[0], nil
}

func (s *QuestionService) withViewer(ctx context.Context, questions []domain.Question, user *domain.User) ([]domain.Question, error) {
	if user == nil || len(questions) == 0 {
		return questions, nil
	}
	if err := s.repo.AttachViewer(ctx, questions, user.ID); err != nil {
		return nil, err
	}
	return questions, nil
}

func (s *QuestionService) invalidatePool(ctx context.Context, semester int) {
	if semester <= 0 {
		return
	}
	if err := s.pools.Invalidate(ctx, semester); err != nil {
		logger.Error("failed to invalidate question pool", "semester", semester, "error", err)
	}
}

func cloneQuestions(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	return out
}
