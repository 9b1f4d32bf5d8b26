package gormdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"medquiz-service/internal/domain"
)

// QuestionRepository is the gorm implementation of app.QuestionRepository. It runs against
// sqlite for local use and tests, or against Postgres.
type QuestionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

func (r *QuestionRepository) FindQuestions(ctx context.Context, f domain.QuestionFilter) ([]domain.Question, error) {
	q := r.db.WithContext(ctx).
		Model(&Question{}).
		Select("questions.*").
		Joins("JOIN exam_sets ON exam_sets.id = questions.exam_set_id")

	if len(f.IDs) > 0 {
		q = q.Where("questions.id IN ?", f.IDs)
	}
	if f.Semester > 0 {
		q = q.Where("exam_sets.semester = ?", f.Semester)
	}
	if f.ExamYear > 0 {
		q = q.Where("exam_sets.year = ?", f.ExamYear)
	}
	if f.ExamSeason != "" {
		q = q.Where("exam_sets.season = ?", f.ExamSeason)
	}
	if len(f.Specialties) > 0 {
		q = q.Where(voteExists, string(domain.VoteSpecialty), f.Specialties)
	}
	if len(f.Tags) > 0 {
		q = q.Where(voteExists, string(domain.VoteTag), f.Tags)
	}
	if f.ExcludeAnsweredBy > 0 {
		q = q.Where("NOT EXISTS (SELECT 1 FROM question_answers a WHERE a.question_id = questions.id AND a.user_id = ?)", f.ExcludeAnsweredBy)
	}
	if f.Random {
		q = q.Order("RANDOM()")
	} else {
		q = q.Order("exam_sets.year, exam_sets.season, questions.exam_set_qno, questions.id")
	}
	if f.N > 0 {
		q = q.Limit(f.N)
	}
	return r.find(q)
}

const voteExists = "EXISTS (SELECT 1 FROM question_votes v WHERE v.question_id = questions.id AND v.kind = ? AND v.value IN ?)"

func (r *QuestionRepository) FindByIDs(ctx context.Context, ids []int) ([]domain.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.FindQuestions(ctx, domain.QuestionFilter{IDs: ids})
}

func (r *QuestionRepository) Search(ctx context.Context, text string, limit int) ([]domain.Question, error) {
	pattern := "%" + strings.ToLower(text) + "%"
	q := r.db.WithContext(ctx).
		Model(&Question{}).
		Where("LOWER(text) LIKE ? OR LOWER(answer1) LIKE ? OR LOWER(answer2) LIKE ? OR LOWER(answer3) LIKE ?",
			pattern, pattern, pattern, pattern).
		Order("id").
		Limit(limit)
	return r.find(q)
}

func (r *QuestionRepository) find(q *gorm.DB) ([]domain.Question, error) {
	var rows []Question
	err := q.Preload("ExamSet").
		Preload("Votes").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Where("private = ?", false).Order("created_at, id")
		}).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}

	questions := make([]domain.Question, 0, len(rows))
	for _, row := range rows {
		question, err := toDomain(row)
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}
	return questions, nil
}

func toDomain(row Question) (domain.Question, error) {
	q := domain.Question{
		ID:         int(row.ID),
		Text:       row.Text,
		Answer1:    row.Answer1,
		Answer2:    row.Answer2,
		Answer3:    row.Answer3,
		ExamSetQno: row.ExamSetQno,
		ExamSet: domain.ExamSet{
			ID:       int(row.ExamSet.ID),
			Semester: row.ExamSet.Semester,
			Year:     row.ExamSet.Year,
			Season:   row.ExamSet.Season,
		},
	}
	if err := json.Unmarshal(row.CorrectAnswers, &q.CorrectAnswers); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal correct answers: %w", err)
	}
	if len(row.Images) > 0 {
		if err := json.Unmarshal(row.Images, &q.Images); err != nil {
			return domain.Question{}, fmt.Errorf("unmarshal images: %w", err)
		}
	}
	for _, c := range tallyVotes(row.Votes) {
		q.AddVoteCount(c.kind, c.value, c.votes)
	}
	for _, c := range row.Comments {
		q.PublicComments = append(q.PublicComments, commentToDomain(c))
	}
	return q, nil
}

type voteCount struct {
	kind  domain.VoteKind
	value string
	votes int
}

// tallyVotes counts votes per kind and value, most voted first.
func tallyVotes(votes []QuestionVote) []voteCount {
	index := make(map[[2]string]int)
	var counts []voteCount
	for _, v := range votes {
		key := [2]string{v.Kind, v.Value}
		if i, ok := index[key]; ok {
			counts[i].votes++
			continue
		}
		index[key] = len(counts)
		counts = append(counts, voteCount{kind: domain.VoteKind(v.Kind), value: v.Value, votes: 1})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].kind != counts[j].kind {
			return counts[i].kind < counts[j].kind
		}
		if counts[i].votes != counts[j].votes {
			return counts[i].votes > counts[j].votes
		}
		return counts[i].value < counts[j].value
	})
	return counts
}

func commentToDomain(c QuestionComment) domain.Comment {
	return domain.Comment{
		ID:         int(c.ID),
		QuestionID: int(c.QuestionID),
		UserID:     c.UserID,
		Text:       c.Text,
		Private:    c.Private,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func (r *QuestionRepository) AttachViewer(ctx context.Context, questions []domain.Question, userID int) error {
	if len(questions) == 0 {
		return nil
	}
	index := make(map[int]int, len(questions))
	ids := make([]int, 0, len(questions))
	for i, q := range questions {
		index[q.ID] = i
		ids = append(ids, q.ID)
	}

	var comments []QuestionComment
	if err := r.db.WithContext(ctx).
		Where("question_id IN ? AND private = ? AND user_id = ?", ids, true, userID).
		Order("created_at, id").
		Find(&comments).Error; err != nil {
		return fmt.Errorf("find private comments: %w", err)
	}
	for _, c := range comments {
		if i, ok := index[int(c.QuestionID)]; ok {
			questions[i].PrivateComments = append(questions[i].PrivateComments, commentToDomain(c))
		}
	}

	var votes []QuestionVote
	if err := r.db.WithContext(ctx).
		Where("question_id IN ? AND user_id = ?", ids, userID).
		Order("question_id, kind, value").
		Find(&votes).Error; err != nil {
		return fmt.Errorf("find user votes: %w", err)
	}
	for _, v := range votes {
		if i, ok := index[int(v.QuestionID)]; ok {
			questions[i].AddUserVote(domain.VoteKind(v.Kind), v.Value)
		}
	}
	return nil
}

func (r *QuestionRepository) CreateQuestion(ctx context.Context, nq domain.NewQuestion, userID int) (int, error) {
	correct, err := json.Marshal(nq.CorrectAnswers)
	if err != nil {
		return 0, err
	}
	images := nq.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return 0, err
	}

	var id uint
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		set := ExamSet{Semester: nq.Semester, Year: nq.ExamYear, Season: nq.ExamSeason}
		if err := tx.Where(&set).FirstOrCreate(&set).Error; err != nil {
			return fmt.Errorf("upsert exam set: %w", err)
		}
		creator := userID
		row := Question{
			Text:           nq.Text,
			Answer1:        nq.Answer1,
			Answer2:        nq.Answer2,
			Answer3:        nq.Answer3,
			CorrectAnswers: datatypes.JSON(correct),
			Images:         datatypes.JSON(imagesJSON),
			ExamSetID:      set.ID,
			ExamSetQno:     nq.ExamSetQno,
			CreatedBy:      &creator,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		id = row.ID
		if err := insertVotes(tx, row.ID, userID, domain.VoteSpecialty, nq.Specialties); err != nil {
			return err
		}
		return insertVotes(tx, row.ID, userID, domain.VoteTag, nq.Tags)
	})
	return int(id), err
}

func (r *QuestionRepository) UpdateQuestion(ctx context.Context, q domain.Question) error {
	correct, err := json.Marshal(q.CorrectAnswers)
	if err != nil {
		return err
	}
	images := q.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&Question{}).
		Where("id = ?", q.ID).
		Updates(map[string]any{
			"text":            q.Text,
			"answer1":         q.Answer1,
			"answer2":         q.Answer2,
			"answer3":         q.Answer3,
			"correct_answers": datatypes.JSON(correct),
			"images":          datatypes.JSON(imagesJSON),
			"exam_set_qno":    q.ExamSetQno,
		})
	if res.Error != nil {
		return fmt.Errorf("update question: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func insertVotes(tx *gorm.DB, questionID uint, userID int, kind domain.VoteKind, values []string) error {
	if len(values) == 0 {
		return nil
	}
	rows := make([]QuestionVote, 0, len(values))
	for _, v := range values {
		rows = append(rows, QuestionVote{QuestionID: questionID, UserID: userID, Kind: string(kind), Value: v})
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert votes: %w", err)
	}
	return nil
}

func (r *QuestionRepository) DeleteQuestion(ctx context.Context, id int) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []any{&QuestionVote{}, &QuestionAnswer{}, &QuestionComment{}, &QuestionBookmark{}} {
			if err := tx.Where("question_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&Question{}, id)
		deleted = res.RowsAffected > 0
		return res.Error
	})
	if err != nil {
		return false, fmt.Errorf("delete question: %w", err)
	}
	return deleted, nil
}

func (r *QuestionRepository) SaveAnswer(ctx context.Context, a domain.Answer) error {
	row := QuestionAnswer{
		QuestionID: uint(a.QuestionID),
		UserID:     a.UserID,
		Answer:     a.Answer,
		AnswerNo:   a.AnswerNo,
		Semester:   a.Semester,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

func (r *QuestionRepository) ListAnswers(ctx context.Context, userID, semester, limit int) ([]domain.AnswerRecord, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if semester > 0 {
		q = q.Where("semester = ?", semester)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []QuestionAnswer
	if err := q.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	records := make([]domain.AnswerRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.AnswerRecord{
			QuestionID: int(row.QuestionID),
			Answer:     row.Answer,
			AnswerNo:   row.AnswerNo,
			Semester:   row.Semester,
			CreatedAt:  row.CreatedAt,
		})
	}
	return records, nil
}

func (r *QuestionRepository) ReplaceVotes(ctx context.Context, questionID, userID int, votes map[domain.VoteKind][]string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for kind, values := range votes {
			if err := tx.Where("question_id = ? AND user_id = ? AND kind = ?", questionID, userID, string(kind)).
				Delete(&QuestionVote{}).Error; err != nil {
				return fmt.Errorf("clear votes: %w", err)
			}
			if err := insertVotes(tx, uint(questionID), userID, kind, values); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *QuestionRepository) CreateComment(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	row := QuestionComment{
		QuestionID: uint(c.QuestionID),
		UserID:     c.UserID,
		Text:       c.Text,
		Private:    c.Private,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return commentToDomain(row), nil
}

func (r *QuestionRepository) GetComment(ctx context.Context, questionID, commentID int) (domain.Comment, error) {
	var row QuestionComment
	err := r.db.WithContext(ctx).First(&row, "id = ? AND question_id = ?", commentID, questionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Comment{}, domain.ErrCommentNotFound
	}
	if err != nil {
		return domain.Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return commentToDomain(row), nil
}

func (r *QuestionRepository) UpdateComment(ctx context.Context, c domain.Comment) error {
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	res := r.db.WithContext(ctx).Model(&QuestionComment{}).
		Where("id = ? AND question_id = ?", c.ID, c.QuestionID).
		Updates(map[string]any{"text": c.Text, "private": c.Private, "updated_at": updatedAt})
	if res.Error != nil {
		return fmt.Errorf("update comment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrCommentNotFound
	}
	return nil
}

func (r *QuestionRepository) DeleteComment(ctx context.Context, questionID, commentID int) error {
	res := r.db.WithContext(ctx).Where("id = ? AND question_id = ?", commentID, questionID).Delete(&QuestionComment{})
	if res.Error != nil {
		return fmt.Errorf("delete comment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrCommentNotFound
	}
	return nil
}

func (r *QuestionRepository) AddBookmark(ctx context.Context, userID, questionID int) error {
	row := QuestionBookmark{UserID: userID, QuestionID: uint(questionID)}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("add bookmark: %w", err)
	}
	return nil
}

func (r *QuestionRepository) RemoveBookmark(ctx context.Context, userID, questionID int) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND question_id = ?", userID, questionID).Delete(&QuestionBookmark{})
	if res.Error != nil {
		return false, fmt.Errorf("remove bookmark: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *QuestionRepository) ListBookmarks(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.WithContext(ctx).Model(&QuestionBookmark{}).
		Where("user_id = ?", userID).
		Order("created_at DESC, question_id DESC").
		Pluck("question_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return ids, nil
}
