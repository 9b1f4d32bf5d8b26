package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"medquiz-service/internal/domain"
)

const questionColumns = `q.id, q.text, q.answer1, q.answer2, q.answer3, q.correct_answers, q.images, q.exam_set_qno,
	s.id, s.semester, s.year, s.season`

const questionFrom = ` FROM questions q JOIN exam_sets s ON s.id = q.exam_set_id`

// QuestionRepository stores questions and everything users attach to them in Postgres.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func (r *QuestionRepository) FindQuestions(ctx context.Context, f domain.QuestionFilter) ([]domain.Question, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if len(f.IDs) > 0 {
		where = append(where, "q.id = ANY("+arg(int64s(f.IDs))+")")
	}
	if f.Semester > 0 {
		where = append(where, "s.semester = "+arg(f.Semester))
	}
	if f.ExamYear > 0 {
		where = append(where, "s.year = "+arg(f.ExamYear))
	}
	if f.ExamSeason != "" {
		where = append(where, "s.season = "+arg(f.ExamSeason))
	}
	if len(f.Specialties) > 0 {
		where = append(where, voteExists(arg(string(domain.VoteSpecialty)), arg(f.Specialties)))
	}
	if len(f.Tags) > 0 {
		where = append(where, voteExists(arg(string(domain.VoteTag)), arg(f.Tags)))
	}
	if f.ExcludeAnsweredBy > 0 {
		where = append(where, "NOT EXISTS (SELECT 1 FROM question_answers a WHERE a.question_id = q.id AND a.user_id = "+arg(f.ExcludeAnsweredBy)+")")
	}

	query := "SELECT " + questionColumns + questionFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Random {
		query += " ORDER BY random()"
	} else {
		query += " ORDER BY s.year, s.season, q.exam_set_qno, q.id"
	}
	if f.N > 0 {
		query += " LIMIT " + arg(f.N)
	}
	return r.queryQuestions(ctx, query, args...)
}

func voteExists(kind, values string) string {
	return "EXISTS (SELECT 1 FROM question_votes v WHERE v.question_id = q.id AND v.kind = " + kind + " AND v.value = ANY(" + values + "))"
}

func (r *QuestionRepository) FindByIDs(ctx context.Context, ids []int) ([]domain.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.FindQuestions(ctx, domain.QuestionFilter{IDs: ids})
}

func (r *QuestionRepository) Search(ctx context.Context, text string, limit int) ([]domain.Question, error) {
	query := "SELECT " + questionColumns + questionFrom +
		` WHERE q.text ILIKE $1 OR q.answer1 ILIKE $1 OR q.answer2 ILIKE $1 OR q.answer3 ILIKE $1
		ORDER BY q.id LIMIT $2`
	return r.queryQuestions(ctx, query, "%"+text+"%", limit)
}

func (r *QuestionRepository) queryQuestions(ctx context.Context, query string, args ...any) ([]domain.Question, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		var (
			q       domain.Question
			correct []byte
			images  []byte
		)
		if err := rows.Scan(&q.ID, &q.Text, &q.Answer1, &q.Answer2, &q.Answer3, &correct, &images, &q.ExamSetQno,
			&q.ExamSet.ID, &q.ExamSet.Semester, &q.ExamSet.Year, &q.ExamSet.Season); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(correct, &q.CorrectAnswers); err != nil {
			return nil, fmt.Errorf("unmarshal correct answers: %w", err)
		}
		if err := json.Unmarshal(images, &q.Images); err != nil {
			return nil, fmt.Errorf("unmarshal images: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	if err := r.attachPublic(ctx, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// attachPublic fills vote tallies and public comments.
func (r *QuestionRepository) attachPublic(ctx context.Context, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	index := indexByID(questions)
	ids := make([]int64, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, int64(q.ID))
	}

	rows, err := r.pool.Query(ctx, `SELECT question_id, kind, value, count(*) FROM question_votes
		WHERE question_id = ANY($1)
		GROUP BY question_id, kind, value
		ORDER BY question_id, kind, count(*) DESC, value`, ids)
	if err != nil {
		return fmt.Errorf("query votes: %w", err)
	}
	for rows.Next() {
		var (
			qid   int
			kind  string
			value string
			votes int
		)
		if err := rows.Scan(&qid, &kind, &value, &votes); err != nil {
			rows.Close()
			return fmt.Errorf("scan votes: %w", err)
		}
		if i, ok := index[qid]; ok {
			questions[i].AddVoteCount(domain.VoteKind(kind), value, votes)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("query votes: %w", err)
	}

	comments, err := r.queryComments(ctx, `WHERE question_id = ANY($1) AND NOT private`, ids)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if i, ok := index[c.QuestionID]; ok {
			questions[i].PublicComments = append(questions[i].PublicComments, c)
		}
	}
	return nil
}

func (r *QuestionRepository) AttachViewer(ctx context.Context, questions []domain.Question, userID int) error {
	if len(questions) == 0 {
		return nil
	}
	index := indexByID(questions)
	ids := make([]int64, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, int64(q.ID))
	}

	comments, err := r.queryComments(ctx, `WHERE question_id = ANY($1) AND private AND user_id = $2`, ids, userID)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if i, ok := index[c.QuestionID]; ok {
			questions[i].PrivateComments = append(questions[i].PrivateComments, c)
		}
	}

	rows, err := r.pool.Query(ctx, `SELECT question_id, kind, value FROM question_votes
		WHERE question_id = ANY($1) AND user_id = $2 ORDER BY question_id, kind, value`, ids, userID)
	if err != nil {
		return fmt.Errorf("query user votes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			qid         int
			kind, value string
		)
		if err := rows.Scan(&qid, &kind, &value); err != nil {
			return fmt.Errorf("scan user votes: %w", err)
		}
		if i, ok := index[qid]; ok {
			questions[i].AddUserVote(domain.VoteKind(kind), value)
		}
	}
	return rows.Err()
}

func (r *QuestionRepository) queryComments(ctx context.Context, where string, args ...any) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, question_id, user_id, text, private, created_at, updated_at
		FROM question_comments `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()
	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.UserID, &c.Text, &c.Private, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
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

	var id int
	err = r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var setID int
		err := tx.QueryRow(ctx, `INSERT INTO exam_sets (semester, year, season) VALUES ($1, $2, $3)
			ON CONFLICT (semester, year, season) DO UPDATE SET season = EXCLUDED.season
			RETURNING id`, nq.Semester, nq.ExamYear, nq.ExamSeason).Scan(&setID)
		if err != nil {
			return fmt.Errorf("upsert exam set: %w", err)
		}
		err = tx.QueryRow(ctx, `INSERT INTO questions
			(text, answer1, answer2, answer3, correct_answers, images, exam_set_id, exam_set_qno, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
			nq.Text, nq.Answer1, nq.Answer2, nq.Answer3, correct, imagesJSON, setID, nq.ExamSetQno, userID).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		if err := insertVotes(ctx, tx, id, userID, domain.VoteSpecialty, nq.Specialties); err != nil {
			return err
		}
		return insertVotes(ctx, tx, id, userID, domain.VoteTag, nq.Tags)
	})
	return id, err
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
	tag, err := r.pool.Exec(ctx, `UPDATE questions SET text = $1, answer1 = $2, answer2 = $3, answer3 = $4,
		correct_answers = $5, images = $6, exam_set_qno = $7 WHERE id = $8`,
		q.Text, q.Answer1, q.Answer2, q.Answer3, correct, imagesJSON, q.ExamSetQno, q.ID)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (r *QuestionRepository) DeleteQuestion(ctx context.Context, id int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete question: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *QuestionRepository) SaveAnswer(ctx context.Context, a domain.Answer) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO question_answers (question_id, user_id, answer, answer_no, semester)
		VALUES ($1, $2, $3, $4, $5)`, a.QuestionID, a.UserID, a.Answer, a.AnswerNo, a.Semester)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

func (r *QuestionRepository) ListAnswers(ctx context.Context, userID, semester, limit int) ([]domain.AnswerRecord, error) {
	query := `SELECT question_id, answer, answer_no, semester, created_at FROM question_answers
		WHERE user_id = $1 AND ($2 = 0 OR semester = $2) ORDER BY created_at DESC, id DESC`
	args := []any{userID, semester}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	records := []domain.AnswerRecord{}
	for rows.Next() {
		var a domain.AnswerRecord
		if err := rows.Scan(&a.QuestionID, &a.Answer, &a.AnswerNo, &a.Semester, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		records = append(records, a)
	}
	return records, rows.Err()
}

func (r *QuestionRepository) ReplaceVotes(ctx context.Context, questionID, userID int, votes map[domain.VoteKind][]string) error {
	return r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		for kind, values := range votes {
			if _, err := tx.Exec(ctx, `DELETE FROM question_votes WHERE question_id = $1 AND user_id = $2 AND kind = $3`,
				questionID, userID, string(kind)); err != nil {
				return fmt.Errorf("clear votes: %w", err)
			}
			if err := insertVotes(ctx, tx, questionID, userID, kind, values); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertVotes(ctx context.Context, tx pgx.Tx, questionID, userID int, kind domain.VoteKind, values []string) error {
	for _, v := range values {
		if _, err := tx.Exec(ctx, `INSERT INTO question_votes (question_id, user_id, kind, value) VALUES ($1, $2, $3, $4)
			ON CONFLICT DO NOTHING`, questionID, userID, string(kind), v); err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}
	}
	return nil
}

func (r *QuestionRepository) CreateComment(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO question_comments (question_id, user_id, text, private, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		c.QuestionID, c.UserID, c.Text, c.Private, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

func (r *QuestionRepository) GetComment(ctx context.Context, questionID, commentID int) (domain.Comment, error) {
	var c domain.Comment
	err := r.pool.QueryRow(ctx, `SELECT id, question_id, user_id, text, private, created_at, updated_at
		FROM question_comments WHERE id = $1 AND question_id = $2`, commentID, questionID).
		Scan(&c.ID, &c.QuestionID, &c.UserID, &c.Text, &c.Private, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, domain.ErrCommentNotFound
	}
	if err != nil {
		return domain.Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

func (r *QuestionRepository) UpdateComment(ctx context.Context, c domain.Comment) error {
	tag, err := r.pool.Exec(ctx, `UPDATE question_comments SET text = $1, private = $2, updated_at = $3
		WHERE id = $4 AND question_id = $5`, c.Text, c.Private, c.UpdatedAt, c.ID, c.QuestionID)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCommentNotFound
	}
	return nil
}

func (r *QuestionRepository) DeleteComment(ctx context.Context, questionID, commentID int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM question_comments WHERE id = $1 AND question_id = $2`, commentID, questionID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCommentNotFound
	}
	return nil
}

func (r *QuestionRepository) AddBookmark(ctx context.Context, userID, questionID int) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO question_bookmarks (user_id, question_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, questionID)
	if err != nil {
		return fmt.Errorf("add bookmark: %w", err)
	}
	return nil
}

func (r *QuestionRepository) RemoveBookmark(ctx context.Context, userID, questionID int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM question_bookmarks WHERE user_id = $1 AND question_id = $2`, userID, questionID)
	if err != nil {
		return false, fmt.Errorf("remove bookmark: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *QuestionRepository) ListBookmarks(ctx context.Context, userID int) ([]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT question_id FROM question_bookmarks WHERE user_id = $1
		ORDER BY created_at DESC, question_id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func indexByID(questions []domain.Question) map[int]int {
	index := make(map[int]int, len(questions))
	for i, q := range questions {
		index[q.ID] = i
	}
	return index
}

func int64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
