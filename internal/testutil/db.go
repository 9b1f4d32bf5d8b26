package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/infra/gormdb"
)

var dbSeq atomic.Int64

// NewSQLiteDB opens a private in-memory sqlite database with the question schema.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	if err := gormdb.Migrate(db); err != nil {
		t.Fatalf("failed to migrate sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewQuestionRepository returns a gorm repository on a fresh sqlite database.
func NewQuestionRepository(t *testing.T) *gormdb.QuestionRepository {
	t.Helper()
	return gormdb.NewQuestionRepository(NewSQLiteDB(t))
}

// SampleQuestion is a valid question for semester with the given exam sitting.
func SampleQuestion(semester, year int, season string) domain.NewQuestion {
	return domain.NewQuestion{
		Text:           fmt.Sprintf("Spørgsmål fra %s %d", season, year),
		Answer1:        "Furosemid",
		Answer2:        "Spironolacton",
		Answer3:        "Metoprolol",
		CorrectAnswers: []int{2},
		Semester:       semester,
		ExamYear:       year,
		ExamSeason:     season,
	}
}

// MustCreate inserts nq as userID and returns its id.
func MustCreate(t *testing.T, repo *gormdb.QuestionRepository, nq domain.NewQuestion, userID int) int {
	t.Helper()
	id, err := repo.CreateQuestion(context.Background(), nq, userID)
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	return id
}
