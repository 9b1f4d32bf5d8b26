package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"medquiz-service/internal/app"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/infra/gormdb"
	"medquiz-service/internal/infra/postgres"
	"medquiz-service/internal/infra/postgres/migrations"
	infraredis "medquiz-service/internal/infra/redis"
)

var student = &domain.User{ID: 10, Role: domain.RoleUser}

func TestAnswerAndVoteEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	if _, err := migrations.Run(ctx, pgURL); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewQuestionRepository(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()
	service := app.NewQuestionService(repo,
		infraredis.NewPoolCache(redisClient, app.RepositoryPoolLoader(repo), 5*time.Minute),
		infraredis.NewReportQueue(redisClient, 100),
		infraredis.NewHubStore(redisClient, 5*time.Minute),
	)

	admin := &domain.User{ID: 1, Role: domain.RoleAdmin}
	created, err := service.Create(ctx, sampleQuestion(2018, "F"), admin)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Create(ctx, sampleQuestion(2018, "Ree-F"), admin); err != nil {
		t.Fatalf("create re-exam: %v", err)
	}

	bySet, err := service.List(ctx, domain.QuestionFilter{Semester: 7, ExamYear: 2018, ExamSeason: "F"}, nil)
	if err != nil {
		t.Fatalf("list set: %v", err)
	}
	if len(bySet) != 2 {
		t.Fatalf("expected both sittings of 2018/F, got %d", len(bySet))
	}

	receipt, err := service.Answer(ctx, domain.Answer{QuestionID: created.ID, AnswerNo: 2, Semester: 7}, student)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !receipt.Correct {
		t.Fatalf("expected answer 2 to be correct, got %+v", receipt)
	}
	unanswered, err := service.List(ctx, domain.QuestionFilter{Semester: 7, N: 10, ExcludeAnsweredBy: student.ID, Random: true}, student)
	if err != nil {
		t.Fatalf("list unanswered: %v", err)
	}
	if len(unanswered) != 1 || unanswered[0].ID == created.ID {
		t.Fatalf("expected the answered question excluded, got %+v", unanswered)
	}

	specialties := []string{"nefrologi", "kardiologi"}
	voted, err := service.Vote(ctx, created.ID, domain.VoteRequest{SpecialtyVotes: &specialties}, student)
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if len(voted.UserSpecialtyVotes) != 2 {
		t.Fatalf("expected own votes attached, got %+v", voted.UserSpecialtyVotes)
	}

	sets, err := service.ExamSets(ctx, 7)
	if err != nil {
		t.Fatalf("sets: %v", err)
	}
	if len(sets) != 2 || sets[1].Reex != " (reeks)" {
		t.Fatalf("unexpected sets %+v", sets)
	}

	history, err := service.AnswerHistory(ctx, 7, 0, student)
	if err != nil || len(history) != 1 || history[0].QuestionID != created.ID {
		t.Fatalf("expected one answer in history, got %+v (%v)", history, err)
	}
	if err := service.Bookmark(ctx, created.ID, student); err != nil {
		t.Fatalf("bookmark: %v", err)
	}
	saved, err := service.Bookmarks(ctx, student)
	if err != nil || len(saved) != 1 || saved[0].ID != created.ID {
		t.Fatalf("expected the bookmarked question, got %+v (%v)", saved, err)
	}

	editor := &domain.User{ID: 2, Role: domain.RoleEditor}
	correct := []int{1, 2}
	patched, err := service.Patch(ctx, created.ID, domain.QuestionPatch{CorrectAnswers: &correct}, editor)
	if err != nil || len(patched.CorrectAnswers) != 2 {
		t.Fatalf("expected two correct answers after edit, got %+v (%v)", patched.CorrectAnswers, err)
	}
}

func TestGormPostgresRepository(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db, err := gormdb.Open(gormdb.DriverPostgres, pgURL, "silent")
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	repo := gormdb.NewQuestionRepository(db)
	id, err := repo.CreateQuestion(ctx, sampleQuestion(2019, "E"), 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.FindByIDs(ctx, []int{id})
	if err != nil || len(got) != 1 {
		t.Fatalf("find: %v %+v", err, got)
	}
	if got[0].ExamSet.Season != "E" || len(got[0].Specialties) != 1 {
		t.Fatalf("unexpected question %+v", got[0])
	}
}

func sampleQuestion(year int, season string) domain.NewQuestion {
	return domain.NewQuestion{
		Text:           fmt.Sprintf("Hvilket lægemiddel er et loop-diuretikum? (%s %d)", season, year),
		Answer1:        "Metoprolol",
		Answer2:        "Furosemid",
		Answer3:        "Amlodipin",
		CorrectAnswers: []int{2},
		Semester:       7,
		ExamYear:       year,
		ExamSeason:     season,
		Specialties:    []string{"nefrologi"},
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
