package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"medquiz-service/internal/app"
	"medquiz-service/internal/infra/gormdb"
	"medquiz-service/internal/infra/memory"
	"medquiz-service/internal/testutil"
)

func newTestServer(t *testing.T) (*httptest.Server, *gormdb.QuestionRepository) {
	t.Helper()
	repo := testutil.NewQuestionRepository(t)
	pools := memory.NewPoolCache(app.RepositoryPoolLoader(repo), time.Minute)
	service := app.NewQuestionService(repo, pools, memory.NewReportQueue(100), memory.NewHubStore())
	server := httptest.NewServer(NewRouter(service))
	t.Cleanup(server.Close)
	return server, repo
}
