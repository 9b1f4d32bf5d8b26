package http

import (
	"net/http"

	"medquiz-service/internal/app"
)

// NewRouter wires the REST API, the vote stream and the health check behind the identity and
// request-logging middleware.
func NewRouter(service *app.QuestionService) http.Handler {
	mux := http.NewServeMux()
	NewAPI(service).Register(mux)
	mux.HandleFunc("GET /ws", NewWSHandler(service).ServeWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return LogRequests(WithUser(mux))
}
