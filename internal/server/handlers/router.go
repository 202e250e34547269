package handlers

import "net/http"

// NewRouter registers the API routes
// metricsHandler may be nil
func NewRouter(records *RecordsHandler, health *HealthHandler, metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", health.Health)

	mux.HandleFunc("POST /api/v1/records/{entity}", records.HandleCreate)
	mux.HandleFunc("GET /api/v1/records/{entity}/{id}", records.HandleGet)
	mux.HandleFunc("PUT /api/v1/records/{entity}/{id}", records.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/records/{entity}/{id}", records.HandleDelete)

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	return mux
}
