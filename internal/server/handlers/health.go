package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/credisync/pkg/api"
)

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger *slog.Logger
	db     Pinger
}

// NewHealthHandler создает новый handler для health check
// db may be nil
func NewHealthHandler(logger *slog.Logger, db Pinger) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		db:     db,
	}
}

// Health обрабатывает GET /api/v1/health
// Отвечает 503, если база данных недоступна: клиент считает сервер offline
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status: "ok",
		Time:   time.Now().Unix(),
	}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Error("Database is unavailable", "error", err)
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, h.logger, status, resp)
}
