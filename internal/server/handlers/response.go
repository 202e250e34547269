package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/credisync/pkg/api"
)

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg, details string) {
	writeJSON(w, logger, status, api.ErrorResponse{Error: msg, Message: details})
}
