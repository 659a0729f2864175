package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"mathcanvas/api/internal/calc"
	"mathcanvas/api/internal/llm"
)

type Handle struct {
	engs    *llm.Engines
	journal calc.Journal
	log     *zap.Logger
	maxBody int64

	// Ping reports journal database health for /healthz. Nil when no
	// database is configured.
	Ping func(ctx context.Context) error
}

func New(engs *llm.Engines, journal calc.Journal, log *zap.Logger, maxBody int64) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &Handle{
		engs:    engs,
		journal: journal,
		log:     log,
		maxBody: maxBody,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps pipeline errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, calc.ErrMissingInput):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Missing image or dict_of_vars"})
	case errors.Is(err, calc.ErrInvalidImage):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid image", Details: err.Error()})
	case errors.Is(err, llm.ErrUnknownEngine):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Unknown llm_name", Details: err.Error()})
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body too large", Details: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Error processing the request", Details: err.Error()})
	}
}
