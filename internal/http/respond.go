package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/qbeka/matchmaking-nat/internal/repository"
	"github.com/qbeka/matchmaking-nat/internal/service/match"
	"github.com/qbeka/matchmaking-nat/internal/validate"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps match service errors onto status codes.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	var verr *validate.Error
	var serr *match.StageError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      verr.Error(),
			"violations": verr.Violations,
		})
	case errors.As(err, &serr):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, match.ErrUnknownStage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		r.notFound(w)
	default:
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// stageOutcome names the class of err the way writeServiceError maps it.
func stageOutcome(err error) string {
	var verr *validate.Error
	var serr *match.StageError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.As(err, &serr):
		return "conflict"
	case errors.Is(err, match.ErrUnknownStage):
		return "unknown_stage"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
