package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sarthak03dot/Chat-App/internal/domain"
)

type errorResponse struct {
	Error string      `json:"error"`
	Kind  domain.Kind `json:"kind"`
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthorization:
		if errors.Is(err, domain.ErrUnauthorized) {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindBlocked:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto a status code. Store failures are logged and
// reported without detail.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("http_request_failed", "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: domain.KindOf(err)})
}

// queryLimit parses the optional ?limit= parameter. Zero means the service
// default.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Invalid("limit must be a non-negative integer")
	}
	return n, nil
}
