package api

import (
	// Go Internal Packages
	"encoding/json"
	"net/http"

	// Local Packages
	errors "bbps-hub/errors"
	models "bbps-hub/models"

	// External Packages
	"go.uber.org/zap"
)

type Response struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	Data       any                 `json:"data,omitempty"`
	Pagination *models.Pagination  `json:"pagination,omitempty"`
	Errors     map[string][]string `json:"errors,omitempty"`
	Retryable  bool                `json:"retryable,omitempty"`
}

// retryer is implemented by upstream errors that know whether resending the
// same request can succeed.
type retryer interface {
	Retryable() bool
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

// StatusFor maps an error kind onto the HTTP status returned to callers.
func StatusFor(kind errors.Kind) int {
	switch kind {
	case errors.NotFound:
		return http.StatusNotFound
	case errors.Invalid, errors.AlreadyPaid, errors.AmountMismatch, errors.Expired:
		return http.StatusBadRequest
	case errors.Unauthorized:
		return http.StatusUnauthorized
	case errors.Forbidden:
		return http.StatusForbidden
	case errors.Conflict:
		return http.StatusConflict
	case errors.Upstream:
		return http.StatusBadGateway
	case errors.Unavailable:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := StatusFor(errors.KindOf(err))
	body := Response{Success: false, Message: err.Error()}

	var ve *errors.ValidationErrors
	if errors.As(err, &ve) {
		body.Errors = ve.Fields()
	}
	var re retryer
	if errors.As(err, &re) {
		body.Retryable = re.Retryable()
	}

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", RequestID(r.Context())),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
		if status == http.StatusInternalServerError {
			body.Message = "internal server error"
		}
	} else {
		logger.Warn("request rejected", fields...)
	}
	writeJSON(w, status, body)
}
