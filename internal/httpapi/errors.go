package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/PabloPavan/userdesk/internal/apperrors"
	"github.com/PabloPavan/userdesk/internal/users"
)

type validationResponse struct {
	Error  string                           `json:"error"`
	Fields map[users.FieldName]users.Reason `json:"fields"`
}

func writeAppError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	if verr, ok := users.IsValidation(err); ok {
		writeValidationError(w, verr)
		return
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		if appErr.Kind == apperrors.KindRateLimited && appErr.RetryAfter > 0 {
			seconds := int(appErr.RetryAfter.Seconds())
			if seconds <= 0 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		http.Error(w, errorMessage(appErr), statusFromKind(appErr.Kind))
		return
	}

	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeValidationError(w http.ResponseWriter, verr *users.ValidationError) {
	writeJSON(w, http.StatusBadRequest, validationResponse{
		Error:  "invalid user",
		Fields: verr.Fields,
	})
}

func statusFromKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindInvalidInput:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindRateLimited:
		return http.StatusTooManyRequests
	case apperrors.KindUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.KindConfirmationRequired:
		return http.StatusPreconditionRequired
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(appErr *apperrors.Error) string {
	if appErr == nil {
		return "internal error"
	}
	if appErr.Message != "" {
		return appErr.Message
	}
	switch appErr.Kind {
	case apperrors.KindNotFound:
		return "not found"
	case apperrors.KindConflict:
		return "conflict"
	case apperrors.KindRateLimited:
		return "too many requests"
	case apperrors.KindInvalidInput:
		return "invalid request"
	case apperrors.KindUnavailable:
		return "service unavailable"
	case apperrors.KindConfirmationRequired:
		return "confirmation required"
	default:
		return "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(v)
}
