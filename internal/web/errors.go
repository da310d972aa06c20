package web

// errors.go turns errors into JSON responses.
//
// The technical error is logged with the request id. The client gets the
// mapped user message and support code from core.MapError. For server-side
// failures the error field carries a fixed fallback text instead, so store
// details never reach the client.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/logging"
)

const msgInternal = "Internal server error"

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch {
	case core.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyUploads), errors.Is(err, core.ErrUploadsDraining):
		return http.StatusServiceUnavailable
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail responds with the status statusFor picks. fallback replaces the error
// text of 5xx responses; empty means msgInternal.
func fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	respondError(w, r, err, status, fallback)
}

func respondError(w http.ResponseWriter, r *http.Request, err error, status int, fallback ...string) {
	userErr := core.NewUserError(err)
	msg := userErr.User

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", userErr.Unwrap().Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", attrs...)
	} else {
		log.Warn("request rejected", attrs...)
	}

	text := msg.Message
	if status >= http.StatusInternalServerError {
		text = msgInternal
		if len(fallback) > 0 && fallback[0] != "" {
			text = fallback[0]
		}
	}

	writeJSON(w, status, ErrorResponse{
		Error:   text,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
