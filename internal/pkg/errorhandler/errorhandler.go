package errorhandler

import (
	"context"
	"net/http"

	"github.com/marketly/marketly-api/internal/pkg/logger"
	"github.com/marketly/marketly-api/internal/pkg/response"
)

// HandleError logs err with the request logger and writes the error envelope.
// 5xx responses never expose err to the client.
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	l := logger.FromContext(ctx)
	event := l.Warn()
	if status >= http.StatusInternalServerError {
		event = l.Error()
	}

	event.
		Str("error_code", code).
		Int("status_code", status).
		Err(err).
		Msg(message)

	response.Error(w, status, code, message)
}

// Internal logs err as the failure of op and writes a 500.
func Internal(ctx context.Context, w http.ResponseWriter, op string, err error) {
	logger.FromContext(ctx).Error().
		Str("operation", op).
		Err(err).
		Msg("Request failed")

	response.InternalError(w)
}

// Validation logs field errors at debug level and writes a 422.
func Validation(ctx context.Context, w http.ResponseWriter, fieldErrors map[string]string) {
	logger.FromContext(ctx).Debug().
		Interface("validation_errors", fieldErrors).
		Msg("Validation error")

	response.ValidationError(w, fieldErrors)
}
