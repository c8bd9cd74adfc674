package handler

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/accountsvc/internal/api/apierr"
)

// WriteError writes an error response. Causes of server errors are logged
// here and never reach the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if apierr.Status(err) >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	apierr.WriteError(w, err)
}
