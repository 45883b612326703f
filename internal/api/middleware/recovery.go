package middleware

import (
	"log/slog"
	"net/http"

	"github.com/rfglabs/deathroll/internal/api/apierr"
	"github.com/rfglabs/deathroll/internal/middleware"
)

// Recovery creates panic recovery middleware that answers with the
// API's JSON error shape instead of a plain 500
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})
}
