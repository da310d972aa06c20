package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/web/middleware"
)

// withRequestMetadata adds the client IP and User-Agent to the context for
// the audit log. The IP has already been resolved by TrustedRealIP.
func withRequestMetadata(r *http.Request) context.Context {
	return core.ContextWithClient(r.Context(), middleware.ClientIP(r), r.UserAgent())
}
