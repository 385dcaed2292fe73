package main

import (
	"net/http"

	"github.com/blueberrycongee/supportdesk/internal/metrics"
	"github.com/blueberrycongee/supportdesk/internal/observability"
)

// buildMiddlewareStack wraps the mux so that every request gets an
// X-Request-ID and is counted per route.
func buildMiddlewareStack(next http.Handler) http.Handler {
	if next == nil {
		return nil
	}
	handler := metrics.Middleware(next)
	handler = observability.RequestIDMiddleware(handler)
	return handler
}
