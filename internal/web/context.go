package web

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/bulkindex/internal/logging"
)

// newRunContext assigns a run ID to a request. A client supplied X-Run-ID
// is kept when it parses as a UUID.
func newRunContext(r *http.Request) (context.Context, string) {
	runID := uuid.NewString()
	if id := r.Header.Get("X-Run-ID"); id != "" {
		if parsed, err := uuid.Parse(id); err == nil {
			runID = parsed.String()
		}
	}
	return logging.WithRun(r.Context(), runID), runID
}
