package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const ProjectIDKey contextKey = "project_id"

// DefaultProjectID is used when the widget does not send a project header.
// Single-tenant installs never need to configure projects at all.
const DefaultProjectID = "default"

// ProjectScope resolves the calling widget's project from the X-Project-ID
// header and injects it into the request context.
func ProjectScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID := r.Header.Get("X-Project-ID")
		if projectID == "" {
			projectID = DefaultProjectID
		}

		ctx := context.WithValue(r.Context(), ProjectIDKey, projectID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetProjectID returns the project ID from context.
func GetProjectID(ctx context.Context) string {
	projectID, _ := ctx.Value(ProjectIDKey).(string)
	return projectID
}
