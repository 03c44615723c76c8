package testutil

import (
	"net/http"

	"enrollment/pkg/requestcontext"
)

// WithIdentity attaches an authenticated identity to the request, the way
// the authentication gate does for a valid bearer token.
func WithIdentity(req *http.Request, subject, role string, userID int64) *http.Request {
	ctx := requestcontext.WithIdentity(req.Context(), requestcontext.Identity{
		Subject: subject,
		Role:    role,
		UserID:  userID,
	})
	return req.WithContext(ctx)
}

// WithClient adds client metadata to the request context.
func WithClient(req *http.Request, clientIP, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent))
}
