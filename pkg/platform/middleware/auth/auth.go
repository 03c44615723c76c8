package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	dErrors "enrollment/pkg/domain-errors"
	"enrollment/pkg/platform/httputil"
	"enrollment/pkg/platform/middleware/metadata"
	"enrollment/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Subject string
	Role    string
	UserID  int64
}

// Outcome labels recorded for each request passing through Authenticate.
const (
	OutcomeNoToken       = "no_token"
	OutcomeAuthenticated = "authenticated"
	OutcomeRejected      = "rejected"
	OutcomePreserved     = "preserved"
)

// Observer receives one outcome per request. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveAuthOutcome(outcome, reason string)
}

// reasoner is implemented by validator errors that classify the failure.
type reasoner interface {
	FailureReason() string
}

const bearerPrefix = "Bearer "

// Authenticate attaches the bearer token's identity to the request context.
// It never rejects a request: a missing or invalid token leaves the request
// anonymous and authorization is left to downstream handlers. An identity
// already present on the context is not replaced.
func Authenticate(validator JWTValidator, logger *slog.Logger, observer Observer) func(http.Handler) http.Handler {
	observe := func(outcome, reason string) {
		if observer != nil {
			observer.ObserveAuthOutcome(outcome, reason)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				observe(OutcomeNoToken, "")
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				reason := "UNKNOWN"
				var rs reasoner
				if errors.As(err, &rs) {
					reason = rs.FailureReason()
				}
				logger.WarnContext(ctx, "invalid bearer token, continuing unauthenticated",
					"reason", reason,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				observe(OutcomeRejected, reason)
				next.ServeHTTP(w, r)
				return
			}

			if requestcontext.HasIdentity(ctx) {
				observe(OutcomePreserved, "")
				next.ServeHTTP(w, r)
				return
			}

			ctx = requestcontext.WithIdentity(ctx, requestcontext.Identity{
				Subject: claims.Subject,
				Role:    claims.Role,
				UserID:  claims.UserID,
			})
			if requestcontext.ClientIP(ctx) == "" {
				ctx = requestcontext.WithClientMetadata(ctx, metadata.ClientIPFromRequest(r), r.UserAgent())
			}
			observe(OutcomeAuthenticated, "")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects anonymous requests with 401 and authenticated requests
// lacking every listed role with 403.
func RequireRole(logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			who := requestcontext.IdentityFrom(ctx)
			if who.IsAnonymous() {
				logger.WarnContext(ctx, "unauthorized access - missing identity",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}
			if !who.HasRole(roles...) {
				logger.WarnContext(ctx, "forbidden - role not allowed",
					"subject", who.Subject,
					"role", who.Role,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "Insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
