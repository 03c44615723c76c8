// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// The authentication middleware attaches an Identity to the request context;
// handlers and the audit publisher read it back. Nothing here is global: every
// request carries its own values and they disappear with the request.
//
// Usage in services (read values):
//
//	who := requestcontext.IdentityFrom(ctx)
//	if who.IsAnonymous() { ... }
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in middleware and tests (set values):
//
//	ctx = requestcontext.WithIdentity(ctx, requestcontext.Identity{Subject: "john@test.com", Role: "USER", UserID: 1})
//	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.1", "curl/8.0")
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	identityKey    struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	deviceKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyIdentity    = identityKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyDevice      = deviceKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Identity
// -----------------------------------------------------------------------------

// Identity is the authenticated subject of a request. The zero value is the
// anonymous identity.
type Identity struct {
	Subject string // user email
	Role    string
	UserID  int64
}

// Anonymous is the identity of requests that presented no valid token.
var Anonymous = Identity{}

// IsAnonymous reports whether no subject has been authenticated.
func (i Identity) IsAnonymous() bool {
	return i.Subject == ""
}

// HasRole reports whether the identity carries one of the given roles.
// Anonymous identities never match.
func (i Identity) HasRole(roles ...string) bool {
	if i.IsAnonymous() {
		return false
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// IdentityFrom returns the identity attached to the context, or Anonymous.
func IdentityFrom(ctx context.Context) Identity {
	if id, ok := ctx.Value(ContextKeyIdentity).(Identity); ok {
		return id
	}
	return Anonymous
}

// HasIdentity reports whether an authenticated identity was already attached.
func HasIdentity(ctx context.Context) bool {
	id, ok := ctx.Value(ContextKeyIdentity).(Identity)
	return ok && !id.IsAnonymous()
}

// WithIdentity injects an identity into the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, id)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent, device summary)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// Device retrieves the parsed browser/OS summary from the context.
func Device(ctx context.Context) string {
	if d, ok := ctx.Value(ContextKeyDevice).(string); ok {
		return d
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// WithDevice injects a device summary into a context.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, ContextKeyDevice, device)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
