package jwttoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSigningKeyLength is the shortest HS256 secret accepted (256 bits).
const MinSigningKeyLength = 32

var (
	ErrMissingSigningKey = errors.New("jwt signing key is required")
	ErrShortSigningKey   = fmt.Errorf("jwt signing key must be at least %d bytes", MinSigningKeyLength)
	ErrInvalidTTL        = errors.New("token ttl must be positive")
)

// Reason classifies why a token failed verification.
type Reason string

const (
	ReasonMalformed        Reason = "MALFORMED"
	ReasonSignatureInvalid Reason = "SIGNATURE_INVALID"
	ReasonExpired          Reason = "EXPIRED"
)

// Sentinels matching each Reason, usable with errors.Is.
var (
	ErrMalformed        = errors.New("token malformed")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrExpired          = errors.New("token has expired")
)

// VerificationError is returned by Verify for every rejected token.
type VerificationError struct {
	Reason Reason
	Err    error // underlying parser error
}

func (e *VerificationError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// FailureReason exposes the reason to callers that only see an error value.
func (e *VerificationError) FailureReason() string { return string(e.Reason) }

// Is lets errors.Is(err, ErrExpired) and friends match on the reason.
func (e *VerificationError) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return e.Reason == ReasonMalformed
	case ErrSignatureInvalid:
		return e.Reason == ReasonSignatureInvalid
	case ErrExpired:
		return e.Reason == ReasonExpired
	}
	return false
}

// Claims represents the JWT claims of an access token. Subject carries the
// user email.
type Claims struct {
	UserID   int64  `json:"userId"`
	Role     string `json:"role"`
	FullName string `json:"fullName"`
	jwt.RegisteredClaims
}

// JWTService issues and verifies HS256 access tokens with a shared secret.
type JWTService struct {
	signingKey []byte
	clock      func() time.Time
}

// Option configures a JWTService.
type Option func(*JWTService)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(clock func() time.Time) Option {
	return func(s *JWTService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewJWTService validates the signing key. A missing or short key is a
// configuration error, reported here instead of on first use.
func NewJWTService(signingKey string, opts ...Option) (*JWTService, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}
	if len(signingKey) < MinSigningKeyLength {
		return nil, ErrShortSigningKey
	}
	s := &JWTService{
		signingKey: []byte(signingKey),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a claim set for the given user valid for ttl.
func (s *JWTService) Issue(subject string, userID int64, role, fullName string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}
	now := s.clock()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   userID,
		Role:     role,
		FullName: fullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now.Truncate(time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiry(now, ttl)),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signedToken, nil
}

// expiry rounds now+ttl up to the whole second encoded in the token, so a
// token never expires before ttl has elapsed and exp stays after iat.
func expiry(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if t := exp.Truncate(time.Second); !t.Equal(exp) {
		return t.Add(time.Second)
	}
	return exp
}

// Verify checks structure, signature and expiry, in that order. The
// signature is always checked before any claim is looked at.
func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, &VerificationError{Reason: ReasonMalformed, Err: jwt.ErrTokenInvalidClaims}
	}
	if claims.Subject == "" {
		return nil, &VerificationError{Reason: ReasonMalformed, Err: errors.New("missing subject")}
	}

	return claims, nil
}

func classify(err error) *VerificationError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &VerificationError{Reason: ReasonExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return &VerificationError{Reason: ReasonSignatureInvalid, Err: err}
	default:
		return &VerificationError{Reason: ReasonMalformed, Err: err}
	}
}
