// Package audit serves read access to the audit trail.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	dErrors "enrollment/pkg/domain-errors"
	audit "enrollment/pkg/platform/audit"
	"enrollment/pkg/platform/sentinel"
)

// Service validates query parameters and reads from the audit store.
type Service struct {
	store audit.Reader
}

func NewService(store audit.Reader) *Service {
	return &Service{store: store}
}

func (s *Service) ListAll(ctx context.Context) ([]audit.Record, error) {
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, storeError(err, "failed to list audit logs")
	}
	return records, nil
}

// ListByEventType rejects tags outside the event type enumeration.
func (s *Service) ListByEventType(ctx context.Context, eventType string) ([]audit.Record, error) {
	et, err := audit.ParseEventType(strings.ToUpper(eventType))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown event type: "+eventType)
	}
	records, err := s.store.ListByEventType(ctx, et)
	if err != nil {
		return nil, storeError(err, "failed to list audit logs by event type")
	}
	return records, nil
}

func (s *Service) ListByUserID(ctx context.Context, userID int64) ([]audit.Record, error) {
	if userID <= 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user id must be positive")
	}
	records, err := s.store.ListByUserID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "failed to list audit logs by user")
	}
	return records, nil
}

func (s *Service) ListByUserEmail(ctx context.Context, email string) ([]audit.Record, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "email is required")
	}
	records, err := s.store.ListByUserEmail(ctx, email)
	if err != nil {
		return nil, storeError(err, "failed to list audit logs by email")
	}
	return records, nil
}

// ListByTimeRange returns records with start <= timestamp <= end.
func (s *Service) ListByTimeRange(ctx context.Context, start, end time.Time) ([]audit.Record, error) {
	if end.Before(start) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "end must not be before start")
	}
	records, err := s.store.ListByTimeRange(ctx, start, end)
	if err != nil {
		return nil, storeError(err, "failed to list audit logs by date range")
	}
	return records, nil
}

// storeError maps a store failure to a domain error. An unreachable database
// surfaces as 503 so clients can retry.
func storeError(err error, msg string) error {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "audit store unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
