package audit

import (
	"context"
	"time"
)

// Appender persists audit records. Implementations must be safe for
// concurrent use: several subscribers write at the same time.
type Appender interface {
	Append(ctx context.Context, record Record) (Record, error)
}

// Reader exposes the lookups operators run against the audit trail.
// Results come back in insertion order.
type Reader interface {
	ListByEventType(ctx context.Context, eventType EventType) ([]Record, error)
	ListByUserID(ctx context.Context, userID int64) ([]Record, error)
	ListByUserEmail(ctx context.Context, email string) ([]Record, error)
	// ListByTimeRange matches records with start <= timestamp <= end.
	ListByTimeRange(ctx context.Context, start, end time.Time) ([]Record, error)
	ListAll(ctx context.Context) ([]Record, error)
}

// Store is append-only: there is no update or delete path.
type Store interface {
	Appender
	Reader
}
