package data

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
)

const (
	queryTimeout     = 3 * time.Second
	procedureTimeout = 30 * time.Second
)

// withTimeout bounds a single database round trip.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

// isUniqueViolation reports whether err is a Postgres unique_violation on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
}
