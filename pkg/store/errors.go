package store

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist within the caller's
// scope. A record that exists in another organization is deliberately
// indistinguishable from one that does not exist at all.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a write violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// isUniqueViolation reports whether err is a uniqueness-constraint failure.
// Checks the PostgreSQL error class first; falls back to the SQLite message
// used by the in-memory test databases.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
