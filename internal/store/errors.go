package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// ErrDuplicateTest is returned when a test-record insert violates a
// uniqueness constraint, as opposed to the upload row itself.
var ErrDuplicateTest = errors.New("duplicate test record")

// uniqueViolation is the postgres error code for unique-constraint failures.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
