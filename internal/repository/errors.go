package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a row addressed by id or code does not exist
	ErrNotFound = errors.New("record not found")
	// ErrAggregationConflict signals a concurrent write on the same proposal; callers may retry
	ErrAggregationConflict = errors.New("concurrent rating update, retry")
	// ErrStatusChanged is returned when a proposal's status moved between read and write
	ErrStatusChanged = errors.New("proposal status changed concurrently")
	// ErrDuplicateCode is returned when a proposal code is already taken
	ErrDuplicateCode = errors.New("proposal code already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
)

// Postgres error codes the repositories react to
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// isConflict reports whether err is a transient concurrency failure
func isConflict(err error) bool {
	switch pqCode(err) {
	case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == pqUniqueViolation
}
