package service

import (
	"errors"
	"fmt"

	"idea-portal/internal/repository"
)

// notFound translates repository misses into ErrNotFound
func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

func ptr[T any](v T) *T {
	return &v
}
