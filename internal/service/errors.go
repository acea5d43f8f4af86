package service

import "errors"

var (
	// ErrNotFound is returned when the addressed proposal, template or user does not exist
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the principal may not act on the resource
	ErrForbidden = errors.New("forbidden")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user account is inactive")

	// ErrInvalidUser is returned for account data that cannot be provisioned
	ErrInvalidUser = errors.New("invalid user")
	ErrUserExists  = errors.New("user already exists")
)
