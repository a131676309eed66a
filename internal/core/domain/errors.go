package domain

import "errors"

// Validation
var (
	ErrMissingFields    = errors.New("required fields are missing")
	ErrReceiverNotFound = errors.New("receiver does not exist")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
)

// Authentication
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Authorization
var (
	ErrInvalidPasskey = errors.New("invalid passkey")
	ErrForbidden      = errors.New("forbidden")
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username already exists")
)
