package service

import "errors"

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFoundOrUnauthorized = errors.New("short URL not found or not authorized")
	ErrNotFoundOrInactive     = errors.New("short URL unavailable")
	ErrGenerationExhausted    = errors.New("failed to allocate a unique short code")
	ErrAccountExists          = errors.New("username or email already registered")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrInvalidToken           = errors.New("invalid or expired token")
	ErrAdminConflict          = errors.New("admin email belongs to an account with a different password")
)
