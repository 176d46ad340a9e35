package service

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrRateLimited    = errors.New("too many attempts")
	ErrGoogleDisabled = errors.New("google sign-in is not configured")
)
