package app

import "errors"

var (
	// ErrValidation wraps every input problem; the message after the colon is user-facing.
	ErrValidation       = errors.New("validation failed")
	ErrReadingNotFound  = errors.New("reading not found")
	ErrForbidden        = errors.New("forbidden")
	ErrNotPaid          = errors.New("reading not paid")
	ErrGenerationFailed = errors.New("report generation failed")
	ErrRateLimited      = errors.New("rate limited")
	ErrJobNotFound      = errors.New("job not found")
	ErrTableNotFound    = errors.New("catalog table not found")
	ErrUnavailable      = errors.New("feature not configured")
)
