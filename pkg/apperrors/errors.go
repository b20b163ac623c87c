package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrStaleResolution = errors.New("entry changed since conflict was detected")
	ErrDuplicateEntry  = errors.New("entry already exists")
)
