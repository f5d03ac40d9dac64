package common

import "errors"

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrTargetNotFound  = errors.New("target not found")
	ErrInvalidStatus   = errors.New("invalid status transition")
	ErrStaleTransition = errors.New("status changed concurrently")
)
