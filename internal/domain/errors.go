package domain

import "errors"

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrShareNotFound    = errors.New("share not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrCacheMiss        = errors.New("cache miss")
)
