package tenant

import "errors"

var (
	ErrNotFound      = errors.New("tenant not found")
	ErrSlugTaken     = errors.New("tenant slug already registered")
	ErrNoCredentials = errors.New("tenant has no provider credentials configured")
)
