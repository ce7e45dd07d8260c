package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid console config")
	// ErrLoadConfig wraps failures reading .env, YAML or environment sources.
	ErrLoadConfig = errors.New("loading console config")
)
