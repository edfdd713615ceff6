package config

import "errors"

var (
	ErrReadConfig    = errors.New("failed to read config")
	ErrParseConfig   = errors.New("failed to parse config")
	ErrInvalidConfig = errors.New("invalid config")
	ErrEnvOverride   = errors.New("invalid environment override")
)
