package domain

import "errors"

var (
	ErrNoProfiles        = errors.New("no character profiles configured")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrSecretNotFound    = errors.New("secret not found")
	ErrNotConnected      = errors.New("not connected")
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrOracleMalformed   = errors.New("malformed oracle response")
)
