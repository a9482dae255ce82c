package client

import "errors"

var (
	// ErrUnauthorized means the credential is missing, invalid or expired.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNetwork covers transport failures and timeouts.
	ErrNetwork = errors.New("network error")
	// ErrServer means the server answered with a non-success status.
	ErrServer = errors.New("server error")
	// ErrValidation is a request rejected locally or by the server as invalid.
	ErrValidation = errors.New("validation error")
	// ErrNotConnected is returned when the live channel is not Connected.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyExists is returned when registering a taken username.
	ErrAlreadyExists = errors.New("already exists")
)
