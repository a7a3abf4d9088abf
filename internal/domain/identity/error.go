package identity

import "errors"

var (
	ErrUnknownIdentity = errors.New("unknown identity")
	ErrInvalidPassword = errors.New("invalid password")
)
