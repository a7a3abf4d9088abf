package document

import "errors"

var (
	ErrNotFound          = errors.New("document not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrInvalidData       = errors.New("document data must be a JSON object")
)
