package signing

import "errors"

// Operation boundary errors. Handlers map these to HTTP status codes with
// errors.Is; nothing here should ever crash the process.
var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("actor is not the requested signer")
	ErrConflict      = errors.New("request already processed")
	ErrValidation    = errors.New("invalid request")
	ErrMissingAsset  = errors.New("signer has no stored signature image")
	ErrAlreadyExists = errors.New("record already exists")
)
