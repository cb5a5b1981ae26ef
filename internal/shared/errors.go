package shared

import "errors"

var (

	// common errors
	ErrorNotFound = errors.New("not found")

	// auth-specific errors
	ErrorInvalidToken   = errors.New("invalid token")
	ErrorMalformedToken = errors.New("malformed token")
	ErrorDenied         = errors.New("access denied")

	// persistence-specific errors
	ErrorInvalidPath     = errors.New("path escapes trusted root")
	ErrorInvalidRecord   = errors.New("invalid record")
	ErrorEmptyIdentifier = errors.New("empty identifier")

	// protocol-specific errors
	ErrorInvalidMethod = errors.New("invalid method")
)
