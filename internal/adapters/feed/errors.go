package feed

import "errors"

// Sentinel kinds for feed errors.
var (
	ErrTransport        = errors.New("feed transport failed")
	ErrMalformedPayload = errors.New("malformed feed payload")
)
