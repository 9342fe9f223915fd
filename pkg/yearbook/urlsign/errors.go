package urlsign

import "errors"

var (
	// ErrNoSecretKey indicates the signer has no secret configured
	ErrNoSecretKey = errors.New("no secret key configured")

	// ErrEmptyKey indicates an empty object key was passed to Sign
	ErrEmptyKey = errors.New("object key is empty")

	// ErrMissingSignature indicates the URL carries no signature parameter
	ErrMissingSignature = errors.New("missing signature")

	// ErrMissingExpiration indicates the URL carries no expires parameter
	ErrMissingExpiration = errors.New("missing expiration")

	// ErrInvalidExpiration indicates the expires parameter is malformed
	ErrInvalidExpiration = errors.New("invalid expiration")

	// ErrExpired indicates the URL's expiry has passed
	ErrExpired = errors.New("url expired")

	// ErrInvalidSignature indicates the signature does not match
	ErrInvalidSignature = errors.New("invalid signature")
)
