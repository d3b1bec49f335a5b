package auth

import "errors"

// Static errors for err113 compliance.
var (
	ErrEmptyAccessToken = errors.New("token response did not contain an access token")
	ErrNoTokenPersister = errors.New("no token persister configured")
)
