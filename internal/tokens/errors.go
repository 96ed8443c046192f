package tokens

import "errors"

// Validation failures, one per check. Validate runs its checks in a fixed
// order and returns the first failure, so the rejection reports a precise
// cause.
var (
	ErrMissing       = errors.New("tokens: missing token")
	ErrMalformed     = errors.New("tokens: malformed token")
	ErrBadSignature  = errors.New("tokens: invalid signature")
	ErrBadIssuer     = errors.New("tokens: invalid 'iss' claim")
	ErrExpired       = errors.New("tokens: expired token")
	ErrBadIssuedAt   = errors.New("tokens: missing or invalid 'iat' claim")
	ErrReplayedNonce = errors.New("tokens: missing, duplicated or invalid 'jti' claim")
)
