package auth

import "errors"

// Token verification failures. Each is a distinct sentinel so callers can
// tell redirect-to-login conditions apart from hard denials.
var (
	ErrInvalidToken      = errors.New("auth: invalid token")
	ErrInvalidSignature  = errors.New("auth: invalid token signature")
	ErrExpired           = errors.New("auth: token expired")
	ErrWrongIssuer       = errors.New("auth: unexpected token issuer")
	ErrWrongAudience     = errors.New("auth: unexpected token audience")
	ErrRevoked           = errors.New("auth: token revoked")
	ErrPrincipalNotFound = errors.New("auth: principal not found")
)

// Authorization and store failures.
var (
	ErrNodeNotFound = errors.New("auth: branch not found")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrUnauthorized = errors.New("auth: unauthorized")
)
