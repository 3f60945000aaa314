package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Returned identically for unknown username and wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrMissingCredential = errors.New("credential is missing")
	ErrTokenMalformed    = errors.New("token is malformed")
	ErrTokenExpired      = errors.New("token is expired")

	// Refresh token context: the client has to log in again, retry will not help
	ErrRefreshExpired  = errors.New("refresh token is expired")
	ErrRefreshReplayed = errors.New("refresh token is used or unknown")

	// Token subject does not resolve to a user anymore
	ErrUnknownSubject = errors.New("unknown token subject")
)
