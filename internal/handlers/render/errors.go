package render

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/gophersession/internal/apperrors"
)

// Known service errors and how client sees them
// 403 tells client to refresh the session, 401 to log in again
// Anything not listed is internal error
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{apperrors.ErrInvalidCredentials, http.StatusUnauthorized, MsgInvalidCredentials},
	{apperrors.ErrMissingCredential, http.StatusBadRequest, MsgMissingCredential},
	{apperrors.ErrTokenMalformed, http.StatusBadRequest, MsgMalformedCredential},
	{apperrors.ErrTokenExpired, http.StatusForbidden, MsgTokenExpired},
	{apperrors.ErrRefreshExpired, http.StatusUnauthorized, MsgRefreshExpired},
	{apperrors.ErrRefreshReplayed, http.StatusUnauthorized, MsgRefreshReplayed},
	{apperrors.ErrUnknownSubject, http.StatusUnauthorized, MsgUnknownSubject},
	{apperrors.ErrUserAlreadyExists, http.StatusConflict, MsgUserExists},
}

// Status and code for service error
func ErrorStatus(err error) (int, string) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			return se.status, se.code
		}
	}
	return http.StatusInternalServerError, MsgInternalError
}

// Render service error and return the code rendered
// Internal error details are never sent to client
func ServiceError(w http.ResponseWriter, r *http.Request, err error) string {
	status, code := ErrorStatus(err)
	Error(w, r, code, status)
	return code
}
