package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/gophersession/internal/handlers/httpauth"
	"github.com/nkiryanov/gophersession/internal/handlers/render"
	"github.com/nkiryanov/gophersession/internal/handlers/userctx"
	"github.com/nkiryanov/gophersession/internal/models"
)

type authenticator interface {
	// Resolve access token to user
	Authenticate(ctx context.Context, access string) (models.User, error)
}

// Let request through only with valid access token
// Authenticated user is available with userctx.FromContext
func AuthMiddleware(as authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.Authenticate(r.Context(), httpauth.BearerToken(r))
			if err != nil {
				render.ServiceError(w, r, err)
				return
			}
			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
