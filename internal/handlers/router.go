package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/gophersession/internal/handlers/httpauth"
	"github.com/nkiryanov/gophersession/internal/handlers/middleware"
	"github.com/nkiryanov/gophersession/internal/logger"
	"github.com/nkiryanov/gophersession/internal/metrics"
	"github.com/nkiryanov/gophersession/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// metricsHandler serves GET /metrics; route is not registered if nil
func NewRouter(
	authService authService,
	userService userService,
	cookie httpauth.RefreshCookie,
	m *metrics.Metrics,
	metricsHandler http.Handler,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)

	mux := http.NewServeMux()

	mux.Handle("POST /auth/signup", handleSignup(userService, m, logger))
	mux.Handle("POST /auth/login", handleLogin(authService, cookie, m, logger))
	mux.Handle("POST /auth/logout", handleLogout(authService, cookie, m, logger))
	mux.Handle("POST /auth/refresh", handleRefresh(authService, cookie, m, logger))

	mux.Handle("GET /user/self", withAuth(handleUserSelf()))

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	handler := chain(mux,
		middleware.LoggerMiddleware(logger),
		middleware.MetricsMiddleware(m),
	)

	return handler
}

type authService interface {
	// Login user with username and password
	// Has to return apperrors.ErrInvalidCredentials if user not found or password is wrong
	Login(ctx context.Context, username string, password string) (models.TokenPair, error)

	// Revoke refresh token of access token owner
	// Error is only for logging, client always gets success
	Logout(ctx context.Context, access string) error

	// Exchange tokens for a new pair
	// If refresh token expired: has to return apperrors.ErrRefreshExpired
	// If refresh token used or unknown: has to return apperrors.ErrRefreshReplayed
	Refresh(ctx context.Context, access string, refresh string) (models.TokenPair, error)

	// Resolve access token to user
	Authenticate(ctx context.Context, access string) (models.User, error)
}

type userService interface {
	// Has to return apperrors.ErrUserAlreadyExists if username is taken
	CreateUser(ctx context.Context, username string, email *string, password string) (models.User, error)
}
