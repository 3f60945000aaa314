package handlers

import (
	"net/http"

	"github.com/nkiryanov/gophersession/internal/handlers/httpauth"
	"github.com/nkiryanov/gophersession/internal/handlers/render"
	"github.com/nkiryanov/gophersession/internal/logger"
	"github.com/nkiryanov/gophersession/internal/metrics"
)

const (
	opSignup  = "signup"
	opLogin   = "login"
	opLogout  = "logout"
	opRefresh = "refresh"

	// Outcome of request rejected before reaching service
	outcomeBadRequest = "bad_request"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Render service error, log it if it is not a known one and count it
func failAuth(w http.ResponseWriter, r *http.Request, op string, err error, m *metrics.Metrics, logger logger.Logger) {
	code := render.ServiceError(w, r, err)
	if code == render.MsgInternalError {
		logger.Error("auth operation failed", "operation", op, "error", err)
	}
	m.AuthEvent(op, code)
}

func handleSignup(userService userService, m *metrics.Metrics, logger logger.Logger) http.Handler {
	type request struct {
		Username       string  `json:"username" validate:"required,max=150,username"`
		Password       string  `json:"password" validate:"required"`
		RepeatPassword string  `json:"repeatPassword" validate:"required,eqfield=Password"`
		Email          *string `json:"email" validate:"omitempty,email,max=254"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			m.AuthEvent(opSignup, outcomeBadRequest)
			return
		}

		_, err = userService.CreateUser(r.Context(), data.Username, data.Email, data.Password)
		if err != nil {
			failAuth(w, r, opSignup, err, m, logger)
			return
		}

		m.AuthEvent(opSignup, metrics.OutcomeOK)
		render.Message(w, r, render.MsgSignedUp)
	})
}

func handleLogin(authService authService, cookie httpauth.RefreshCookie, m *metrics.Metrics, logger logger.Logger) http.Handler {
	type request struct {
		Username       string `json:"username" validate:"required"`
		Password       string `json:"password" validate:"required"`
		RepeatPassword string `json:"repeatPassword" validate:"omitempty,eqfield=Password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			m.AuthEvent(opLogin, outcomeBadRequest)
			return
		}

		pair, err := authService.Login(r.Context(), data.Username, data.Password)
		if err != nil {
			failAuth(w, r, opLogin, err, m, logger)
			return
		}

		m.AuthEvent(opLogin, metrics.OutcomeOK)
		cookie.Set(w, pair.Refresh.Value)
		render.JSON(w, tokenResponse{AccessToken: pair.Access.Value})
	})
}

// Always succeeds: client is logged out even if nothing was revoked
func handleLogout(authService authService, cookie httpauth.RefreshCookie, m *metrics.Metrics, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := authService.Logout(r.Context(), httpauth.BearerToken(r))
		if err != nil {
			logger.Warn("refresh token was not revoked on logout", "error", err)
		}

		m.AuthEvent(opLogout, metrics.OutcomeOK)
		cookie.Clear(w)
		render.Message(w, r, render.MsgLoggedOut)
	})
}

func handleRefresh(authService authService, cookie httpauth.RefreshCookie, m *metrics.Metrics, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pair, err := authService.Refresh(r.Context(), httpauth.BearerToken(r), cookie.Get(r))
		if err != nil {
			failAuth(w, r, opRefresh, err, m, logger)
			return
		}

		m.AuthEvent(opRefresh, metrics.OutcomeOK)
		cookie.Set(w, pair.Refresh.Value)
		render.JSON(w, tokenResponse{AccessToken: pair.Access.Value})
	})
}
