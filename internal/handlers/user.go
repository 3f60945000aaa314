package handlers

import (
	"net/http"

	"github.com/nkiryanov/gophersession/internal/handlers/render"
	"github.com/nkiryanov/gophersession/internal/handlers/userctx"
)

func handleUserSelf() http.Handler {
	type response struct {
		ID       int64   `json:"id"`
		Username string  `json:"username"`
		Email    *string `json:"email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())
		render.JSON(w, response{ID: user.ID, Username: user.Username, Email: user.Email})
	})
}
