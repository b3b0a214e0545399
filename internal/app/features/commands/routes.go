// internal/app/features/commands/routes.go
package commands

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Routes returns the command subrouter; it is mounted under /commands.
// When webhookToken is non-empty every request must carry
// "Authorization: Bearer <token>".
func Routes(h *Handler, webhookToken string) chi.Router {
	r := chi.NewRouter()
	if webhookToken != "" {
		r.Use(requireBearer(webhookToken))
	}
	r.Post("/register", h.Register)
	r.Post("/bind", h.Bind)
	r.Post("/status", h.Status)
	r.Post("/checkin", h.CheckIn)
	r.Post("/inactive", h.Inactive)
	r.Post("/post", h.Post)
	return r
}

func requireBearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
