package middlewarectx

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/http/response"
)

// BasicAuth проверяет учётные данные HTTP Basic. С пустым user
// middleware пропускает все запросы.
func BasicAuth(user, password string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if user == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
				subtle.ConstantTimeCompare([]byte(p), []byte(password)) != 1 {
				log.Warn("webhook basic auth failed", slog.String("remote_addr", r.RemoteAddr))
				w.Header().Set("WWW-Authenticate", `Basic realm="payflow"`)
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(apperr.CodeUnauthorized, "unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
