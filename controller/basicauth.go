package controller

import (
	"crypto/subtle"
	"net/http"

	log "github.com/sirupsen/logrus"
)

type Authentication struct {
	Username string
	Password string
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func BasicAuth(auth *Authentication) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || !equal(username, auth.Username) || !equal(password, auth.Password) {
				log.Errorf("Unauthorized user %q from %s", username, r.RemoteAddr)
				WriteError(w, ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
