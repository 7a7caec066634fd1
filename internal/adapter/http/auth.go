package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/bnema/transq/internal/infrastructure/logger"
)

const bearerPrefix = "Bearer "

// TokenMiddleware rejects requests that do not carry token. An empty token
// disables the check. allowQuery also accepts ?access_token=, needed by
// EventSource clients that cannot set headers.
func TokenMiddleware(token string, allowQuery bool, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	want := []byte(token)

	return func(w http.ResponseWriter, r *http.Request) {
		got, ok := requestToken(r, allowQuery)
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			logger.Warn.Printf("unauthorized %s %s from %s", r.Method, logger.SanitizeForLog(r.URL.Path), r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Bearer realm="transq"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func requestToken(r *http.Request, allowQuery bool) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if !strings.HasPrefix(h, bearerPrefix) {
			return "", false
		}
		return strings.TrimSpace(h[len(bearerPrefix):]), true
	}
	if allowQuery {
		if t := r.URL.Query().Get("access_token"); t != "" {
			return t, true
		}
	}
	return "", false
}
