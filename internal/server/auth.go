package server

import (
	"net/http"

	"github.com/HeiSir2014/OpenAIRouter/internal/auth"
)

// AuthMiddleware rejects requests that do not carry a valid API key and
// stores the authenticated caller on the request context. Rejections
// render the standard error envelope.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := auth.ExtractAPIKey(r)
			if err != nil {
				writeError(w, r, err)
				return
			}

			caller, err := authenticator.Authenticate(key)
			if err != nil {
				writeError(w, r, err)
				return
			}

			AddLogField(r.Context(), "caller", caller.Name)
			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
		})
	}
}
