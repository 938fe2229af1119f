package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/adamgordonbell/c3-azure-demo/pkg/config"
)

// APIKeyAuth enforces a single static API key when auth is enabled. The key
// is accepted as "Authorization: Bearer <key>", an "x-api-key" header, or a
// "code" query parameter.
func APIKeyAuth(cfgStore *config.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cfg := cfgStore.Get()
			if cfg == nil || !cfg.Auth.Enabled || cfg.Auth.APIKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := presentedKey(r)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(cfg.Auth.APIKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid API key"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func presentedKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	if key := r.Header.Get("x-api-key"); key != "" {
		return key
	}
	return r.URL.Query().Get("code")
}
