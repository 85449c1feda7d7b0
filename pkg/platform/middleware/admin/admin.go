// Package admin guards operator endpoints with a shared token whose bcrypt
// hash is configured.
package admin

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	dErrors "movetrack/pkg/domain-errors"
	"movetrack/pkg/platform/httputil"
	"movetrack/pkg/requestcontext"
)

const TokenHeader = "X-Ops-Token"

// HashToken produces the value to configure as the ops token hash.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// RequireOpsToken rejects requests whose X-Ops-Token does not match
// tokenHash. An empty hash disables the endpoints entirely.
func RequireOpsToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get(TokenHeader)
			if tokenHash == "" || token == "" ||
				bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)) != nil {
				logger.WarnContext(ctx, "ops token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", requestcontext.ClientIP(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "ops token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
