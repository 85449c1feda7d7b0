// Package auth authenticates supplier bearer tokens.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
	"movetrack/pkg/platform/httputil"
	"movetrack/pkg/requestcontext"
)

// Validator validates a raw bearer token.
type Validator interface {
	ValidateToken(tokenString string) (*SupplierClaims, error)
}

// SupplierClaims are the claims the middleware needs from a validated token.
type SupplierClaims struct {
	SupplierID id.SupplierID
	Subject    string
	JTI        string
}

// RequireSupplier rejects requests without a valid supplier token and puts
// the supplier and subject into the request context.
func RequireSupplier(validator Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				if dErrors.CodeOf(err) != dErrors.CodeUnauthorized {
					err = dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
				}
				httputil.WriteError(w, err)
				return
			}

			ctx = requestcontext.WithSupplierID(ctx, claims.SupplierID)
			ctx = requestcontext.WithSubject(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
