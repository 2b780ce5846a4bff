package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/httputil"
	"bloodbank/pkg/requestcontext"
)

// StaffClaims represents the claims we expect from the token validator.
type StaffClaims struct {
	Subject string
	Role    string
}

// TokenValidator defines the interface for validating staff tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*StaffClaims, error)
}

// RoleStaff is the role claim required on mutating routes.
const RoleStaff = "STAFF"

// RequireStaff guards mutating routes: a valid bearer token with the STAFF
// role is required. The token subject becomes the audit actor.
func RequireStaff(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestID,
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}
			if claims.Role != RoleStaff {
				logger.WarnContext(ctx, "forbidden access - non-staff token",
					"request_id", requestID,
					"subject", claims.Subject,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "staff role required"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, claims.Subject)))
		})
	}
}
