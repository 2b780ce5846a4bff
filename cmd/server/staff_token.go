package main

import (
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bloodbank/internal/jwttoken"
	"bloodbank/internal/platform/middleware"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/httputil"
)

const staffTokenTTL = 8 * time.Hour

// staffTokenHandler mints staff tokens. When a bcrypt password hash is
// configured the caller must present the matching password; with no hash the
// route is open, which is only acceptable for local development.
func staffTokenHandler(jwtService *jwttoken.JWTService, passwordHash string) http.HandlerFunc {
	type request struct {
		Subject  string `json:"subject"`
		Password string `json:"password"`
	}
	type response struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
		if req.Subject == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "subject is required"))
			return
		}
		if passwordHash != "" {
			if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid staff credentials"))
				return
			}
		}

		token, err := jwtService.GenerateStaffToken(req.Subject, middleware.RoleStaff, staffTokenTTL)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint token"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, response{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   int(staffTokenTTL.Seconds()),
		})
	}
}
