package main

import (
	"encoding/json"
	"net/http"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"bloodbank/internal/jwttoken"
	"bloodbank/pkg/testutil"
)

func TestStaffTokenHandler(t *testing.T) {
	jwtService := jwttoken.NewJWTService("test-signing-key", "bloodbank", "bloodbank")
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	handler := staffTokenHandler(jwtService, string(hash))

	t.Run("valid credentials mint a staff token", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/staff-token", map[string]string{
			"subject":  "nurse-7",
			"password": "correct horse",
		})
		rec := testutil.DoRequest(handler, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.TokenType != "Bearer" {
			t.Errorf("expected Bearer token type, got %q", resp.TokenType)
		}
		claims, err := jwtService.ValidateToken(resp.AccessToken)
		if err != nil {
			t.Fatalf("minted token failed validation: %v", err)
		}
		if claims.Subject != "nurse-7" {
			t.Errorf("expected subject nurse-7, got %q", claims.Subject)
		}
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/staff-token", map[string]string{
			"subject":  "nurse-7",
			"password": "wrong",
		})
		rec := testutil.DoRequest(handler, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("missing subject is rejected", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/staff-token", map[string]string{
			"password": "correct horse",
		})
		rec := testutil.DoRequest(handler, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("no configured hash skips the password check", func(t *testing.T) {
		open := staffTokenHandler(jwtService, "")
		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/staff-token", map[string]string{
			"subject": "dev",
		})
		rec := testutil.DoRequest(open, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}
