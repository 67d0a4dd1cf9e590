// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"demandflow/internal/models"
)

func doLogin(t *testing.T, env *testEnv, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(body))
	env.API.Login(w, r)
	return w
}

func TestLoginRefreshLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)

	// Login with valid credentials.
	w := doLogin(t, env, `{"email":"`+user.Email+`","password":"correct horse battery"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: got %d, want 200: %s", w.Code, w.Body.String())
	}

	var tokens loginResponse
	if err := json.NewDecoder(w.Body).Decode(&tokens); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("login response missing tokens")
	}
	if tokens.ExpiresIn <= 0 {
		t.Errorf("expires_in: got %d, want positive", tokens.ExpiresIn)
	}

	// The access token must carry the user's identity.
	claims, err := env.Tokens.ParseAndValidate(tokens.AccessToken)
	if err != nil {
		t.Fatalf("access token invalid: %v", err)
	}
	if claims.Subject != user.ID.String() {
		t.Errorf("subject: got %q, want %q", claims.Subject, user.ID)
	}

	// Refresh rotates the token pair.
	w = httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/auth/refresh",
		strings.NewReader(`{"refresh_token":"`+tokens.RefreshToken+`"}`))
	env.API.RefreshToken(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: got %d, want 200: %s", w.Code, w.Body.String())
	}

	var rotated loginResponse
	if err := json.NewDecoder(w.Body).Decode(&rotated); err != nil {
		t.Fatalf("decode refresh response: %v", err)
	}
	if rotated.RefreshToken == tokens.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The consumed token must not work a second time.
	w = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/api/auth/refresh",
		strings.NewReader(`{"refresh_token":"`+tokens.RefreshToken+`"}`))
	env.API.RefreshToken(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("reused refresh token: got %d, want 401", w.Code)
	}

	// Logout revokes the current refresh token.
	w = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/api/auth/logout",
		strings.NewReader(`{"refresh_token":"`+rotated.RefreshToken+`"}`))
	env.API.Logout(w, r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: got %d, want 204", w.Code)
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/api/auth/refresh",
		strings.NewReader(`{"refresh_token":"`+rotated.RefreshToken+`"}`))
	env.API.RefreshToken(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout: got %d, want 401", w.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)

	w := doLogin(t, env, `{"email":"`+user.Email+`","password":"wrong password"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: got %d, want 401", w.Code)
	}

	w = doLogin(t, env, `{"email":"nobody@test.local","password":"whatever123"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown email: got %d, want 401", w.Code)
	}
}

func TestLoginRequiresTOTPWhenEnabled(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "DemandFlow", AccountName: user.Email})
	if err != nil {
		t.Fatalf("totp generate: %v", err)
	}
	if err := env.Users.SetTOTPSecret(user.ID, key.Secret()); err != nil {
		t.Fatalf("set totp secret: %v", err)
	}
	if err := env.Users.EnableTOTP(user.ID); err != nil {
		t.Fatalf("enable totp: %v", err)
	}

	// Without a code the API signals that TOTP is required.
	w := doLogin(t, env, `{"email":"`+user.Email+`","password":"correct horse battery"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("login without totp: got %d, want 401", w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if required, _ := body["totp_required"].(bool); !required {
		t.Error("expected totp_required=true in response")
	}

	// A wrong code is rejected.
	w = doLogin(t, env, `{"email":"`+user.Email+`","password":"correct horse battery","totp_code":"000000"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong totp code: got %d, want 401", w.Code)
	}

	// A valid code completes the login.
	code, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	w = doLogin(t, env, `{"email":"`+user.Email+`","password":"correct horse battery","totp_code":"`+code+`"}`)
	if w.Code != http.StatusOK {
		t.Errorf("login with totp: got %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestMeReturnsProfile(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleManager)

	w := httptest.NewRecorder()
	r := authed(httptest.NewRequest("GET", "/api/auth/me", nil), env, t, user)
	env.API.Me(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("me: got %d, want 200", w.Code)
	}

	var got models.User
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.ID != user.ID || got.Email != user.Email {
		t.Errorf("profile mismatch: got %s/%s", got.ID, got.Email)
	}
}
