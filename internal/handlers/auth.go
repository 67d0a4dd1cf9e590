// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"demandflow/internal/auth"
	"demandflow/internal/middleware"
)

// loginResponse is the token pair returned after successful login or refresh.
type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// Login validates credentials (and the TOTP code when 2FA is enabled)
// and issues an access/refresh token pair.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		TOTPCode string `json:"totp_code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.users.FindByEmail(strings.TrimSpace(req.Email))
	if err != nil {
		slog.Error("login lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || !a.users.CheckPassword(user, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if user.TOTPEnabled {
		if user.TOTPSecret == nil {
			slog.Error("totp enabled but no secret stored", "user", user.ID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if req.TOTPCode == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":         "totp code required",
				"totp_required": true,
			})
			return
		}
		if !totp.Validate(req.TOTPCode, *user.TOTPSecret) {
			writeError(w, http.StatusUnauthorized, "invalid totp code")
			return
		}
	}

	access, err := a.tokens.Generate(user)
	if err != nil {
		slog.Error("access token generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	refreshToken, err := a.refresh.Issue(r.Context(), &auth.Session{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		TwoFADone:   user.TOTPEnabled,
	})
	if err != nil {
		slog.Error("refresh token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    int(auth.AccessTokenTTL.Seconds()),
	})
}

// RefreshToken rotates the refresh token and issues a new access token.
// The presented refresh token is consumed even when it is unknown, so a
// stolen token can be used at most once.
func (a *API) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	newToken, session, err := a.refresh.Rotate(r.Context(), req.RefreshToken)
	if err != nil {
		slog.Error("refresh rotation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if session == nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	// Re-read the user so role or name changes take effect on refresh.
	user, err := a.users.FindByID(session.UserID)
	if err != nil || user == nil {
		writeError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}

	access, err := a.tokens.Generate(user)
	if err != nil {
		slog.Error("access token generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  access,
		RefreshToken: newToken,
		ExpiresIn:    int(auth.AccessTokenTTL.Seconds()),
	})
}

// Logout revokes the refresh token. The access token stays valid until
// it expires, which is why its TTL is short.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.refresh.Revoke(r.Context(), req.RefreshToken); err != nil {
		slog.Error("refresh revoke failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user's profile.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := a.users.FindByID(userID)
	if err != nil {
		slog.Error("me lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// TwoFASetup generates a new TOTP secret for the authenticated user and
// returns the secret plus a QR code PNG (base64) for authenticator apps.
func (a *API) TwoFASetup(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromCtx(r.Context())
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := a.users.FindByID(userID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "DemandFlow",
		AccountName: user.Email,
	})
	if err != nil {
		slog.Error("totp generate failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := a.users.SetTOTPSecret(userID, key.Secret()); err != nil {
		slog.Error("save totp secret failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	qrPNG, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		slog.Error("qr code generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("2fa setup started", "user", claims.Subject)
	writeJSON(w, http.StatusOK, map[string]string{
		"secret":  key.Secret(),
		"qr_png":  base64.StdEncoding.EncodeToString(qrPNG),
		"otp_url": key.URL(),
	})
}

// TwoFAVerify validates the first TOTP code and enables 2FA for the
// authenticated user.
func (a *API) TwoFAVerify(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.users.FindByID(userID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user.TOTPSecret == nil {
		writeError(w, http.StatusConflict, "2fa setup not started")
		return
	}
	if !totp.Validate(req.Code, *user.TOTPSecret) {
		writeError(w, http.StatusUnauthorized, "invalid totp code")
		return
	}

	if !user.TOTPEnabled {
		if err := a.users.EnableTOTP(userID); err != nil {
			slog.Error("enable totp failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"totp_enabled": true})
}
