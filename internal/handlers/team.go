// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"demandflow/internal/models"
)

// minPasswordLen is the shortest password accepted for new accounts.
const minPasswordLen = 10

func validRole(role string) bool {
	switch models.Role(role) {
	case models.RoleAdmin, models.RoleManager, models.RoleMember:
		return true
	}
	return false
}

// TeamList returns all team members. Password hashes and TOTP secrets
// never serialize.
func (a *API) TeamList(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.List()
	if err != nil {
		slog.Error("list users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// TeamCreate creates a team member account. Admin only.
func (a *API) TeamCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusUnprocessableEntity, "a valid email is required")
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, http.StatusUnprocessableEntity, "password must be at least 10 characters")
		return
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		writeError(w, http.StatusUnprocessableEntity, "display_name is required")
		return
	}
	if !validRole(req.Role) {
		writeError(w, http.StatusUnprocessableEntity, "role must be admin, manager or member")
		return
	}

	existing, err := a.users.FindByEmail(req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	user, err := a.users.Create(req.Email, req.Password, req.DisplayName, models.Role(req.Role))
	if err != nil {
		slog.Error("create user failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// TeamUpdate changes a member's display name and role. Admin only.
func (a *API) TeamUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req struct {
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		writeError(w, http.StatusUnprocessableEntity, "display_name is required")
		return
	}
	if !validRole(req.Role) {
		writeError(w, http.StatusUnprocessableEntity, "role must be admin, manager or member")
		return
	}

	if err := a.users.Update(id, req.DisplayName, models.Role(req.Role)); err != nil {
		storeError(w, err, "user not found")
		return
	}

	user, err := a.users.FindByID(id)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// TeamResetTwoFA clears a member's TOTP enrollment so they can re-enroll
// after losing their device. Admin only.
func (a *API) TeamResetTwoFA(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := a.users.ResetTOTP(id); err != nil {
		storeError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"totp_enabled": false})
}

// TeamDelete removes a team member account. Admin only; admins cannot
// delete themselves.
func (a *API) TeamDelete(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	selfID, err := currentUserID(r)
	if err == nil && selfID == id {
		writeError(w, http.StatusConflict, "cannot delete your own account")
		return
	}

	if err := a.users.Delete(id); err != nil {
		storeError(w, err, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
