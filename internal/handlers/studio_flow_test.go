// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"demandflow/internal/ai"
	"demandflow/internal/models"
)

type fakeImageGenerator struct{}

func (fakeImageGenerator) GenerateImage(context.Context, string) (*ai.GeneratedImage, error) {
	return &ai.GeneratedImage{Data: []byte("png"), ContentType: "image/png", Model: "fake-image"}, nil
}

func generateText(t *testing.T, env *testEnv, user *models.User, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := authed(httptest.NewRequest("POST", "/api/studio/generate/text", strings.NewReader(body)), env, t, user)
	env.API.StudioGenerateText(w, r)
	return w
}

func TestStudioGenerateTextStoresInline(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)

	w := generateText(t, env, user, `{"prompt":"Legenda para post de inauguração"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("generate text: got %d, want 201: %s", w.Code, w.Body.String())
	}

	var generation models.Generation
	if err := json.NewDecoder(w.Body).Decode(&generation); err != nil {
		t.Fatalf("decode generation: %v", err)
	}
	t.Cleanup(func() { env.Generations.SoftDelete(generation.ID) })

	if generation.Kind != models.GenerationText {
		t.Errorf("kind: got %q, want text", generation.Kind)
	}
	if generation.Provider != "fake" || generation.Model != "fake-model" {
		t.Errorf("provider/model: got %q/%q", generation.Provider, generation.Model)
	}
	if generation.Text == nil || *generation.Text != "resposta gerada" {
		t.Errorf("stored text: got %v", generation.Text)
	}

	// The generation shows up in the owner's history.
	w = httptest.NewRecorder()
	r := authed(httptest.NewRequest("GET", "/api/studio/history?kind=text", nil), env, t, user)
	env.API.StudioHistory(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("history: got %d, want 200: %s", w.Code, w.Body.String())
	}
	var history []models.Generation
	if err := json.NewDecoder(w.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	found := false
	for _, g := range history {
		if g.ID == generation.ID {
			found = true
		}
	}
	if !found {
		t.Error("generation missing from history")
	}
}

func TestStudioGenerateTextValidation(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)

	w := generateText(t, env, user, `{"prompt":""}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty prompt: got %d, want 422", w.Code)
	}

	w = generateText(t, env, user, `{"prompt":"ok","provider":"missing"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown provider: got %d, want 422", w.Code)
	}
}

func TestStudioGenerateImageRequiresStorage(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)

	// Unconfigured image providers are rejected before anything else.
	w := httptest.NewRecorder()
	r := authed(httptest.NewRequest("POST", "/x", strings.NewReader(
		`{"provider":"freepik","prompt":"um gato"}`)), env, t, user)
	env.API.StudioGenerateImage(w, r)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("no image provider: got %d, want 422", w.Code)
	}

	// With a provider but no object storage the studio degrades to 503.
	env.Registry.RegisterImage("freepik", fakeImageGenerator{})
	w = httptest.NewRecorder()
	r = authed(httptest.NewRequest("POST", "/x", strings.NewReader(
		`{"provider":"freepik","prompt":"um gato"}`)), env, t, user)
	env.API.StudioGenerateImage(w, r)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("no storage: got %d, want 503", w.Code)
	}
}

func TestStudioFavoriteAndDelete(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)
	other := createTestUser(t, env, models.RoleMember)

	w := generateText(t, env, user, `{"prompt":"Roteiro de reels"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("generate: got %d: %s", w.Code, w.Body.String())
	}
	var generation models.Generation
	if err := json.NewDecoder(w.Body).Decode(&generation); err != nil {
		t.Fatalf("decode generation: %v", err)
	}

	// Toggling flips the flag both ways.
	toggle := func(u *models.User) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r := authed(httptest.NewRequest("POST", "/x", nil), env, t, u)
		r = withURLParam(r, "generationID", generation.ID.String())
		env.API.StudioToggleFavorite(w, r)
		return w
	}

	w = toggle(user)
	if w.Code != http.StatusOK {
		t.Fatalf("favorite: got %d, want 200", w.Code)
	}
	var body map[string]bool
	json.NewDecoder(w.Body).Decode(&body)
	if !body["favorite"] {
		t.Error("first toggle: got favorite=false, want true")
	}
	if w := toggle(user); w.Code != http.StatusOK {
		t.Fatalf("unfavorite: got %d, want 200", w.Code)
	}

	// Other owners see someone else's generation as missing.
	if w := toggle(other); w.Code != http.StatusNotFound {
		t.Errorf("foreign toggle: got %d, want 404", w.Code)
	}

	// Soft delete hides it from history.
	w = httptest.NewRecorder()
	r := authed(httptest.NewRequest("DELETE", "/x", nil), env, t, user)
	r = withURLParam(r, "generationID", generation.ID.String())
	env.API.StudioDelete(w, r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d, want 204: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r = authed(httptest.NewRequest("GET", "/api/studio/history", nil), env, t, user)
	env.API.StudioHistory(w, r)
	var history []models.Generation
	json.NewDecoder(w.Body).Decode(&history)
	for _, g := range history {
		if g.ID == generation.ID {
			t.Error("soft-deleted generation still listed")
		}
	}
}
