// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"demandflow/internal/ai"
	"demandflow/internal/models"
	"demandflow/internal/store"
)

// presignExpiry is how long a presigned URL for a private generation is
// valid.
const presignExpiry = 1 * time.Hour

// extensionFor maps generation content types to object key extensions.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "audio/mpeg":
		return "mp3"
	default:
		return "jpg"
	}
}

// StudioProviders lists the configured generation capabilities so the
// studio UI can populate its provider pickers.
func (a *API) StudioProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"chat":   a.registry.ChatProviders(),
		"image":  a.registry.ImageProviders(),
		"speech": a.registry.SpeechProviders(),
	})
}

// StudioGenerateImage moderates the prompt, generates an image with the
// chosen provider, stores it in the private bucket and records it in the
// library.
func (a *API) StudioGenerateImage(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Provider string `json:"provider"`
		Prompt   string `json:"prompt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validatePrompt(req.Prompt); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}
	if !a.registry.SupportsImageGeneration(req.Provider) {
		writeError(w, http.StatusUnprocessableEntity, "image provider not configured")
		return
	}
	if a.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage not configured")
		return
	}

	if !a.moderatePrompt(w, r, req.Prompt) {
		return
	}

	img, err := a.registry.GenerateImage(r.Context(), req.Provider, req.Prompt)
	if err != nil {
		slog.Error("image generation failed", "provider", req.Provider, "error", err)
		writeError(w, http.StatusBadGateway, "image generation failed")
		return
	}

	key := fmt.Sprintf("studio/%s/%s.%s", userID, uuid.New(), extensionFor(img.ContentType))
	bucket := a.storage.PrivateBucket()
	if err := a.storage.Upload(r.Context(), bucket, key, img.ContentType, bytes.NewReader(img.Data), int64(len(img.Data))); err != nil {
		slog.Error("store generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	generation := &models.Generation{
		OwnerID:     userID,
		Kind:        models.GenerationImage,
		Provider:    req.Provider,
		Model:       img.Model,
		Prompt:      req.Prompt,
		Bucket:      &bucket,
		S3Key:       &key,
		ContentType: &img.ContentType,
		SizeBytes:   int64(len(img.Data)),
	}
	created, err := a.generations.Create(generation)
	if err != nil {
		slog.Error("record generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.attachGenerationURL(r, created)
	writeJSON(w, http.StatusCreated, created)
}

// StudioGenerateSpeech synthesizes narration audio and stores it in the
// library like an image generation.
func (a *API) StudioGenerateSpeech(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Provider string `json:"provider"`
		Text     string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validatePrompt(req.Text); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}
	if !a.registry.SupportsSpeechGeneration(req.Provider) {
		writeError(w, http.StatusUnprocessableEntity, "speech provider not configured")
		return
	}
	if a.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage not configured")
		return
	}

	if !a.moderatePrompt(w, r, req.Text) {
		return
	}

	speech, err := a.registry.GenerateSpeech(r.Context(), req.Provider, req.Text)
	if err != nil {
		slog.Error("speech generation failed", "provider", req.Provider, "error", err)
		writeError(w, http.StatusBadGateway, "speech generation failed")
		return
	}

	key := fmt.Sprintf("studio/%s/%s.%s", userID, uuid.New(), extensionFor(speech.ContentType))
	bucket := a.storage.PrivateBucket()
	if err := a.storage.Upload(r.Context(), bucket, key, speech.ContentType, bytes.NewReader(speech.Data), int64(len(speech.Data))); err != nil {
		slog.Error("store generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	generation := &models.Generation{
		OwnerID:     userID,
		Kind:        models.GenerationAudio,
		Provider:    req.Provider,
		Model:       speech.Model,
		Prompt:      req.Text,
		Bucket:      &bucket,
		S3Key:       &key,
		ContentType: &speech.ContentType,
		SizeBytes:   int64(len(speech.Data)),
	}
	created, err := a.generations.Create(generation)
	if err != nil {
		slog.Error("record generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.attachGenerationURL(r, created)
	writeJSON(w, http.StatusCreated, created)
}

// StudioGenerateText runs a one-shot copy generation (no conversation)
// and stores the result inline in the library.
func (a *API) StudioGenerateText(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Provider string `json:"provider"`
		Prompt   string `json:"prompt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validatePrompt(req.Prompt); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	provider := req.Provider
	if provider == "" {
		provider = a.registry.ActiveName()
	}
	if !a.registry.HasChatProvider(provider) {
		writeError(w, http.StatusUnprocessableEntity, "provider not configured")
		return
	}

	if !a.moderatePrompt(w, r, req.Prompt) {
		return
	}

	completion, err := a.registry.ChatWith(r.Context(), provider, []ai.Message{
		{Role: "system", Content: chatSystemPrompt},
		{Role: "user", Content: req.Prompt},
	})
	if err != nil {
		slog.Error("text generation failed", "provider", provider, "error", err)
		writeError(w, http.StatusBadGateway, "text generation failed")
		return
	}

	generation := &models.Generation{
		OwnerID:   userID,
		Kind:      models.GenerationText,
		Provider:  provider,
		Model:     completion.Model,
		Prompt:    req.Prompt,
		Text:      &completion.Text,
		SizeBytes: int64(len(completion.Text)),
	}
	created, err := a.generations.Create(generation)
	if err != nil {
		slog.Error("record generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// StudioHistory pages through the caller's generation library with
// optional kind and favorites filters.
func (a *API) StudioHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	filter := store.HistoryFilter{
		OwnerID:       userID,
		FavoritesOnly: q.Get("favorites") == "true",
		Limit:         20,
	}
	if raw := q.Get("kind"); raw != "" {
		switch models.GenerationKind(raw) {
		case models.GenerationImage, models.GenerationAudio, models.GenerationText:
			filter.Kind = models.GenerationKind(raw)
		default:
			writeError(w, http.StatusBadRequest, "unknown kind filter")
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must not be negative")
			return
		}
		filter.Offset = n
	}

	generations, err := a.generations.History(filter)
	if err != nil {
		slog.Error("generation history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	for i := range generations {
		a.attachGenerationURL(r, &generations[i])
	}
	writeJSON(w, http.StatusOK, generations)
}

// StudioToggleFavorite flips the favorite flag on a generation.
func (a *API) StudioToggleFavorite(w http.ResponseWriter, r *http.Request) {
	generation := a.generationForOwner(w, r)
	if generation == nil {
		return
	}

	favorite, err := a.generations.ToggleFavorite(generation.ID)
	if err != nil {
		storeError(w, err, "generation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": favorite})
}

// StudioDelete soft-deletes one generation and removes its stored object.
func (a *API) StudioDelete(w http.ResponseWriter, r *http.Request) {
	generation := a.generationForOwner(w, r)
	if generation == nil {
		return
	}

	deleted, err := a.generations.SoftDelete(generation.ID)
	if err != nil {
		storeError(w, err, "generation not found")
		return
	}

	a.removeGenerationObject(r, deleted)
	w.WriteHeader(http.StatusNoContent)
}

// StudioDeleteBulk soft-deletes several generations in one call. IDs the
// caller does not own, or already-deleted ones, are skipped silently.
func (a *API) StudioDeleteBulk(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "ids is required")
		return
	}

	deleted, err := a.generations.SoftDeleteBulk(userID, req.IDs)
	if err != nil {
		slog.Error("bulk delete generations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	for i := range deleted {
		a.removeGenerationObject(r, &deleted[i])
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(deleted)})
}

// StudioStats summarizes the caller's library for the studio dashboard.
func (a *API) StudioStats(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := a.generations.Stats(userID)
	if err != nil {
		slog.Error("generation stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// moderatePrompt runs the prompt through moderation and writes the 422
// response itself when the prompt is flagged. Moderation errors fail
// open: the provider's own safety filters still apply.
func (a *API) moderatePrompt(w http.ResponseWriter, r *http.Request, prompt string) bool {
	result, err := a.registry.CheckPrompt(r.Context(), prompt)
	if err != nil {
		slog.Warn("moderation check failed, proceeding", "error", err)
		return true
	}
	if !result.Safe {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "prompt rejected by moderation",
			"categories": result.Categories,
		})
		return false
	}
	return true
}

// generationForOwner loads a generation and checks ownership. Other
// users' items read as 404.
func (a *API) generationForOwner(w http.ResponseWriter, r *http.Request) *models.Generation {
	id, err := urlUUID(r, "generationID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid generation id")
		return nil
	}
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil
	}

	generation, err := a.generations.FindByID(id)
	if err != nil {
		slog.Error("find generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if generation == nil || generation.OwnerID != userID {
		writeError(w, http.StatusNotFound, "generation not found")
		return nil
	}
	return generation
}

// attachGenerationURL fills a presigned URL for generations stored in
// the private bucket.
func (a *API) attachGenerationURL(r *http.Request, g *models.Generation) {
	if a.storage == nil || g.Bucket == nil || g.S3Key == nil {
		return
	}
	url, err := a.storage.PresignedURL(r.Context(), *g.Bucket, *g.S3Key, presignExpiry)
	if err != nil {
		slog.Warn("presign generation url failed", "generation", g.ID, "error", err)
		return
	}
	g.URL = url
}

// removeGenerationObject deletes the stored object behind a soft-deleted
// generation. Failures only log: the library row is already gone from
// view and orphaned objects can be swept later.
func (a *API) removeGenerationObject(r *http.Request, g *models.Generation) {
	if a.storage == nil || g.Bucket == nil || g.S3Key == nil {
		return
	}
	if err := a.storage.Delete(r.Context(), *g.Bucket, *g.S3Key); err != nil {
		slog.Warn("delete generation object failed", "key", *g.S3Key, "error", err)
	}
}
