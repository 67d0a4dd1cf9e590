// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"demandflow/internal/ai"
	"demandflow/internal/middleware"
	"demandflow/internal/models"
)

// chatSystemPrompt frames the assistant for agency work. Conversations
// on the OpenAI provider ignore it: the configured assistant carries its
// own instructions.
const chatSystemPrompt = "Você é um assistente de marketing de uma agência. " +
	"Ajude a equipe a criar legendas, roteiros e ideias de conteúdo para redes sociais. " +
	"Responda no idioma da pergunta."

// maxTitleFromPrompt caps the conversation title derived from the first
// message.
const maxTitleFromPrompt = 60

// ConversationsList returns the authenticated user's conversations,
// most recently active first.
func (a *API) ConversationsList(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conversations, err := a.conversations.ListByOwner(userID)
	if err != nil {
		slog.Error("list conversations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

// ConversationCreate starts a new chat thread, optionally pinned to a
// specific provider.
func (a *API) ConversationCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Title    string `json:"title"`
		Provider string `json:"provider"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Provider != "" && !a.registry.HasChatProvider(req.Provider) {
		writeError(w, http.StatusUnprocessableEntity, "provider not configured")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Nova conversa"
	}

	conversation, err := a.conversations.Create(userID, title, req.Provider, nil)
	if err != nil {
		slog.Error("create conversation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, conversation)
}

// conversationForOwner loads a conversation and checks it belongs to the
// requester. Other users' threads read as 404, not 403.
func (a *API) conversationForOwner(w http.ResponseWriter, r *http.Request) *models.Conversation {
	id, err := urlUUID(r, "conversationID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return nil
	}
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil
	}

	conversation, err := a.conversations.FindByID(id)
	if err != nil {
		slog.Error("find conversation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if conversation == nil || conversation.OwnerID != userID {
		writeError(w, http.StatusNotFound, "conversation not found")
		return nil
	}
	return conversation
}

// ConversationMessages returns the full transcript of a conversation.
func (a *API) ConversationMessages(w http.ResponseWriter, r *http.Request) {
	conversation := a.conversationForOwner(w, r)
	if conversation == nil {
		return
	}

	messages, err := a.conversations.Messages(conversation.ID)
	if err != nil {
		slog.Error("load messages failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": conversation,
		"messages":     messages,
	})
}

// ConversationRename changes a conversation title.
func (a *API) ConversationRename(w http.ResponseWriter, r *http.Request) {
	conversation := a.conversationForOwner(w, r)
	if conversation == nil {
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusUnprocessableEntity, "title is required")
		return
	}

	if err := a.conversations.Rename(conversation.ID, req.Title); err != nil {
		storeError(w, err, "conversation not found")
		return
	}
	conversation.Title = req.Title
	writeJSON(w, http.StatusOK, conversation)
}

// ConversationDelete removes a conversation and its messages.
func (a *API) ConversationDelete(w http.ResponseWriter, r *http.Request) {
	conversation := a.conversationForOwner(w, r)
	if conversation == nil {
		return
	}

	if err := a.conversations.Delete(conversation.ID); err != nil {
		storeError(w, err, "conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChatSend appends the user's message, calls the conversation's provider
// with the full transcript, and stores the reply. Provider failures are
// stored as error-flagged assistant messages and surface as 502 so the
// client can offer a retry.
func (a *API) ChatSend(w http.ResponseWriter, r *http.Request) {
	conversation := a.conversationForOwner(w, r)
	if conversation == nil {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validatePrompt(req.Content); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	history, err := a.conversations.Messages(conversation.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	userMessage, err := a.conversations.AppendMessage(conversation.ID, models.RoleUserMessage, req.Content, false)
	if err != nil {
		slog.Error("append user message failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Title untouched threads after their opening message.
	if len(history) == 0 && conversation.Title == "Nova conversa" {
		title := req.Content
		if utf8.RuneCountInString(title) > maxTitleFromPrompt {
			title = string([]rune(title)[:maxTitleFromPrompt])
		}
		if err := a.conversations.Rename(conversation.ID, title); err != nil {
			slog.Warn("auto-title failed", "conversation", conversation.ID, "error", err)
		}
	}

	transcript := make([]ai.Message, 0, len(history)+2)
	transcript = append(transcript, ai.Message{Role: "system", Content: chatSystemPrompt})
	for _, m := range history {
		if m.IsError {
			continue
		}
		transcript = append(transcript, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	transcript = append(transcript, ai.Message{Role: "user", Content: req.Content})

	provider := conversation.Provider
	if provider == "" {
		provider = a.registry.ActiveName()
	}

	completion, err := a.registry.ChatWith(r.Context(), provider, transcript)
	if err != nil {
		slog.Error("chat provider failed", "provider", provider, "error", err)
		errorMessage, appendErr := a.conversations.AppendMessage(
			conversation.ID, models.RoleAssistantMessage,
			"O provedor de IA não respondeu. Tente novamente.", true)
		if appendErr != nil {
			slog.Error("append error message failed", "error", appendErr)
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":        "ai provider unavailable",
			"user_message": userMessage,
			"message":      errorMessage,
		})
		return
	}

	assistantMessage, err := a.conversations.AppendMessage(
		conversation.ID, models.RoleAssistantMessage, completion.Text, false)
	if err != nil {
		slog.Error("append assistant message failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_message": userMessage,
		"message":      assistantMessage,
		"provider":     provider,
		"model":        completion.Model,
	})
}

// ChatProviders lists configured chat providers and which one is active.
func (a *API) ChatProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active":    a.registry.ActiveName(),
		"providers": a.registry.ChatProviders(),
	})
}

// ChatSetProvider switches the workspace-wide default chat provider.
// Admin only.
func (a *API) ChatSetProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.registry.SetActive(req.Provider); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "provider not configured")
		return
	}

	claims := middleware.ClaimsFromCtx(r.Context())
	slog.Info("active chat provider changed", "provider", req.Provider, "by", claims.Subject)
	writeJSON(w, http.StatusOK, map[string]string{"active": req.Provider})
}
