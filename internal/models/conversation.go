// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author side of a chat message.
type MessageRole string

const (
	RoleUserMessage      MessageRole = "user"
	RoleAssistantMessage MessageRole = "assistant"
	RoleSystemMessage    MessageRole = "system"
)

// Conversation is one AI chat thread owned by a team member.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	Provider  string    `json:"provider"` // empty = registry's active provider
	Model     *string   `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one entry in a conversation transcript. Assistant messages
// produced while a provider call failed carry IsError so the client can
// render them distinctly.
type ChatMessage struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	IsError        bool        `json:"is_error"`
	CreatedAt      time.Time   `json:"created_at"`
}
