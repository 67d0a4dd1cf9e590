// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"demandflow/internal/models"
)

// ConversationStore persists AI chat threads and their transcripts.
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore creates a new ConversationStore with the given database connection.
func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// ListByOwner returns one user's conversations, most recently active first.
func (s *ConversationStore) ListByOwner(ownerID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_id, title, provider, model, created_at, updated_at
		FROM conversations
		WHERE owner_id = $1
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Provider, &c.Model, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// FindByID retrieves a conversation by its UUID. Returns nil if not found.
func (s *ConversationStore) FindByID(id uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := s.db.QueryRow(`
		SELECT id, owner_id, title, provider, model, created_at, updated_at
		FROM conversations WHERE id = $1
	`, id).Scan(&c.ID, &c.OwnerID, &c.Title, &c.Provider, &c.Model, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation by id: %w", err)
	}
	return c, nil
}

// Create starts a new conversation.
func (s *ConversationStore) Create(ownerID uuid.UUID, title, provider string, model *string) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := s.db.QueryRow(`
		INSERT INTO conversations (owner_id, title, provider, model)
		VALUES ($1, $2, $3, $4)
		RETURNING id, owner_id, title, provider, model, created_at, updated_at
	`, ownerID, title, provider, model).Scan(
		&c.ID, &c.OwnerID, &c.Title, &c.Provider, &c.Model, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

// Rename changes a conversation's title.
func (s *ConversationStore) Rename(id uuid.UUID, title string) error {
	res, err := s.db.Exec(`
		UPDATE conversations SET title = $1, updated_at = NOW() WHERE id = $2
	`, title, id)
	if err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a conversation and its transcript.
func (s *ConversationStore) Delete(id uuid.UUID) error {
	res, err := s.db.Exec(`DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Messages returns a conversation's transcript in chronological order.
func (s *ConversationStore) Messages(conversationID uuid.UUID) ([]models.ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, role, content, is_error, created_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.IsError, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AppendMessage adds one message to a transcript and bumps the
// conversation's updated_at so it sorts to the top of the sidebar.
func (s *ConversationStore) AppendMessage(conversationID uuid.UUID, role models.MessageRole, content string, isError bool) (*models.ChatMessage, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("append message: begin: %w", err)
	}
	defer tx.Rollback()

	m := &models.ChatMessage{}
	err = tx.QueryRow(`
		INSERT INTO chat_messages (conversation_id, role, content, is_error)
		VALUES ($1, $2, $3, $4)
		RETURNING id, conversation_id, role, content, is_error, created_at
	`, conversationID, role, content, isError).Scan(
		&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.IsError, &m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if _, err := tx.Exec(`UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID); err != nil {
		return nil, fmt.Errorf("append message: touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("append message: commit: %w", err)
	}
	return m, nil
}
