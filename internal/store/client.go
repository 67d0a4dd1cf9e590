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

// ClientStore handles all client-related database operations.
type ClientStore struct {
	db *sql.DB
}

// NewClientStore creates a new ClientStore with the given database connection.
func NewClientStore(db *sql.DB) *ClientStore {
	return &ClientStore{db: db}
}

// List returns all clients ordered by name. Pass activeOnly to hide
// deactivated accounts from the board filters.
func (s *ClientStore) List(activeOnly bool) ([]models.Client, error) {
	query := `
		SELECT id, name, company, email, phone, segment, monthly_fee, active, notes, created_at, updated_at
		FROM clients
	`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Company, &c.Email, &c.Phone, &c.Segment,
			&c.MonthlyFee, &c.Active, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// FindByID retrieves a client by its UUID. Returns nil if not found.
func (s *ClientStore) FindByID(id uuid.UUID) (*models.Client, error) {
	c := &models.Client{}
	err := s.db.QueryRow(`
		SELECT id, name, company, email, phone, segment, monthly_fee, active, notes, created_at, updated_at
		FROM clients WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Name, &c.Company, &c.Email, &c.Phone, &c.Segment,
		&c.MonthlyFee, &c.Active, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find client by id: %w", err)
	}
	return c, nil
}

// Create inserts a new client and returns it with the generated ID.
func (s *ClientStore) Create(c *models.Client) (*models.Client, error) {
	result := &models.Client{}
	err := s.db.QueryRow(`
		INSERT INTO clients (name, company, email, phone, segment, monthly_fee, active, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, name, company, email, phone, segment, monthly_fee, active, notes, created_at, updated_at
	`, c.Name, c.Company, c.Email, c.Phone, c.Segment, c.MonthlyFee, c.Active, c.Notes,
	).Scan(
		&result.ID, &result.Name, &result.Company, &result.Email, &result.Phone,
		&result.Segment, &result.MonthlyFee, &result.Active, &result.Notes,
		&result.CreatedAt, &result.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return result, nil
}

// Update modifies an existing client.
func (s *ClientStore) Update(c *models.Client) error {
	res, err := s.db.Exec(`
		UPDATE clients SET
			name = $1, company = $2, email = $3, phone = $4, segment = $5,
			monthly_fee = $6, active = $7, notes = $8, updated_at = NOW()
		WHERE id = $9
	`, c.Name, c.Company, c.Email, c.Phone, c.Segment, c.MonthlyFee, c.Active, c.Notes, c.ID)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a client and, via cascade, its demands and history.
func (s *ClientStore) Delete(id uuid.UUID) error {
	res, err := s.db.Exec(`DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ContentHistory returns the published-content log for one client, newest
// first. Rows are appended by the demand workflow when a demand completes.
func (s *ClientStore) ContentHistory(clientID uuid.UUID) ([]models.ContentHistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, client_id, demand_id, title, channels, published_at
		FROM client_content_history
		WHERE client_id = $1
		ORDER BY published_at DESC
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list content history: %w", err)
	}
	defer rows.Close()

	var entries []models.ContentHistoryEntry
	for rows.Next() {
		var e models.ContentHistoryEntry
		var channels string
		if err := rows.Scan(&e.ID, &e.ClientID, &e.DemandID, &e.Title, &channels, &e.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan content history: %w", err)
		}
		e.Channels = splitList(channels)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
