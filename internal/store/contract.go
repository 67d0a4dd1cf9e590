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

// ContractStore handles all contract-related database operations.
type ContractStore struct {
	db *sql.DB
}

// NewContractStore creates a new ContractStore with the given database connection.
func NewContractStore(db *sql.DB) *ContractStore {
	return &ContractStore{db: db}
}

const contractColumns = `
	id, client_id, title, value, billing_cycle, status,
	start_date, end_date, signed_at, notes, created_at, updated_at`

func scanContract(row interface{ Scan(...any) error }) (*models.Contract, error) {
	c := &models.Contract{}
	err := row.Scan(
		&c.ID, &c.ClientID, &c.Title, &c.Value, &c.BillingCycle, &c.Status,
		&c.StartDate, &c.EndDate, &c.SignedAt, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns contracts, optionally narrowed to one client, newest first.
func (s *ContractStore) List(clientID *uuid.UUID) ([]models.Contract, error) {
	query := `SELECT` + contractColumns + ` FROM contracts`
	var args []any
	if clientID != nil {
		query += ` WHERE client_id = $1`
		args = append(args, *clientID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var contracts []models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, *c)
	}
	return contracts, rows.Err()
}

// FindByID retrieves a contract by its UUID. Returns nil if not found.
func (s *ContractStore) FindByID(id uuid.UUID) (*models.Contract, error) {
	c, err := scanContract(s.db.QueryRow(`SELECT`+contractColumns+` FROM contracts WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find contract by id: %w", err)
	}
	return c, nil
}

// Create inserts a new contract and returns it with the generated ID.
func (s *ContractStore) Create(c *models.Contract) (*models.Contract, error) {
	if c.Status == "" {
		c.Status = models.ContractDraft
	}
	if c.BillingCycle == "" {
		c.BillingCycle = models.BillingMonthly
	}

	result, err := scanContract(s.db.QueryRow(`
		INSERT INTO contracts (client_id, title, value, billing_cycle, status, start_date, end_date, signed_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING`+contractColumns,
		c.ClientID, c.Title, c.Value, c.BillingCycle, c.Status,
		c.StartDate, c.EndDate, c.SignedAt, c.Notes,
	))
	if err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	return result, nil
}

// Update modifies an existing contract.
func (s *ContractStore) Update(c *models.Contract) error {
	res, err := s.db.Exec(`
		UPDATE contracts SET
			title = $1, value = $2, billing_cycle = $3, status = $4,
			start_date = $5, end_date = $6, signed_at = $7, notes = $8, updated_at = NOW()
		WHERE id = $9
	`, c.Title, c.Value, c.BillingCycle, c.Status,
		c.StartDate, c.EndDate, c.SignedAt, c.Notes, c.ID)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a contract by ID.
func (s *ContractStore) Delete(id uuid.UUID) error {
	res, err := s.db.Exec(`DELETE FROM contracts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
