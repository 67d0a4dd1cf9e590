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

// TransactionStore handles all financial-transaction database operations.
type TransactionStore struct {
	db *sql.DB
}

// NewTransactionStore creates a new TransactionStore with the given database connection.
func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

const transactionColumns = `
	id, client_id, contract_id, kind, description, amount, category,
	status, due_date, paid_at, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*models.Transaction, error) {
	t := &models.Transaction{}
	err := row.Scan(
		&t.ID, &t.ClientID, &t.ContractID, &t.Kind, &t.Description, &t.Amount,
		&t.Category, &t.Status, &t.DueDate, &t.PaidAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns transactions, optionally narrowed to one client, newest first.
func (s *TransactionStore) List(clientID *uuid.UUID) ([]models.Transaction, error) {
	query := `SELECT` + transactionColumns + ` FROM transactions`
	var args []any
	if clientID != nil {
		query += ` WHERE client_id = $1`
		args = append(args, *clientID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// FindByID retrieves a transaction by its UUID. Returns nil if not found.
func (s *TransactionStore) FindByID(id uuid.UUID) (*models.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRow(`SELECT`+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction by id: %w", err)
	}
	return t, nil
}

// Create inserts a new transaction and returns it with the generated ID.
func (s *TransactionStore) Create(t *models.Transaction) (*models.Transaction, error) {
	if t.Status == "" {
		t.Status = models.TransactionPending
	}

	result, err := scanTransaction(s.db.QueryRow(`
		INSERT INTO transactions (client_id, contract_id, kind, description, amount, category, status, due_date, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING`+transactionColumns,
		t.ClientID, t.ContractID, t.Kind, t.Description, t.Amount,
		t.Category, t.Status, t.DueDate, t.PaidAt,
	))
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return result, nil
}

// Update modifies an existing transaction.
func (s *TransactionStore) Update(t *models.Transaction) error {
	res, err := s.db.Exec(`
		UPDATE transactions SET
			client_id = $1, contract_id = $2, kind = $3, description = $4,
			amount = $5, category = $6, status = $7, due_date = $8, paid_at = $9,
			updated_at = NOW()
		WHERE id = $10
	`, t.ClientID, t.ContractID, t.Kind, t.Description,
		t.Amount, t.Category, t.Status, t.DueDate, t.PaidAt, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid stamps a pending transaction as paid now.
func (s *TransactionStore) MarkPaid(id uuid.UUID) error {
	res, err := s.db.Exec(`
		UPDATE transactions SET status = $1, paid_at = NOW(), updated_at = NOW() WHERE id = $2
	`, models.TransactionPaid, id)
	if err != nil {
		return fmt.Errorf("mark transaction paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a transaction by ID.
func (s *TransactionStore) Delete(id uuid.UUID) error {
	res, err := s.db.Exec(`DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MonthlySummaries aggregates income, expense and balance per calendar
// month over the last monthsBack months, oldest first.
func (s *TransactionStore) MonthlySummaries(monthsBack int) ([]models.MonthlySummary, error) {
	rows, err := s.db.Query(`
		SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month,
		       COALESCE(SUM(amount) FILTER (WHERE kind = 'income'), 0)  AS income,
		       COALESCE(SUM(amount) FILTER (WHERE kind = 'expense'), 0) AS expense
		FROM transactions
		WHERE created_at >= date_trunc('month', NOW()) - ($1 * INTERVAL '1 month')
		GROUP BY date_trunc('month', created_at)
		ORDER BY date_trunc('month', created_at) ASC
	`, monthsBack)
	if err != nil {
		return nil, fmt.Errorf("monthly summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.MonthlySummary
	for rows.Next() {
		var m models.MonthlySummary
		if err := rows.Scan(&m.Month, &m.Income, &m.Expense); err != nil {
			return nil, fmt.Errorf("scan monthly summary: %w", err)
		}
		m.Balance = m.Income - m.Expense
		summaries = append(summaries, m)
	}
	return summaries, rows.Err()
}
