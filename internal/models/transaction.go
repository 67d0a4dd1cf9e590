// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind distinguishes money in from money out.
type TransactionKind string

const (
	TransactionIncome  TransactionKind = "income"
	TransactionExpense TransactionKind = "expense"
)

// TransactionStatus tracks payment state.
type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionPaid    TransactionStatus = "paid"
	TransactionOverdue TransactionStatus = "overdue"
)

// Transaction is one financial entry, optionally tied to a client and contract.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	ClientID    *uuid.UUID        `json:"client_id,omitempty"`
	ContractID  *uuid.UUID        `json:"contract_id,omitempty"`
	Kind        TransactionKind   `json:"kind"`
	Description string            `json:"description"`
	Amount      float64           `json:"amount"`
	Category    *string           `json:"category,omitempty"`
	Status      TransactionStatus `json:"status"`
	DueDate     *time.Time        `json:"due_date,omitempty"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// MonthlySummary aggregates transactions for one calendar month.
type MonthlySummary struct {
	Month   string  `json:"month"` // "2026-08"
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}
