// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"demandflow/internal/models"
)

// transactionRequest is the payload for creating or updating a transaction.
type transactionRequest struct {
	ClientID    *uuid.UUID `json:"client_id"`
	ContractID  *uuid.UUID `json:"contract_id"`
	Kind        string     `json:"kind"`
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	Category    *string    `json:"category"`
	Status      string     `json:"status"`
	DueDate     *string    `json:"due_date"`
}

func (req *transactionRequest) validate() string {
	switch models.TransactionKind(req.Kind) {
	case models.TransactionIncome, models.TransactionExpense:
	default:
		return "kind must be income or expense"
	}
	if strings.TrimSpace(req.Description) == "" {
		return "description is required"
	}
	if req.Amount <= 0 {
		return "amount must be positive"
	}
	switch models.TransactionStatus(req.Status) {
	case models.TransactionPending, models.TransactionPaid, models.TransactionOverdue, "":
	default:
		return "unknown status"
	}
	return ""
}

func (req *transactionRequest) apply(t *models.Transaction) string {
	t.ClientID = req.ClientID
	t.ContractID = req.ContractID
	t.Kind = models.TransactionKind(req.Kind)
	t.Description = req.Description
	t.Amount = req.Amount
	t.Category = req.Category
	if req.Status != "" {
		t.Status = models.TransactionStatus(req.Status)
	}
	t.DueDate = nil
	if req.DueDate != nil {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			return "due_date must be YYYY-MM-DD"
		}
		t.DueDate = &due
	}
	return ""
}

// TransactionsList returns transactions, optionally filtered by client.
func (a *API) TransactionsList(w http.ResponseWriter, r *http.Request) {
	var clientID *uuid.UUID
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid client_id filter")
			return
		}
		clientID = &id
	}

	transactions, err := a.transactions.List(clientID)
	if err != nil {
		slog.Error("list transactions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}

// TransactionCreate records a financial entry.
func (a *API) TransactionCreate(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	tx := &models.Transaction{}
	if msg := req.apply(tx); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	created, err := a.transactions.Create(tx)
	if err != nil {
		slog.Error("create transaction failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// TransactionUpdate updates a transaction.
func (a *API) TransactionUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "transactionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	tx, err := a.transactions.FindByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tx == nil {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	if msg := req.apply(tx); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	if err := a.transactions.Update(tx); err != nil {
		storeError(w, err, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// TransactionMarkPaid marks a transaction as paid with the current
// timestamp.
func (a *API) TransactionMarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "transactionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := a.transactions.MarkPaid(id); err != nil {
		storeError(w, err, "transaction not found")
		return
	}

	tx, err := a.transactions.FindByID(id)
	if err != nil || tx == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// TransactionDelete removes a transaction.
func (a *API) TransactionDelete(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "transactionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := a.transactions.Delete(id); err != nil {
		storeError(w, err, "transaction not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FinanceSummary returns per-month income/expense/balance aggregates for
// the dashboard, defaulting to the last 6 months (?months=N to change).
func (a *API) FinanceSummary(w http.ResponseWriter, r *http.Request) {
	months := 6
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 36 {
			writeError(w, http.StatusBadRequest, "months must be between 1 and 36")
			return
		}
		months = n
	}

	summaries, err := a.transactions.MonthlySummaries(months)
	if err != nil {
		slog.Error("monthly summaries failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}
