// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"demandflow/internal/models"
)

// contractRequest is the payload for creating or updating a contract.
type contractRequest struct {
	ClientID     uuid.UUID `json:"client_id"`
	Title        string    `json:"title"`
	Value        float64   `json:"value"`
	BillingCycle string    `json:"billing_cycle"`
	Status       string    `json:"status"`
	StartDate    string    `json:"start_date"` // "2026-01-01"
	EndDate      *string   `json:"end_date"`
	SignedAt     *string   `json:"signed_at"`
	Notes        *string   `json:"notes"`
}

func (req *contractRequest) validate() string {
	if strings.TrimSpace(req.Title) == "" {
		return "title is required"
	}
	if req.Value < 0 {
		return "value must not be negative"
	}
	switch models.BillingCycle(req.BillingCycle) {
	case models.BillingMonthly, models.BillingQuarterly, models.BillingYearly, models.BillingOneOff, "":
	default:
		return "unknown billing_cycle"
	}
	switch models.ContractStatus(req.Status) {
	case models.ContractDraft, models.ContractActive, models.ContractExpired, models.ContractCancelled, "":
	default:
		return "unknown status"
	}
	return ""
}

func (req *contractRequest) apply(c *models.Contract) string {
	c.ClientID = req.ClientID
	c.Title = req.Title
	c.Value = req.Value
	c.Notes = req.Notes
	if req.BillingCycle != "" {
		c.BillingCycle = models.BillingCycle(req.BillingCycle)
	}
	if req.Status != "" {
		c.Status = models.ContractStatus(req.Status)
	}

	if req.StartDate != "" {
		start, err := parseDate(req.StartDate)
		if err != nil {
			return "start_date must be YYYY-MM-DD"
		}
		c.StartDate = start
	}
	c.EndDate = nil
	if req.EndDate != nil {
		end, err := parseDate(*req.EndDate)
		if err != nil {
			return "end_date must be YYYY-MM-DD"
		}
		c.EndDate = &end
	}
	c.SignedAt = nil
	if req.SignedAt != nil {
		signed, err := parseDate(*req.SignedAt)
		if err != nil {
			return "signed_at must be YYYY-MM-DD"
		}
		c.SignedAt = &signed
	}
	return ""
}

// ContractsList returns contracts, optionally filtered by client.
func (a *API) ContractsList(w http.ResponseWriter, r *http.Request) {
	var clientID *uuid.UUID
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid client_id filter")
			return
		}
		clientID = &id
	}

	contracts, err := a.contracts.List(clientID)
	if err != nil {
		slog.Error("list contracts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, contracts)
}

// ContractGet returns a single contract.
func (a *API) ContractGet(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "contractID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contract id")
		return
	}

	contract, err := a.contracts.FindByID(id)
	if err != nil {
		slog.Error("find contract failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if contract == nil {
		writeError(w, http.StatusNotFound, "contract not found")
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

// ContractCreate creates a contract for a client.
func (a *API) ContractCreate(w http.ResponseWriter, r *http.Request) {
	var req contractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	client, err := a.clients.FindByID(req.ClientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if client == nil {
		writeError(w, http.StatusUnprocessableEntity, "client does not exist")
		return
	}

	contract := &models.Contract{StartDate: time.Now()}
	if msg := req.apply(contract); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	created, err := a.contracts.Create(contract)
	if err != nil {
		slog.Error("create contract failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ContractUpdate updates a contract.
func (a *API) ContractUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "contractID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contract id")
		return
	}

	var req contractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	contract, err := a.contracts.FindByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if contract == nil {
		writeError(w, http.StatusNotFound, "contract not found")
		return
	}

	if msg := req.apply(contract); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	if err := a.contracts.Update(contract); err != nil {
		storeError(w, err, "contract not found")
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

// ContractDelete removes a contract. Transactions that referenced it
// keep their history with the contract link cleared.
func (a *API) ContractDelete(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "contractID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contract id")
		return
	}

	if err := a.contracts.Delete(id); err != nil {
		storeError(w, err, "contract not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
