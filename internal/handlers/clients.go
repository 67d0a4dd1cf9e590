// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"

	"demandflow/internal/models"
	"demandflow/internal/search"
)

// ClientsList returns all clients, or only active ones with ?active=true.
func (a *API) ClientsList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	clients, err := a.clients.List(activeOnly)
	if err != nil {
		slog.Error("list clients failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

// ClientGet returns a single client by ID.
func (a *API) ClientGet(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "clientID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	client, err := a.clients.FindByID(id)
	if err != nil {
		slog.Error("find client failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if client == nil {
		writeError(w, http.StatusNotFound, "client not found")
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// clientRequest is the payload for creating or updating a client.
type clientRequest struct {
	Name       string  `json:"name"`
	Company    *string `json:"company"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Segment    *string `json:"segment"`
	MonthlyFee float64 `json:"monthly_fee"`
	Active     *bool   `json:"active"`
	Notes      *string `json:"notes"`
}

// ClientCreate creates a new client.
func (a *API) ClientCreate(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateClient(req.Name, req.MonthlyFee); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	client := &models.Client{
		Name:       req.Name,
		Company:    req.Company,
		Email:      req.Email,
		Phone:      req.Phone,
		Segment:    req.Segment,
		MonthlyFee: req.MonthlyFee,
		Active:     true,
		Notes:      req.Notes,
	}
	if req.Active != nil {
		client.Active = *req.Active
	}

	created, err := a.clients.Create(client)
	if err != nil {
		slog.Error("create client failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.indexClient(created)
	writeJSON(w, http.StatusCreated, created)
}

// ClientUpdate updates an existing client.
func (a *API) ClientUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "clientID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateClient(req.Name, req.MonthlyFee); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	client, err := a.clients.FindByID(id)
	if err != nil {
		slog.Error("find client failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if client == nil {
		writeError(w, http.StatusNotFound, "client not found")
		return
	}

	client.Name = req.Name
	client.Company = req.Company
	client.Email = req.Email
	client.Phone = req.Phone
	client.Segment = req.Segment
	client.MonthlyFee = req.MonthlyFee
	client.Notes = req.Notes
	if req.Active != nil {
		client.Active = *req.Active
	}

	if err := a.clients.Update(client); err != nil {
		storeError(w, err, "client not found")
		return
	}

	a.indexClient(client)
	writeJSON(w, http.StatusOK, client)
}

// ClientDelete removes a client and, via cascade, its demands.
func (a *API) ClientDelete(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "clientID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	if err := a.clients.Delete(id); err != nil {
		storeError(w, err, "client not found")
		return
	}

	if a.search != nil {
		a.search.DeleteClient(id.String())
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClientContentHistory returns the published-content log for a client,
// newest first.
func (a *API) ClientContentHistory(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "clientID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	client, err := a.clients.FindByID(id)
	if err != nil {
		slog.Error("find client failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if client == nil {
		writeError(w, http.StatusNotFound, "client not found")
		return
	}

	history, err := a.clients.ContentHistory(id)
	if err != nil {
		slog.Error("client content history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) indexClient(c *models.Client) {
	if a.search == nil {
		return
	}
	industry := ""
	if c.Segment != nil {
		industry = *c.Segment
	}
	a.search.IndexClient(search.ClientRecord{
		ID:       c.ID.String(),
		Name:     c.Name,
		Industry: industry,
	})
}
