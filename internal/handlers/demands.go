// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"demandflow/internal/models"
	"demandflow/internal/search"
	"demandflow/internal/store"
)

// approverPayload is one reviewer entry in a demand create request.
type approverPayload struct {
	ApproverID   string `json:"approver_id"`
	ApproverName string `json:"approver_name"`
}

// demandRequest is the payload for creating or updating a demand.
type demandRequest struct {
	ClientID    uuid.UUID `json:"client_id"`
	Title       string    `json:"title"`
	Briefing    *string   `json:"briefing"`
	Caption     *string   `json:"caption"`
	Hashtags    *string   `json:"hashtags"`
	ContentType string    `json:"content_type"`
	Channels    []string  `json:"channels"`

	ScheduledDate *string `json:"scheduled_date"` // "2026-08-28"
	ScheduledTime *string `json:"scheduled_time"` // "14:30"

	SkipInternalApproval bool `json:"skip_internal_approval"`
	SkipExternalApproval bool `json:"skip_external_approval"`
	AutoSchedule         bool `json:"auto_schedule"`
	IsDraft              bool `json:"is_draft"`

	InternalApprovers []approverPayload `json:"internal_approvers"`
	ExternalApprovers []approverPayload `json:"external_approvers"`

	// ApprovalToken, when set on create, routes the demand onto an
	// existing approval link of the same client so one link covers a
	// whole review batch. Ignored on update.
	ApprovalToken string `json:"approval_token"`
}

// DemandsList returns demands for the board, filterable by client and
// status. Drafts are hidden unless ?drafts=true.
func (a *API) DemandsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.ListFilter{
		IncludeDrafts: q.Get("drafts") == "true",
	}
	if raw := q.Get("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid client_id filter")
			return
		}
		filter.ClientID = &id
	}
	if raw := q.Get("status"); raw != "" {
		status := models.DemandStatus(raw)
		if !models.IsValidStatus(status) {
			writeError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		filter.Status = status
	}

	demands, err := a.demands.List(filter)
	if err != nil {
		slog.Error("list demands failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, demands)
}

// DemandGet returns a single demand with approvers, history, comments
// and media.
func (a *API) DemandGet(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "demandID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid demand id")
		return
	}

	demand, err := a.demands.FindByID(id)
	if err != nil {
		slog.Error("find demand failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if demand == nil {
		writeError(w, http.StatusNotFound, "demand not found")
		return
	}

	a.attachMediaURLs(r, demand)
	writeJSON(w, http.StatusOK, demand)
}

// DemandCreate creates a demand with its reviewer lists and seeds the
// audit trail.
func (a *API) DemandCreate(w http.ResponseWriter, r *http.Request) {
	var req demandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateDemand(req.Title, req.ContentType, req.Channels); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	client, err := a.clients.FindByID(req.ClientID)
	if err != nil {
		slog.Error("find client failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if client == nil {
		writeError(w, http.StatusUnprocessableEntity, "client does not exist")
		return
	}

	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// A preset token must point at an existing link of the same client;
	// anything else would leak demands onto another client's review page.
	if req.ApprovalToken != "" {
		if !validApprovalToken(req.ApprovalToken) {
			writeError(w, http.StatusUnprocessableEntity, "approval_token is malformed")
			return
		}
		tokenClient, err := a.demands.TokenClient(req.ApprovalToken)
		if err != nil {
			slog.Error("find token client failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if tokenClient == nil || *tokenClient != req.ClientID {
			writeError(w, http.StatusUnprocessableEntity, "approval_token does not belong to this client")
			return
		}
	}

	demand := &models.Demand{
		ClientID:             req.ClientID,
		Title:                req.Title,
		Briefing:             req.Briefing,
		Caption:              req.Caption,
		Hashtags:             req.Hashtags,
		ContentType:          req.ContentType,
		Channels:             req.Channels,
		Status:               models.StatusBacklog,
		ApprovalStatus:       models.ApprovalPending,
		ApprovalToken:        req.ApprovalToken,
		ScheduledTime:        req.ScheduledTime,
		SkipInternalApproval: req.SkipInternalApproval,
		SkipExternalApproval: req.SkipExternalApproval,
		AutoSchedule:         req.AutoSchedule,
		IsDraft:              req.IsDraft,
		CreatedBy:            userID,
	}
	if req.ScheduledDate != nil {
		date, perr := parseDate(*req.ScheduledDate)
		if perr != nil {
			writeError(w, http.StatusUnprocessableEntity, "scheduled_date must be YYYY-MM-DD")
			return
		}
		demand.ScheduledDate = &date
	}

	created, err := a.demands.Create(demand,
		toApproverInputs(req.InternalApprovers),
		toApproverInputs(req.ExternalApprovers),
		actorName(r))
	if err != nil {
		slog.Error("create demand failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.indexDemand(created, client.Name)
	writeJSON(w, http.StatusCreated, created)
}

// DemandUpdate updates a demand's editable fields. Status changes go
// through DemandMove; approver changes through the approval endpoints.
func (a *API) DemandUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "demandID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid demand id")
		return
	}

	var req demandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateDemand(req.Title, req.ContentType, req.Channels); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	demand, err := a.demands.FindByID(id)
	if err != nil {
		slog.Error("find demand failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if demand == nil {
		writeError(w, http.StatusNotFound, "demand not found")
		return
	}

	demand.Title = req.Title
	demand.Briefing = req.Briefing
	demand.Caption = req.Caption
	demand.Hashtags = req.Hashtags
	demand.ContentType = req.ContentType
	demand.Channels = req.Channels
	demand.ScheduledTime = req.ScheduledTime
	demand.SkipInternalApproval = req.SkipInternalApproval
	demand.SkipExternalApproval = req.SkipExternalApproval
	demand.AutoSchedule = req.AutoSchedule
	demand.IsDraft = req.IsDraft
	demand.ScheduledDate = nil
	if req.ScheduledDate != nil {
		date, perr := parseDate(*req.ScheduledDate)
		if perr != nil {
			writeError(w, http.StatusUnprocessableEntity, "scheduled_date must be YYYY-MM-DD")
			return
		}
		demand.ScheduledDate = &date
	}

	if err := a.demands.Update(demand, actorName(r)); err != nil {
		storeError(w, err, "demand not found")
		return
	}

	a.invalidateApproval(r, demand.ApprovalToken)
	a.indexDemand(demand, "")
	writeJSON(w, http.StatusOK, demand)
}

// DemandMove moves a demand to another board column and records the
// transition. Moving into the published column stamps the publication
// date and appends to the client's content history.
func (a *API) DemandMove(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "demandID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid demand id")
		return
	}

	var req struct {
		Status models.DemandStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !models.IsValidStatus(req.Status) {
		writeError(w, http.StatusUnprocessableEntity, "unknown status")
		return
	}

	demand, err := a.demands.Move(id, req.Status, actorName(r))
	if err != nil {
		storeError(w, err, "demand not found")
		return
	}

	a.invalidateApproval(r, demand.ApprovalToken)
	a.indexDemand(demand, "")
	writeJSON(w, http.StatusOK, demand)
}

// DemandApproveInternal records the authenticated user's internal
// approval. When the last internal reviewer approves, the demand
// advances to client approval (or skips it when configured).
func (a *API) DemandApproveInternal(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "demandID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid demand id")
		return
	}
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	demand, err := a.demands.Approve(id, models.ApproverInternal, userID.String(), actorName(r))
	if err != nil {
		storeError(w, err, "demand or approver not found")
		return
	}

	a.invalidateApproval(r, demand.ApprovalToken)
	writeJSON(w, http.StatusOK, demand)
}

// DemandRequestAdjustmentInternal records an internal reviewer's
// dissent, moving the demand to the adjustments column.
func (a *API) DemandRequestAdjustmentInternal(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "demandID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid demand id")
		return
	}
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	demand, err := a.demands.RequestAdjustment(id, models.ApproverInternal, userID.String(), actorName(r), req.Feedback)
	if err != nil {
		storeError(w, err, "demand or approver not found")
		return
	}

	a.invalidateApproval(r, demand.ApprovalToken)
	writeJSON(w, http.StatusOK, demand)
}

// DemandResetApprovals returns every reviewer to pending after a round
// of adjustments, so the approval cycle restarts cleanly.
func (a *API) DemandResetApprovals(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "demandID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid demand id")
		return
	}

	if err := a.demands.ResetApprovals(id, actorName(r)); err != nil {
		storeError(w, err, "demand not found")
		return
	}

	demand, err := a.demands.FindByID(id)
	if err != nil || demand == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.invalidateApproval(r, demand.ApprovalToken)
	writeJSON(w, http.StatusOK, demand)
}

// DemandCommentCreate adds a comment to a demand.
func (a *API) DemandCommentCreate(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "demandID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid demand id")
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateComment(req.Body); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	demand, err := a.demands.FindByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if demand == nil {
		writeError(w, http.StatusNotFound, "demand not found")
		return
	}

	comment, err := a.demands.AddComment(id, actorName(r), req.Body)
	if err != nil {
		slog.Error("add comment failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// DemandSetMedia replaces the ordered media attachments of a demand.
func (a *API) DemandSetMedia(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "demandID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid demand id")
		return
	}

	var req struct {
		MediaIDs []uuid.UUID `json:"media_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	demand, err := a.demands.FindByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if demand == nil {
		writeError(w, http.StatusNotFound, "demand not found")
		return
	}

	if err := a.demands.SetMedia(id, req.MediaIDs); err != nil {
		slog.Error("set demand media failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.invalidateApproval(r, demand.ApprovalToken)
	w.WriteHeader(http.StatusNoContent)
}

// DemandDelete removes a demand and its dependent rows.
func (a *API) DemandDelete(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "demandID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid demand id")
		return
	}

	demand, err := a.demands.FindByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if demand == nil {
		writeError(w, http.StatusNotFound, "demand not found")
		return
	}

	if err := a.demands.Delete(id); err != nil {
		storeError(w, err, "demand not found")
		return
	}

	a.invalidateApproval(r, demand.ApprovalToken)
	if a.search != nil {
		a.search.DeleteDemand(id.String())
	}
	w.WriteHeader(http.StatusNoContent)
}

func toApproverInputs(payloads []approverPayload) []store.ApproverInput {
	inputs := make([]store.ApproverInput, 0, len(payloads))
	for _, p := range payloads {
		inputs = append(inputs, store.ApproverInput{
			ApproverID:   p.ApproverID,
			ApproverName: p.ApproverName,
		})
	}
	return inputs
}

// attachMediaURLs fills public URLs for a demand's media attachments.
func (a *API) attachMediaURLs(r *http.Request, d *models.Demand) {
	if a.storage == nil || len(d.Media) == 0 {
		return
	}

	ids := make([]uuid.UUID, 0, len(d.Media))
	for _, m := range d.Media {
		ids = append(ids, m.MediaID)
	}
	items, err := a.media.FindByIDs(ids)
	if err != nil {
		slog.Warn("load demand media failed", "demand", d.ID, "error", err)
		return
	}

	byID := make(map[uuid.UUID]string, len(items))
	for _, m := range items {
		key := m.S3Key
		if m.ThumbS3Key != nil {
			key = *m.ThumbS3Key
		}
		byID[m.ID] = a.storage.FileURL(key)
	}
	for i := range d.Media {
		d.Media[i].URL = byID[d.Media[i].MediaID]
	}
}

func (a *API) invalidateApproval(r *http.Request, token string) {
	if a.approvalCache != nil && token != "" {
		a.approvalCache.Invalidate(r.Context(), token)
	}
}

func (a *API) indexDemand(d *models.Demand, clientName string) {
	if a.search == nil {
		return
	}
	if d.IsDraft {
		a.search.DeleteDemand(d.ID.String())
		return
	}
	if clientName == "" {
		if client, err := a.clients.FindByID(d.ClientID); err == nil && client != nil {
			clientName = client.Name
		}
	}
	briefing := ""
	if d.Briefing != nil {
		briefing = *d.Briefing
	}
	a.search.IndexDemand(search.DemandRecord{
		ID:          d.ID.String(),
		Title:       d.Title,
		Description: briefing,
		ClientID:    d.ClientID.String(),
		ClientName:  clientName,
		Status:      string(d.Status),
	})
}
