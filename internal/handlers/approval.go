// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"demandflow/internal/models"
)

// tokenLength is the expected length of a public approval token
// (16 random bytes hex-encoded).
const tokenLength = 32

// validApprovalToken reports whether a token has the generated shape.
// Tokens of the wrong shape are rejected before touching the database.
func validApprovalToken(token string) bool {
	if len(token) != tokenLength {
		return false
	}
	for _, c := range token {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// approvalToken extracts and sanity-checks the token path parameter.
func approvalToken(r *http.Request) (string, bool) {
	token := chi.URLParam(r, "token")
	if !validApprovalToken(token) {
		return "", false
	}
	return token, true
}

// approvalDemandView is a demand as seen on the public approval page.
// Internal reviewers, the audit trail and team comments stay hidden.
type approvalDemandView struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	Caption       *string               `json:"caption,omitempty"`
	Hashtags      *string               `json:"hashtags,omitempty"`
	ContentType   string                `json:"content_type"`
	Channels      []string              `json:"channels"`
	Status        models.DemandStatus   `json:"status"`
	ScheduledDate *string               `json:"scheduled_date,omitempty"`
	ScheduledTime *string               `json:"scheduled_time,omitempty"`
	Approvers     []models.Approver     `json:"approvers"`
	Media         []models.DemandMedia  `json:"media"`
	ApprovalState models.ApprovalStatus `json:"approval_status"`
}

func (a *API) toApprovalView(r *http.Request, d *models.Demand) approvalDemandView {
	a.attachMediaURLs(r, d)

	view := approvalDemandView{
		ID:            d.ID.String(),
		Title:         d.Title,
		Caption:       d.Caption,
		Hashtags:      d.Hashtags,
		ContentType:   d.ContentType,
		Channels:      d.Channels,
		Status:        d.Status,
		ScheduledTime: d.ScheduledTime,
		Approvers:     d.ExternalApprovers,
		Media:         d.Media,
		ApprovalState: d.ApprovalStatus,
	}
	if d.ScheduledDate != nil {
		date := d.ScheduledDate.Format("2006-01-02")
		view.ScheduledDate = &date
	}
	if view.Approvers == nil {
		view.Approvers = []models.Approver{}
	}
	if view.Media == nil {
		view.Media = []models.DemandMedia{}
	}
	return view
}

// ApprovalPage serves the public token-gated approval listing: the demands
// sharing the token that currently await client approval, stripped to
// client-safe fields. A known link with nothing left to review renders an
// empty list rather than 404, so reviewers polling after a batch see a
// done state. Responses are cached briefly in Valkey since clients tend
// to poll.
func (a *API) ApprovalPage(w http.ResponseWriter, r *http.Request) {
	token, ok := approvalToken(r)
	if !ok {
		writeError(w, http.StatusNotFound, "approval link not found")
		return
	}

	if a.approvalCache != nil {
		if cached, hit := a.approvalCache.Get(r.Context(), token); hit {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}

	demands, err := a.demands.ListByToken(token)
	if err != nil {
		slog.Error("list demands by token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(demands) == 0 {
		client, err := a.demands.TokenClient(token)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if client == nil {
			writeError(w, http.StatusNotFound, "approval link not found")
			return
		}
	}

	views := make([]approvalDemandView, 0, len(demands))
	for i := range demands {
		views = append(views, a.toApprovalView(r, &demands[i]))
	}

	payload, err := json.Marshal(map[string]any{"demands": views})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if a.approvalCache != nil {
		a.approvalCache.Set(r.Context(), token, payload)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// ApprovalDemandGet serves one demand from an approval link.
func (a *API) ApprovalDemandGet(w http.ResponseWriter, r *http.Request) {
	token, ok := approvalToken(r)
	if !ok {
		writeError(w, http.StatusNotFound, "approval link not found")
		return
	}
	id, err := urlUUID(r, "demandID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid demand id")
		return
	}

	demand, err := a.demands.FindByIDAndToken(id, token)
	if err != nil {
		slog.Error("find demand by token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Demands outside client approval are invisible to the public link.
	if demand == nil || demand.Status != models.StatusAprovacaoCliente {
		writeError(w, http.StatusNotFound, "approval link not found")
		return
	}

	writeJSON(w, http.StatusOK, a.toApprovalView(r, demand))
}

// externalActor resolves the acting approver from the request body. The
// public page knows which reviewer is acting because the client picked
// their name from the approver list.
type externalActor struct {
	ApproverID   string `json:"approver_id"`
	ApproverName string `json:"approver_name"`
}

func (e *externalActor) name() string {
	if strings.TrimSpace(e.ApproverName) != "" {
		return e.ApproverName
	}
	return "Cliente"
}

// ApprovalApprove records one external approver's sign-off through the
// public link. When the last external reviewer approves, the demand
// advances to scheduling.
func (a *API) ApprovalApprove(w http.ResponseWriter, r *http.Request) {
	token, ok := approvalToken(r)
	if !ok {
		writeError(w, http.StatusNotFound, "approval link not found")
		return
	}
	id, err := urlUUID(r, "demandID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid demand id")
		return
	}

	var req externalActor
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	demand, err := a.demands.FindByIDAndToken(id, token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if demand == nil {
		writeError(w, http.StatusNotFound, "approval link not found")
		return
	}

	updated, err := a.demands.Approve(id, models.ApproverExternal, req.ApproverID, req.name())
	if err != nil {
		storeError(w, err, "approver not found")
		return
	}

	a.invalidateApproval(r, token)
	writeJSON(w, http.StatusOK, a.toApprovalView(r, updated))
}

// ApprovalRequestAdjustment records an external reviewer's change
// request with feedback, pulling the demand back to adjustments.
func (a *API) ApprovalRequestAdjustment(w http.ResponseWriter, r *http.Request) {
	token, ok := approvalToken(r)
	if !ok {
		writeError(w, http.StatusNotFound, "approval link not found")
		return
	}
	id, err := urlUUID(r, "demandID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid demand id")
		return
	}

	var req struct {
		externalActor
		Feedback string `json:"feedback"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	demand, err := a.demands.FindByIDAndToken(id, token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if demand == nil {
		writeError(w, http.StatusNotFound, "approval link not found")
		return
	}

	updated, err := a.demands.RequestAdjustment(id, models.ApproverExternal, req.ApproverID, req.name(), req.Feedback)
	if err != nil {
		storeError(w, err, "approver not found")
		return
	}

	a.invalidateApproval(r, token)
	writeJSON(w, http.StatusOK, a.toApprovalView(r, updated))
}

// ApprovalApproveAll approves every pending external reviewer on every
// demand behind the token. Calling it twice is harmless: the second call
// reports zero approved demands.
func (a *API) ApprovalApproveAll(w http.ResponseWriter, r *http.Request) {
	token, ok := approvalToken(r)
	if !ok {
		writeError(w, http.StatusNotFound, "approval link not found")
		return
	}

	var req externalActor
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, err := a.demands.TokenClient(token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if client == nil {
		writeError(w, http.StatusNotFound, "approval link not found")
		return
	}

	approved, err := a.demands.ApproveAllPendingByToken(token, req.name())
	if err != nil {
		slog.Error("bulk approve failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a.invalidateApproval(r, token)
	writeJSON(w, http.StatusOK, map[string]int{"approved_demands": approved})
}
