// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"demandflow/internal/models"
)

// createDemandVia posts a demand through the handler and returns the
// created record.
func createDemandVia(t *testing.T, env *testEnv, user *models.User, client *models.Client, body string) *models.Demand {
	t.Helper()

	w := httptest.NewRecorder()
	r := authed(httptest.NewRequest("POST", "/api/demands", strings.NewReader(body)), env, t, user)
	env.API.DemandCreate(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("create demand: got %d, want 201: %s", w.Code, w.Body.String())
	}

	var demand models.Demand
	if err := json.NewDecoder(w.Body).Decode(&demand); err != nil {
		t.Fatalf("decode demand: %v", err)
	}
	t.Cleanup(func() { env.Demands.Delete(demand.ID) })
	return &demand
}

func TestDemandCreateAndMove(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)
	client := createTestClient(t, env)

	demand := createDemandVia(t, env, user, client, `{
		"client_id": "`+client.ID.String()+`",
		"title": "Post de lançamento",
		"content_type": "post",
		"channels": ["instagram", "facebook"],
		"internal_approvers": [{"approver_id": "`+user.ID.String()+`", "approver_name": "`+user.DisplayName+`"}],
		"external_approvers": [{"approver_id": "client-1", "approver_name": "Maria"}]
	}`)

	if demand.Status != models.StatusBacklog {
		t.Errorf("status: got %q, want backlog", demand.Status)
	}
	if demand.ApprovalStatus != models.ApprovalPending {
		t.Errorf("approval status: got %q, want pending", demand.ApprovalStatus)
	}
	if len(demand.ApprovalToken) != 32 {
		t.Errorf("approval token length: got %d, want 32", len(demand.ApprovalToken))
	}
	if len(demand.InternalApprovers) != 1 || len(demand.ExternalApprovers) != 1 {
		t.Fatalf("approvers: got %d internal / %d external, want 1/1",
			len(demand.InternalApprovers), len(demand.ExternalApprovers))
	}
	if len(demand.History) == 0 || demand.History[0].Action != "created" {
		t.Error("expected a created history entry")
	}

	// Move to the content column.
	w := httptest.NewRecorder()
	r := authed(httptest.NewRequest("POST", "/api/demands/x/move", strings.NewReader(`{"status":"conteudo"}`)), env, t, user)
	r = withURLParam(r, "demandID", demand.ID.String())
	env.API.DemandMove(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("move: got %d, want 200: %s", w.Code, w.Body.String())
	}

	var moved models.Demand
	if err := json.NewDecoder(w.Body).Decode(&moved); err != nil {
		t.Fatalf("decode moved demand: %v", err)
	}
	if moved.Status != models.StatusConteudo {
		t.Errorf("moved status: got %q, want conteudo", moved.Status)
	}

	// Unknown board columns are rejected.
	w = httptest.NewRecorder()
	r = authed(httptest.NewRequest("POST", "/api/demands/x/move", strings.NewReader(`{"status":"limbo"}`)), env, t, user)
	r = withURLParam(r, "demandID", demand.ID.String())
	env.API.DemandMove(w, r)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid move: got %d, want 422", w.Code)
	}
}

func TestDemandCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)
	client := createTestClient(t, env)

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"client_id":"` + client.ID.String() + `","content_type":"post"}`},
		{"unknown content type", `{"client_id":"` + client.ID.String() + `","title":"X","content_type":"hologram"}`},
		{"comma in channel", `{"client_id":"` + client.ID.String() + `","title":"X","content_type":"post","channels":["a,b"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := authed(httptest.NewRequest("POST", "/api/demands", strings.NewReader(tt.body)), env, t, user)
			env.API.DemandCreate(w, r)
			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("got %d, want 422: %s", w.Code, w.Body.String())
			}
		})
	}

	// A demand for a nonexistent client is rejected too.
	w := httptest.NewRecorder()
	r := authed(httptest.NewRequest("POST", "/api/demands", strings.NewReader(
		`{"client_id":"00000000-0000-0000-0000-000000000001","title":"X","content_type":"post"}`)), env, t, user)
	env.API.DemandCreate(w, r)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown client: got %d, want 422", w.Code)
	}
}

func TestApprovalWorkflow(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleManager)
	client := createTestClient(t, env)

	demand := createDemandVia(t, env, user, client, `{
		"client_id": "`+client.ID.String()+`",
		"title": "Carrossel institucional",
		"content_type": "carousel",
		"internal_approvers": [{"approver_id": "`+user.ID.String()+`", "approver_name": "`+user.DisplayName+`"}],
		"external_approvers": [{"approver_id": "client-1", "approver_name": "Maria"}]
	}`)

	// Internal approval by the sole internal reviewer advances the
	// demand to client approval.
	w := httptest.NewRecorder()
	r := authed(httptest.NewRequest("POST", "/x", nil), env, t, user)
	r = withURLParam(r, "demandID", demand.ID.String())
	env.API.DemandApproveInternal(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("internal approve: got %d, want 200: %s", w.Code, w.Body.String())
	}

	var afterInternal models.Demand
	if err := json.NewDecoder(w.Body).Decode(&afterInternal); err != nil {
		t.Fatalf("decode demand: %v", err)
	}
	if afterInternal.Status != models.StatusAprovacaoCliente {
		t.Errorf("status after internal approval: got %q, want aprovacao_cliente", afterInternal.Status)
	}
	if afterInternal.ApprovalStatus != models.ApprovalInternalApproved {
		t.Errorf("approval status: got %q, want internal_approved", afterInternal.ApprovalStatus)
	}

	// A second approval by the same reviewer conflicts.
	w = httptest.NewRecorder()
	r = authed(httptest.NewRequest("POST", "/x", nil), env, t, user)
	r = withURLParam(r, "demandID", demand.ID.String())
	env.API.DemandApproveInternal(w, r)
	if w.Code != http.StatusConflict {
		t.Errorf("double approve: got %d, want 409", w.Code)
	}

	// External approval through the public link completes the cycle.
	w = httptest.NewRecorder()
	pr := httptest.NewRequest("POST", "/x", strings.NewReader(`{"approver_id":"client-1","approver_name":"Maria"}`))
	pr = withURLParam(pr, "token", demand.ApprovalToken)
	pr = withURLParam(pr, "demandID", demand.ID.String())
	env.API.ApprovalApprove(w, pr)
	if w.Code != http.StatusOK {
		t.Fatalf("external approve: got %d, want 200: %s", w.Code, w.Body.String())
	}

	final, err := env.Demands.FindByID(demand.ID)
	if err != nil || final == nil {
		t.Fatalf("reload demand: %v", err)
	}
	if final.ApprovalStatus != models.ApprovalApproved {
		t.Errorf("final approval status: got %q, want approved", final.ApprovalStatus)
	}
	if final.Status != models.StatusAguardandoAgendamento {
		t.Errorf("final status: got %q, want aguardando_agendamento", final.Status)
	}
}

func TestAdjustmentRequestResetsCycle(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)
	client := createTestClient(t, env)

	demand := createDemandVia(t, env, user, client, `{
		"client_id": "`+client.ID.String()+`",
		"title": "Reels da campanha",
		"content_type": "reels",
		"external_approvers": [{"approver_id": "client-1", "approver_name": "Maria"}]
	}`)
	moveToClientReview(t, env, demand)

	// The external reviewer asks for changes through the public link.
	w := httptest.NewRecorder()
	pr := httptest.NewRequest("POST", "/x", strings.NewReader(
		`{"approver_id":"client-1","approver_name":"Maria","feedback":"Trocar a trilha sonora"}`))
	pr = withURLParam(pr, "token", demand.ApprovalToken)
	pr = withURLParam(pr, "demandID", demand.ID.String())
	env.API.ApprovalRequestAdjustment(w, pr)
	if w.Code != http.StatusOK {
		t.Fatalf("request adjustment: got %d, want 200: %s", w.Code, w.Body.String())
	}

	adjusted, err := env.Demands.FindByID(demand.ID)
	if err != nil || adjusted == nil {
		t.Fatalf("reload demand: %v", err)
	}
	if adjusted.Status != models.StatusAjustes {
		t.Errorf("status: got %q, want ajustes", adjusted.Status)
	}
	if adjusted.ApprovalStatus != models.ApprovalNeedsAdjustment {
		t.Errorf("approval status: got %q, want needs_adjustment", adjusted.ApprovalStatus)
	}

	// Resetting approvals returns every reviewer to pending.
	w = httptest.NewRecorder()
	r := authed(httptest.NewRequest("POST", "/x", nil), env, t, user)
	r = withURLParam(r, "demandID", demand.ID.String())
	env.API.DemandResetApprovals(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("reset approvals: got %d, want 200: %s", w.Code, w.Body.String())
	}

	reset, err := env.Demands.FindByID(demand.ID)
	if err != nil || reset == nil {
		t.Fatalf("reload demand: %v", err)
	}
	if reset.ApprovalStatus != models.ApprovalPending {
		t.Errorf("approval status after reset: got %q, want pending", reset.ApprovalStatus)
	}
	for _, a := range reset.ExternalApprovers {
		if a.Status != models.ApproverPending {
			t.Errorf("approver %s: got %q, want pending", a.ApproverID, a.Status)
		}
	}
}

func TestExternalActionsRequireClientReview(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)
	client := createTestClient(t, env)

	// Still in the backlog: the public link must not act on it.
	demand := createDemandVia(t, env, user, client, `{
		"client_id": "`+client.ID.String()+`",
		"title": "Ainda no backlog",
		"content_type": "post",
		"external_approvers": [{"approver_id": "client-1", "approver_name": "Maria"}]
	}`)

	w := httptest.NewRecorder()
	pr := httptest.NewRequest("POST", "/x", strings.NewReader(`{"approver_id":"client-1","approver_name":"Maria"}`))
	pr = withURLParam(pr, "token", demand.ApprovalToken)
	pr = withURLParam(pr, "demandID", demand.ID.String())
	env.API.ApprovalApprove(w, pr)
	if w.Code != http.StatusConflict {
		t.Errorf("external approve outside review: got %d, want 409: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	pr = httptest.NewRequest("POST", "/x", strings.NewReader(
		`{"approver_id":"client-1","approver_name":"Maria","feedback":"Cedo demais"}`))
	pr = withURLParam(pr, "token", demand.ApprovalToken)
	pr = withURLParam(pr, "demandID", demand.ID.String())
	env.API.ApprovalRequestAdjustment(w, pr)
	if w.Code != http.StatusConflict {
		t.Errorf("adjustment outside review: got %d, want 409: %s", w.Code, w.Body.String())
	}

	// The single-demand public view hides it entirely.
	w = httptest.NewRecorder()
	pr = httptest.NewRequest("GET", "/x", nil)
	pr = withURLParam(pr, "token", demand.ApprovalToken)
	pr = withURLParam(pr, "demandID", demand.ID.String())
	env.API.ApprovalDemandGet(w, pr)
	if w.Code != http.StatusNotFound {
		t.Errorf("public view outside review: got %d, want 404", w.Code)
	}

	// Nothing may have changed on the demand itself.
	got, err := env.Demands.FindByID(demand.ID)
	if err != nil || got == nil {
		t.Fatalf("reload demand: %v", err)
	}
	if got.Status != models.StatusBacklog || got.ApprovalStatus != models.ApprovalPending {
		t.Errorf("demand mutated: status %q, approval %q", got.Status, got.ApprovalStatus)
	}
}

func TestDemandCreateWithSharedApprovalLink(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)
	client := createTestClient(t, env)
	other := createTestClient(t, env)

	first := createDemandVia(t, env, user, client, `{
		"client_id": "`+client.ID.String()+`",
		"title": "Primeiro post do lote",
		"content_type": "post",
		"external_approvers": [{"approver_id": "client-1", "approver_name": "Maria"}]
	}`)

	// A follow-up demand can ride the same approval link.
	second := createDemandVia(t, env, user, client, `{
		"client_id": "`+client.ID.String()+`",
		"title": "Segundo post do lote",
		"content_type": "carousel",
		"approval_token": "`+first.ApprovalToken+`",
		"external_approvers": [{"approver_id": "client-1", "approver_name": "Maria"}]
	}`)
	if second.ApprovalToken != first.ApprovalToken {
		t.Fatalf("token: got %q, want shared %q", second.ApprovalToken, first.ApprovalToken)
	}

	// The link belongs to one client; another client's demand cannot use it.
	w := httptest.NewRecorder()
	r := authed(httptest.NewRequest("POST", "/api/demands", strings.NewReader(`{
		"client_id": "`+other.ID.String()+`",
		"title": "Cliente errado",
		"content_type": "post",
		"approval_token": "`+first.ApprovalToken+`"
	}`)), env, t, user)
	env.API.DemandCreate(w, r)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("cross-client token: got %d, want 422: %s", w.Code, w.Body.String())
	}

	// Malformed tokens never reach the database.
	w = httptest.NewRecorder()
	r = authed(httptest.NewRequest("POST", "/api/demands", strings.NewReader(`{
		"client_id": "`+client.ID.String()+`",
		"title": "Token quebrado",
		"content_type": "post",
		"approval_token": "not-a-token"
	}`)), env, t, user)
	env.API.DemandCreate(w, r)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("malformed token: got %d, want 422: %s", w.Code, w.Body.String())
	}

	// Both demands approve in one pass through the shared link.
	moveToClientReview(t, env, first)
	moveToClientReview(t, env, second)

	w = httptest.NewRecorder()
	pr := httptest.NewRequest("POST", "/x", strings.NewReader(`{"approver_name":"Maria"}`))
	pr = withURLParam(pr, "token", first.ApprovalToken)
	env.API.ApprovalApproveAll(w, pr)
	if w.Code != http.StatusOK {
		t.Fatalf("approve all: got %d, want 200: %s", w.Code, w.Body.String())
	}
	var body map[string]int
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["approved_demands"] != 2 {
		t.Errorf("approved demands: got %d, want 2", body["approved_demands"])
	}

	for _, d := range []*models.Demand{first, second} {
		got, err := env.Demands.FindByID(d.ID)
		if err != nil || got == nil {
			t.Fatalf("reload demand: %v", err)
		}
		if got.Status == models.StatusAprovacaoCliente {
			t.Errorf("demand %s still awaiting client approval", d.ID)
		}
		if got.ApprovalStatus != models.ApprovalApproved {
			t.Errorf("demand %s approval status: got %q, want approved", d.ID, got.ApprovalStatus)
		}
	}
}

func TestApproveAllAdvancesDemandWithoutExternalReviewers(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)
	client := createTestClient(t, env)

	// No external reviewers were registered, so nothing blocks the demand
	// once it reaches client approval. The batch endpoint must still move
	// it forward instead of leaving it stranded.
	demand := createDemandVia(t, env, user, client, `{
		"client_id": "`+client.ID.String()+`",
		"title": "Sem revisores externos",
		"content_type": "post"
	}`)
	moveToClientReview(t, env, demand)

	w := httptest.NewRecorder()
	pr := httptest.NewRequest("POST", "/x", strings.NewReader(`{"approver_name":"Maria"}`))
	pr = withURLParam(pr, "token", demand.ApprovalToken)
	env.API.ApprovalApproveAll(w, pr)
	if w.Code != http.StatusOK {
		t.Fatalf("approve all: got %d, want 200: %s", w.Code, w.Body.String())
	}
	var body map[string]int
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["approved_demands"] != 1 {
		t.Errorf("approved demands: got %d, want 1", body["approved_demands"])
	}

	got, err := env.Demands.FindByID(demand.ID)
	if err != nil || got == nil {
		t.Fatalf("reload demand: %v", err)
	}
	if got.Status != models.StatusAguardandoAgendamento {
		t.Errorf("status: got %q, want aguardando_agendamento", got.Status)
	}
}
