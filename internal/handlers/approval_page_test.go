// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"demandflow/internal/models"
)

// moveToClientReview places a demand on the board column the public
// approval surface serves from.
func moveToClientReview(t *testing.T, env *testEnv, demand *models.Demand) {
	t.Helper()
	if _, err := env.Demands.Move(demand.ID, models.StatusAprovacaoCliente, "Equipe"); err != nil {
		t.Fatalf("move to client review: %v", err)
	}
}

func getApprovalPage(t *testing.T, env *testEnv, token string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest("GET", "/approval/x", nil), "token", token)
	env.API.ApprovalPage(w, r)
	return w
}

func TestApprovalPageHidesInternalDetails(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)
	client := createTestClient(t, env)

	demand := createDemandVia(t, env, user, client, `{
		"client_id": "`+client.ID.String()+`",
		"title": "Post para aprovação",
		"content_type": "post",
		"internal_approvers": [{"approver_id": "`+user.ID.String()+`", "approver_name": "`+user.DisplayName+`"}],
		"external_approvers": [{"approver_id": "client-1", "approver_name": "Maria"}]
	}`)
	moveToClientReview(t, env, demand)

	w := getApprovalPage(t, env, demand.ApprovalToken)
	if w.Code != http.StatusOK {
		t.Fatalf("approval page: got %d, want 200: %s", w.Code, w.Body.String())
	}

	var page struct {
		Demands []map[string]any `json:"demands"`
	}
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Demands) != 1 {
		t.Fatalf("demands on page: got %d, want 1", len(page.Demands))
	}

	view := page.Demands[0]
	for _, hidden := range []string{"internal_approvers", "history", "comments", "briefing", "approval_token", "created_by"} {
		if _, ok := view[hidden]; ok {
			t.Errorf("public view leaks %q", hidden)
		}
	}
	approvers, _ := view["approvers"].([]any)
	if len(approvers) != 1 {
		t.Fatalf("external approvers on page: got %d, want 1", len(approvers))
	}
}

func TestApprovalPageCachesPayload(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)
	client := createTestClient(t, env)

	demand := createDemandVia(t, env, user, client, `{
		"client_id": "`+client.ID.String()+`",
		"title": "Post em cache",
		"content_type": "post",
		"external_approvers": [{"approver_id": "client-1", "approver_name": "Maria"}]
	}`)
	moveToClientReview(t, env, demand)

	first := getApprovalPage(t, env, demand.ApprovalToken)
	if first.Code != http.StatusOK {
		t.Fatalf("first request: got %d, want 200", first.Code)
	}
	if first.Header().Get("X-Cache") == "HIT" {
		t.Error("first request unexpectedly served from cache")
	}

	second := getApprovalPage(t, env, demand.ApprovalToken)
	if second.Code != http.StatusOK {
		t.Fatalf("second request: got %d, want 200", second.Code)
	}
	if second.Header().Get("X-Cache") != "HIT" {
		t.Error("second request was not served from cache")
	}
	if first.Body.String() != second.Body.String() {
		t.Error("cached payload differs from original")
	}
}

func TestApprovalPageRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)

	for _, token := range []string{
		"",
		"short",
		"ZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZ",           // not hex
		"0123456789abcdef0123456789abcde",            // 31 chars
		"00000000000000000000000000000000teststring", // too long
	} {
		w := getApprovalPage(t, env, token)
		if w.Code != http.StatusNotFound {
			t.Errorf("token %q: got %d, want 404", token, w.Code)
		}
	}

	// Well-formed but unknown tokens also read as not found.
	w := getApprovalPage(t, env, "0123456789abcdef0123456789abcdef")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown token: got %d, want 404", w.Code)
	}
}

func TestApprovalPageListsOnlyClientReview(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)
	client := createTestClient(t, env)

	inReview := createDemandVia(t, env, user, client, `{
		"client_id": "`+client.ID.String()+`",
		"title": "Pronto para o cliente",
		"content_type": "post",
		"external_approvers": [{"approver_id": "client-1", "approver_name": "Maria"}]
	}`)
	moveToClientReview(t, env, inReview)

	// A second demand on the same link still being produced must not
	// show up on the public page.
	inProgress := createDemandVia(t, env, user, client, `{
		"client_id": "`+client.ID.String()+`",
		"title": "Ainda em produção",
		"content_type": "post",
		"approval_token": "`+inReview.ApprovalToken+`",
		"external_approvers": [{"approver_id": "client-1", "approver_name": "Maria"}]
	}`)
	if inProgress.ApprovalToken != inReview.ApprovalToken {
		t.Fatalf("demands do not share the link: %q vs %q", inProgress.ApprovalToken, inReview.ApprovalToken)
	}

	w := getApprovalPage(t, env, inReview.ApprovalToken)
	if w.Code != http.StatusOK {
		t.Fatalf("approval page: got %d, want 200: %s", w.Code, w.Body.String())
	}
	var page struct {
		Demands []struct {
			ID string `json:"id"`
		} `json:"demands"`
	}
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Demands) != 1 {
		t.Fatalf("demands on page: got %d, want 1", len(page.Demands))
	}
	if page.Demands[0].ID != inReview.ID.String() {
		t.Errorf("page lists %s, want %s", page.Demands[0].ID, inReview.ID)
	}

	// A known link with nothing left to review renders an empty list,
	// not a 404: reviewers polling after a batch should see a done state.
	if _, err := env.Demands.Move(inReview.ID, models.StatusAjustes, "Equipe"); err != nil {
		t.Fatalf("move out of review: %v", err)
	}
	env.Valkey.Del(context.Background(), "approval:"+inReview.ApprovalToken)

	w = getApprovalPage(t, env, inReview.ApprovalToken)
	if w.Code != http.StatusOK {
		t.Fatalf("drained page: got %d, want 200: %s", w.Code, w.Body.String())
	}
	page.Demands = nil
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("decode drained page: %v", err)
	}
	if len(page.Demands) != 0 {
		t.Errorf("drained page: got %d demands, want 0", len(page.Demands))
	}
}

func TestApprovalApproveAllIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env, models.RoleMember)
	client := createTestClient(t, env)

	demand := createDemandVia(t, env, user, client, `{
		"client_id": "`+client.ID.String()+`",
		"title": "Aprovação em lote",
		"content_type": "post",
		"external_approvers": [
			{"approver_id": "client-1", "approver_name": "Maria"},
			{"approver_id": "client-2", "approver_name": "João"}
		]
	}`)
	moveToClientReview(t, env, demand)

	approveAll := func() map[string]int {
		t.Helper()
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/x", strings.NewReader(`{"approver_name":"Maria"}`))
		r = withURLParam(r, "token", demand.ApprovalToken)
		env.API.ApprovalApproveAll(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("approve all: got %d, want 200: %s", w.Code, w.Body.String())
		}
		var body map[string]int
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return body
	}

	if got := approveAll()["approved_demands"]; got != 1 {
		t.Errorf("first approve-all: got %d demands, want 1", got)
	}
	if got := approveAll()["approved_demands"]; got != 0 {
		t.Errorf("second approve-all: got %d demands, want 0", got)
	}

	final, err := env.Demands.FindByID(demand.ID)
	if err != nil || final == nil {
		t.Fatalf("reload demand: %v", err)
	}
	if final.ApprovalStatus != models.ApprovalApproved {
		t.Errorf("approval status: got %q, want approved", final.ApprovalStatus)
	}
}
