// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers for the DemandFlow API.
// Handlers are grouped by concern (auth, demands, approval, billing,
// chat, studio) and receive their dependencies through the API struct.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"demandflow/internal/ai"
	"demandflow/internal/auth"
	"demandflow/internal/cache"
	"demandflow/internal/middleware"
	"demandflow/internal/search"
	"demandflow/internal/storage"
	"demandflow/internal/store"
)

// Deps bundles the dependencies shared by all handler groups. Storage,
// approval cache and search may be nil when the backing service is not
// configured; handlers degrade per-feature.
type Deps struct {
	Users         *store.UserStore
	Clients       *store.ClientStore
	Demands       *store.DemandStore
	Contracts     *store.ContractStore
	Transactions  *store.TransactionStore
	Conversations *store.ConversationStore
	Media         *store.MediaStore
	Generations   *store.GenerationStore
	Usage         *store.UsageStore

	Tokens        *auth.Tokens
	Refresh       *auth.RefreshStore
	ApprovalCache *cache.ApprovalCache
	Storage       *storage.Client
	Registry      *ai.Registry
	Search        *search.Service
}

// API groups all JSON API handlers and their dependencies.
type API struct {
	users         *store.UserStore
	clients       *store.ClientStore
	demands       *store.DemandStore
	contracts     *store.ContractStore
	transactions  *store.TransactionStore
	conversations *store.ConversationStore
	media         *store.MediaStore
	generations   *store.GenerationStore
	usage         *store.UsageStore

	tokens        *auth.Tokens
	refresh       *auth.RefreshStore
	approvalCache *cache.ApprovalCache
	storage       *storage.Client
	registry      *ai.Registry
	search        *search.Service
}

// NewAPI creates the API handler group.
func NewAPI(d Deps) *API {
	return &API{
		users:         d.Users,
		clients:       d.Clients,
		demands:       d.Demands,
		contracts:     d.Contracts,
		transactions:  d.Transactions,
		conversations: d.Conversations,
		media:         d.Media,
		generations:   d.Generations,
		usage:         d.Usage,
		tokens:        d.Tokens,
		refresh:       d.Refresh,
		approvalCache: d.ApprovalCache,
		storage:       d.Storage,
		registry:      d.Registry,
		search:        d.Search,
	}
}

// writeJSON serializes v to the response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError sends a JSON error envelope: {"error": "..."}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON parses the request body into dst, rejecting unknown fields
// and trailing garbage.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// urlUUID parses a UUID path parameter from the chi route context.
func urlUUID(r *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, param))
}

// actorName returns the display name of the authenticated user, used for
// demand history entries.
func actorName(r *http.Request) string {
	if claims := middleware.ClaimsFromCtx(r.Context()); claims != nil {
		return claims.DisplayName
	}
	return ""
}

// currentUserID returns the authenticated user's ID. Routes behind
// RequireAuth always have valid claims, so failures mean a broken token.
func currentUserID(r *http.Request) (uuid.UUID, error) {
	claims := middleware.ClaimsFromCtx(r.Context())
	if claims == nil {
		return uuid.Nil, errors.New("no authenticated user")
	}
	return claims.UserID()
}

// storeError maps store sentinel errors to HTTP responses and handles
// the generic 500 case.
func storeError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, store.ErrNotPending):
		writeError(w, http.StatusConflict, "approver has already responded")
	case errors.Is(err, store.ErrNotInReview):
		writeError(w, http.StatusConflict, "demand is not awaiting client approval")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
