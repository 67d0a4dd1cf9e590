// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// Search queries demands and clients by free text (?q=). Results come
// from Meilisearch when available, otherwise from Postgres.
func (a *API) Search(w http.ResponseWriter, r *http.Request) {
	if a.search == nil {
		writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 50 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}

	results, err := a.search.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", "query", q, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
