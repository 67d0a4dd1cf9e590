// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// UsageList pages through the AI usage log, newest first. Pass the last
// event ID of the previous page as ?cursor= to continue.
func (a *API) UsageList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 50
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	events, err := a.usage.List(q.Get("cursor"), limit)
	if err != nil {
		slog.Error("list usage events failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	next := ""
	if len(events) == limit {
		next = events[len(events)-1].ID
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events":      events,
		"next_cursor": next,
	})
}

// UsageStats aggregates the usage log over an optional ?from= / ?to=
// window (YYYY-MM-DD, inclusive).
func (a *API) UsageStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var from, to time.Time
	if raw := q.Get("from"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		// Include the whole end day.
		to = t.Add(24*time.Hour - time.Nanosecond)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	stats, err := a.usage.Stats(from, to)
	if err != nil {
		slog.Error("usage stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
