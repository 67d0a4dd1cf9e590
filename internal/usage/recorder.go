// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package usage bridges AI provider calls into the append-only usage log
// and the Prometheus metrics. It sits behind the ai.Recorder interface so
// the provider layer never imports the store.
package usage

import (
	"log/slog"
	"time"

	"demandflow/internal/ai"
	"demandflow/internal/metrics"
	"demandflow/internal/models"
	"demandflow/internal/store"
)

// Recorder writes one usage event per provider call and updates the
// call metrics. Recording failures only log: a broken usage log must
// never fail a chat or generation request.
type Recorder struct {
	events *store.UsageStore
}

// NewRecorder creates a Recorder over the usage event store.
func NewRecorder(events *store.UsageStore) *Recorder {
	return &Recorder{events: events}
}

var _ ai.Recorder = (*Recorder)(nil)

// RecordCall implements ai.Recorder.
func (r *Recorder) RecordCall(provider, model, kind string, c *ai.Completion, images int, latency time.Duration, callErr error) {
	event := &models.UsageEvent{
		Provider:  provider,
		Model:     model,
		Kind:      models.UsageKind(kind),
		Images:    images,
		LatencyMS: latency.Milliseconds(),
		Success:   callErr == nil,
	}
	if c != nil {
		event.PromptTokens = c.PromptTokens
		event.CompletionTokens = c.CompletionTokens
	}
	if callErr != nil {
		code := callErr.Error()
		if len(code) > 200 {
			code = code[:200]
		}
		event.ErrorCode = &code
	}

	if _, err := r.events.Record(event); err != nil {
		slog.Error("record usage event failed", "provider", provider, "error", err)
	}

	metrics.ObserveAICall(provider, kind, event.PromptTokens, event.CompletionTokens, latency, callErr == nil)
}
