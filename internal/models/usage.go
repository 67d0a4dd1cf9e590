package models

import "time"

// UsageKind is the class of AI request being metered.
type UsageKind string

const (
	UsageChat       UsageKind = "chat"
	UsageImage      UsageKind = "image"
	UsageAudio      UsageKind = "audio"
	UsageModeration UsageKind = "moderation"
)

// UsageEvent is one row of the append-only AI usage log. The ID is a ULID
// so the log sorts chronologically by primary key and pages with a simple
// cursor.
type UsageEvent struct {
	ID               string    `json:"id"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	Kind             UsageKind `json:"kind"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Images           int       `json:"images"`
	LatencyMS        int64     `json:"latency_ms"`
	Success          bool      `json:"success"`
	ErrorCode        *string   `json:"error_code,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// ProviderUsage aggregates usage events for one provider.
type ProviderUsage struct {
	Provider         string  `json:"provider"`
	Events           int     `json:"events"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Images           int64   `json:"images"`
	AvgLatencyMS     float64 `json:"avg_latency_ms"`
	SuccessRate      float64 `json:"success_rate"`
}

// UsageStats is the dashboard aggregate over an optional date range.
type UsageStats struct {
	TotalEvents  int             `json:"total_events"`
	TotalTokens  int64           `json:"total_tokens"`
	TotalImages  int64           `json:"total_images"`
	AvgLatencyMS float64         `json:"avg_latency_ms"`
	SuccessRate  float64         `json:"success_rate"`
	ByProvider   []ProviderUsage `json:"by_provider"`
}
