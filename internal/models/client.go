// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// Client represents an agency customer whose social content is managed
// through the demand pipeline.
type Client struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Company    *string   `json:"company,omitempty"`
	Email      *string   `json:"email,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	Segment    *string   `json:"segment,omitempty"`
	MonthlyFee float64   `json:"monthly_fee"`
	Active     bool      `json:"active"`
	Notes      *string   `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ContentHistoryEntry records one published piece of content for a client.
// Rows are appended when a demand reaches its published state and are never
// updated afterwards.
type ContentHistoryEntry struct {
	ID          uuid.UUID `json:"id"`
	ClientID    uuid.UUID `json:"client_id"`
	DemandID    uuid.UUID `json:"demand_id"`
	Title       string    `json:"title"`
	Channels    []string  `json:"channels"`
	PublishedAt time.Time `json:"published_at"`
}
