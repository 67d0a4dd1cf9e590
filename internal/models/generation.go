// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerationKind is the media type of a studio generation.
type GenerationKind string

const (
	GenerationImage GenerationKind = "image"
	GenerationAudio GenerationKind = "audio"
	GenerationText  GenerationKind = "text"
)

// Generation is one AI-produced asset in the studio library. Image and
// audio results live in object storage; text results are stored inline.
// Deleted generations are soft-deleted so bulk operations stay idempotent.
type Generation struct {
	ID          uuid.UUID      `json:"id"`
	OwnerID     uuid.UUID      `json:"owner_id"`
	Kind        GenerationKind `json:"kind"`
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	Prompt      string         `json:"prompt"`
	Bucket      *string        `json:"-"`
	S3Key       *string        `json:"-"`
	ContentType *string        `json:"content_type,omitempty"`
	SizeBytes   int64          `json:"size_bytes"`
	Text        *string        `json:"text,omitempty"`
	Favorite    bool           `json:"favorite"`
	URL         string         `json:"url,omitempty"` // filled by handlers from storage
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   *time.Time     `json:"-"`
}

// GenerationStats summarizes the studio library for the stats endpoint.
type GenerationStats struct {
	Total      int            `json:"total"`
	Favorites  int            `json:"favorites"`
	TotalBytes int64          `json:"total_bytes"`
	ByKind     map[string]int `json:"by_kind"`
	ByProvider map[string]int `json:"by_provider"`
}
