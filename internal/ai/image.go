// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"fmt"
	"time"
)

// GeneratedImage is the result of an image generation call.
type GeneratedImage struct {
	Data        []byte
	ContentType string // e.g., "image/png", "image/jpeg"
	Model       string
}

// ImageGenerator is the capability interface for providers that can
// generate images from text prompts.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error)
}

// GenerateImage generates an image using the named provider.
func (r *Registry) GenerateImage(ctx context.Context, provider, prompt string) (*GeneratedImage, error) {
	r.mu.RLock()
	g, ok := r.images[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ai: no image provider configured for %q", provider)
	}

	start := time.Now()
	img, err := g.GenerateImage(ctx, prompt)
	model := ""
	if img != nil {
		model = img.Model
	}
	r.record(provider, model, "image", nil, 1, time.Since(start), err)
	return img, err
}

// SupportsImageGeneration checks whether a named image provider is
// configured.
func (r *Registry) SupportsImageGeneration(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.images[provider]
	return ok
}
