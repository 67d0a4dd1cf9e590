// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"fmt"
	"time"
)

// GeneratedSpeech is the result of a text-to-speech call.
type GeneratedSpeech struct {
	Data        []byte
	ContentType string // e.g., "audio/mpeg"
	Model       string
}

// SpeechGenerator is the capability interface for providers that can
// synthesize speech from text.
type SpeechGenerator interface {
	GenerateSpeech(ctx context.Context, text string) (*GeneratedSpeech, error)
}

// GenerateSpeech synthesizes speech using the named provider.
func (r *Registry) GenerateSpeech(ctx context.Context, provider, text string) (*GeneratedSpeech, error) {
	r.mu.RLock()
	g, ok := r.speech[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ai: no speech provider configured for %q", provider)
	}

	start := time.Now()
	speech, err := g.GenerateSpeech(ctx, text)
	model := ""
	if speech != nil {
		model = speech.Model
	}
	r.record(provider, model, "audio", nil, 0, time.Since(start), err)
	return speech, err
}

// SupportsSpeechGeneration checks whether a named speech provider is
// configured.
func (r *Registry) SupportsSpeechGeneration(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.speech[provider]
	return ok
}
